// Package config provides the application configuration of jbatch.
package config

// EmbeddedConfig holds the content of the configuration file, typically embedded by main.
type EmbeddedConfig []byte

// LogLevel is a logging level name as written in configuration.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Repository types accepted by InfrastructureConfig.RepositoryType.
const (
	RepositoryTypeInMemory = "inmemory"
	RepositoryTypeSQL      = "sql"
)

// Exporter names accepted by TelemetryConfig.
const (
	ExporterNone       = "none"
	ExporterOTLPGRPC   = "otlp-grpc"
	ExporterOTLPHTTP   = "otlp-http"
	ExporterPrometheus = "prometheus"
)

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists JobParameters keys whose values are masked in logs and API responses.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// BatchConfig holds settings of the batch engine.
type BatchConfig struct {
	// JobName is the job started by the one-shot run mode.
	JobName string `yaml:"job_name"`
	// JobsDir is a directory of JSL YAML files loaded at startup, in addition to embedded ones.
	JobsDir string `yaml:"jobs_dir"`
	// PoolSize bounds the number of top-level jobs running at once.
	PoolSize int `yaml:"pool_size"`
	// ItemCount is the chunk size used when a chunk declares none.
	ItemCount int `yaml:"item_count"`
	// PollingIntervalSeconds is how often the run mode polls the status of its execution.
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`
	// ShutdownTimeoutSeconds bounds how long shutdown waits for running jobs to stop.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (DEBUG, INFO, WARN, ERROR).
	Level string `yaml:"level"`
	// SQLLevel is the level of GORM statement logging (SILENT, ERROR, WARN, INFO).
	SQLLevel string `yaml:"sql_level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	Timezone string        `yaml:"timezone"`
	Logging  LoggingConfig `yaml:"logging"`
}

// InfrastructureConfig selects the infrastructure the engine runs on.
type InfrastructureConfig struct {
	// RepositoryType is "inmemory" or "sql".
	RepositoryType string `yaml:"repository_type"`
	// JobRepositoryDBRef names the database configuration used by the SQL JobRepository.
	JobRepositoryDBRef string `yaml:"job_repository_db_ref"`
	// RunMigrations applies the repository schema migrations at startup.
	RunMigrations bool `yaml:"run_migrations"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name"`
	// TracesExporter is one of none, otlp-grpc, otlp-http.
	TracesExporter string `yaml:"traces_exporter"`
	// MetricsExporter is one of none, prometheus, otlp-grpc, otlp-http.
	MetricsExporter string `yaml:"metrics_exporter"`
	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	// ExportIntervalSeconds is the period of the OTLP metric reader.
	ExportIntervalSeconds int `yaml:"export_interval_seconds"`
}

// HTTPConfig configures the operator API.
type HTTPConfig struct {
	// Address is the listen address of the operator API. Empty disables the server.
	Address string `yaml:"address"`
	// ShutdownTimeoutSeconds bounds the graceful shutdown of the server.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// JBatchConfig holds all configuration under the "jbatch" top-level key.
type JBatchConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Security       SecurityConfig       `yaml:"security"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	HTTP           HTTPConfig           `yaml:"http"`
	// Database holds named database configurations, decoded by the database adapters.
	Database map[string]interface{} `yaml:"database"`
	// Storage holds named storage configurations, decoded by the storage adapters.
	Storage map[string]interface{} `yaml:"storage"`
}

// Config is the root of the application configuration.
type Config struct {
	JBatch JBatchConfig `yaml:"jbatch"`
}

// NewConfig returns a Config holding the default values.
func NewConfig() *Config {
	return &Config{
		JBatch: JBatchConfig{
			Batch: BatchConfig{
				PoolSize:               10,
				ItemCount:              10,
				PollingIntervalSeconds: 5,
				ShutdownTimeoutSeconds: 30,
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO", SQLLevel: string(LogLevelSilent)},
			},
			Infrastructure: InfrastructureConfig{
				RepositoryType:     RepositoryTypeInMemory,
				JobRepositoryDBRef: "metadata",
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Telemetry: TelemetryConfig{
				ServiceName:           "jbatch",
				TracesExporter:        ExporterNone,
				MetricsExporter:       ExporterPrometheus,
				ExportIntervalSeconds: 15,
			},
			HTTP: HTTPConfig{ShutdownTimeoutSeconds: 10},
			Database: map[string]interface{}{},
			Storage:  map[string]interface{}{},
		},
	}
}
