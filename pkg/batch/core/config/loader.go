package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/jbatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/jbatch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig      `optional:"true"`
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// LoadConfig builds the configuration: defaults, then the YAML document (after
// environment placeholder expansion), then environment overrides. The .env file at
// envFilePath, or ./.env when empty, is loaded first when it exists.
func LoadConfig(envFilePath string, data EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}

	cfg := NewConfig()
	if len(data) > 0 {
		expanded, err := expander.Expand(data)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders in config", err, false, false)
		}
		// Keys absent from the document keep their defaults.
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal config", err, false, false)
		}
	}
	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads *Config and applies its logging level.
func NewConfigProvider(p ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(p.EnvFilePath, p.EmbeddedConfig, p.Expander)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.JBatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.JBatch.System.Logging.Level)
	return cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	b := c.JBatch
	if b.Batch.PoolSize <= 0 {
		return exception.NewConfigurationError(moduleName, "jbatch.batch.pool_size must be positive, got %d", b.Batch.PoolSize)
	}
	if b.Batch.ItemCount <= 0 {
		return exception.NewConfigurationError(moduleName, "jbatch.batch.item_count must be positive, got %d", b.Batch.ItemCount)
	}
	switch b.Infrastructure.RepositoryType {
	case RepositoryTypeInMemory:
	case RepositoryTypeSQL:
		if b.Infrastructure.JobRepositoryDBRef == "" {
			return exception.NewConfigurationError(moduleName, "jbatch.infrastructure.job_repository_db_ref is required for the sql repository")
		}
	default:
		return exception.NewConfigurationError(moduleName, "unknown repository type '%s'", b.Infrastructure.RepositoryType)
	}
	if !oneOf(b.Telemetry.TracesExporter, ExporterNone, ExporterOTLPGRPC, ExporterOTLPHTTP) {
		return exception.NewConfigurationError(moduleName, "unknown traces exporter '%s'", b.Telemetry.TracesExporter)
	}
	if !oneOf(b.Telemetry.MetricsExporter, ExporterNone, ExporterPrometheus, ExporterOTLPGRPC, ExporterOTLPHTTP) {
		return exception.NewConfigurationError(moduleName, "unknown metrics exporter '%s'", b.Telemetry.MetricsExporter)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// loadStructFromEnv overrides scalar fields from environment variables named after the
// upper-cased path of yaml tags, e.g. JBATCH_BATCH_POOL_SIZE. Maps are left to YAML.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		yamlTag := strings.Split(typ.Field(i).Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", typ.Field(i).Name, envVarName, err)
		}
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	}
	return nil
}
