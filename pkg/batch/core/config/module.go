package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts *LoggingConfig from *Config.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.JBatch.System.Logging
}

// NewSecurityConfigProvider extracts *SecurityConfig from *Config.
func NewSecurityConfigProvider(cfg *Config) *SecurityConfig {
	return &cfg.JBatch.Security
}

// Module provides *Config and its sections. EmbeddedConfig and the optional
// `name:"envFilePath"` string are supplied by the application.
var Module = fx.Options(
	fx.Provide(
		func() EnvironmentExpander { return NewOsEnvironmentExpander() },
		NewConfigProvider,
		NewLoggingConfigProvider,
		NewSecurityConfigProvider,
	),
)
