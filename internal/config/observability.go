package config

// ObservabilityConfig holds observability configuration.
// Exporter endpoints come from the standard OTEL_EXPORTER_OTLP_* variables.
type ObservabilityConfig struct {
	OTelEnabled bool   `env:"WEEKPLAN_OTEL_ENABLED" default:"false"`
	ServiceName string `env:"WEEKPLAN_SERVICE_NAME" default:"weekplan"`
}
