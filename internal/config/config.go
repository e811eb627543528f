// Package config defines the configuration of an sqs-inspect run.
// Configuration is loaded once at startup and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	Command-line flags (Highest) -> OS Environment -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format aborts the run before any
// queue call is made (fail fast).
package config

import (
	"time"

	"sqsinspect/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for sqs-inspect.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	// Domain Configurations
	AWS           AWSConfig
	Queue         QueueConfig
	Output        OutputConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// AWSConfig holds the session settings used to reach the queue.
type AWSConfig struct {
	Region  string `envconfig:"AWS_REGION" default:"eu-north-1" validate:"required"`
	Profile string `envconfig:"AWS_PROFILE"`

	// Static credentials. When unset the SDK default chain is used.
	AccessKeyID     string       `envconfig:"AWS_ACCESS_KEY_ID" validate:"required_with=SecretAccessKey"`
	SecretAccessKey SecretString `envconfig:"AWS_SECRET_ACCESS_KEY" validate:"required_with=AccessKeyID"`
	SessionToken    SecretString `envconfig:"AWS_SESSION_TOKEN"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL" validate:"omitempty,url"`

	// VerifyIdentity logs the caller identity via STS before inspecting.
	VerifyIdentity bool `envconfig:"VERIFY_IDENTITY" default:"false"`
}

// HasStaticCredentials reports whether an access key pair was configured.
func (c AWSConfig) HasStaticCredentials() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey.IsSet()
}

// QueueConfig holds the queue to inspect and the drain tuning knobs.
type QueueConfig struct {
	URL string `envconfig:"SQS_QUEUE_URL" validate:"required,url"`

	// MessagesPerReceive is the batch-size hint; SQS caps it at 10.
	MessagesPerReceive int `envconfig:"SQS_MESSAGES_PER_RECEIVE" default:"10" validate:"min=1,max=10"`

	// VisibilityTimeoutSeconds is an explicit hold; 0 derives it from the estimate.
	VisibilityTimeoutSeconds int `envconfig:"SQS_VISIBILITY_TIMEOUT" default:"0" validate:"min=0,max=43200"`
	VisibilityFloorSeconds   int `envconfig:"SQS_VISIBILITY_FLOOR" default:"15" validate:"min=0,max=43200"`

	MaxStalledReceives int           `envconfig:"SQS_MAX_STALLED_RECEIVES" default:"3" validate:"min=1"`
	MaxReceives        int           `envconfig:"SQS_MAX_RECEIVES" default:"0" validate:"min=0"` // 0 derives from the estimate
	MaxDuration        time.Duration `envconfig:"SQS_MAX_DURATION" default:"0s" validate:"gte=0"`  // 0 disables the budget
	Concurrency        int           `envconfig:"SQS_RECEIVE_CONCURRENCY" default:"1" validate:"min=1,max=10"`
}

// VisibilityTimeout returns the explicit hold as a duration.
func (c QueueConfig) VisibilityTimeout() time.Duration {
	return time.Duration(c.VisibilityTimeoutSeconds) * time.Second
}

// VisibilityFloor returns the minimum derived hold as a duration.
func (c QueueConfig) VisibilityFloor() time.Duration {
	return time.Duration(c.VisibilityFloorSeconds) * time.Second
}

// OutputConfig holds where the result is written.
type OutputConfig struct {
	// Destination is a file path or s3://bucket/key; a ".zst" suffix compresses.
	Destination string `envconfig:"OUTFILE" default:"sqs-inspect.json" validate:"required"`
}

// ObservabilityConfig holds run metric settings. Both sinks are optional.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE"`
	MetricsTextfile string `envconfig:"METRICS_TEXTFILE"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
