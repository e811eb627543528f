// loader.go implements the configuration loading lifecycle for sqs-inspect.
//
// The loading sequence is:
//  1. Enforce UTC timezone so rendered timestamps never drift.
//  2. Load .env file via godotenv (non-fatal if absent).
//  3. Scan environment for _SSM_PARAM suffix variables.
//  4. If APP_ENV != "local", resolve SSM parameters via the SecretProvider
//     and inject the resolved values back into the environment.
//  5. Use envconfig to process struct tags and populate the Config struct.
//  6. Apply command-line overrides.
//  7. Populate BuildInfo from linker-injected variables.
//  8. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ssmParamSuffix is the environment variable suffix used to identify SSM
// parameter pointer variables. For example, AWS_SECRET_ACCESS_KEY_SSM_PARAM
// points to the SSM path holding the AWS_SECRET_ACCESS_KEY value.
const ssmParamSuffix = "_SSM_PARAM"

// localEnv is the APP_ENV value that bypasses SSM resolution. An unset
// APP_ENV counts as local.
const localEnv = "local"

// ssmResolveTimeout bounds the Parameter Store batch fetch.
const ssmResolveTimeout = 30 * time.Second

// Override mutates a freshly parsed Config before validation. Command-line
// flags are applied through overrides so they win over every other source.
type Override func(*Config)

// envLookup is a function type for looking up environment variables.
// It matches the signature of os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet is a function type for setting environment variables.
// It matches the signature of os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// environ is a function type for listing all environment variables.
// It matches the signature of os.Environ and allows injection for testing.
type environ func() []string

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	environ   environ
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		environ:   os.Environ,
	}
}

// LoadConfig loads and validates the sqs-inspect configuration.
//
// The provider parameter is the SecretProvider to use for SSM resolution.
// For local runs the provider may be nil (SSM resolution is skipped).
// For non-local environments that declare _SSM_PARAM variables it must be
// non-nil. Overrides are applied in order after the environment is parsed.
func LoadConfig(provider SecretProvider, overrides ...Override) (*Config, error) {
	return loadConfigWithDeps(staticProvider(provider), defaultDeps(), overrides...)
}

// ProviderFactory builds the SecretProvider for a non-local APP_ENV. It runs
// after the .env file is loaded, so APP_ENV may come from either source.
type ProviderFactory func(appEnv string) SecretProvider

// LoadConfigWithFactory is LoadConfig with the provider chosen once APP_ENV
// is known. The factory is not called for local runs.
func LoadConfigWithFactory(newProvider ProviderFactory, overrides ...Override) (*Config, error) {
	return loadConfigWithDeps(newProvider, defaultDeps(), overrides...)
}

func staticProvider(provider SecretProvider) ProviderFactory {
	return func(string) SecretProvider { return provider }
}

// loadConfigWithDeps is the internal implementation of LoadConfig that accepts
// injectable dependencies for testing.
func loadConfigWithDeps(newProvider ProviderFactory, deps loaderDeps, overrides ...Override) (*Config, error) {
	// Step 1: Enforce UTC timezone.
	time.Local = time.UTC

	// Step 2: Load .env file (non-fatal if absent).
	// godotenv.Load() will silently succeed if no .env file exists in the
	// working directory. It does NOT override existing environment variables.
	_ = godotenv.Load()

	// Step 3: Determine the environment.
	appEnv, _ := deps.lookupEnv("APP_ENV")

	// Step 4: Scan for _SSM_PARAM variables and resolve if non-local.
	if appEnv != "" && appEnv != localEnv {
		var provider SecretProvider
		if newProvider != nil {
			provider = newProvider(appEnv)
		}
		if err := resolveSSMParams(provider, deps); err != nil {
			return nil, err
		}
	}

	// Step 5: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig will use the exact tag values
	// (e.g., envconfig:"APP_ENV" reads APP_ENV directly).
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 6: Command-line overrides.
	for _, override := range overrides {
		if override != nil {
			override(&cfg)
		}
	}

	// Step 7: Populate build metadata from linker-injected variables.
	cfg.Build = NewBuildInfo()

	// Step 8: Validate the populated struct.
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// resolveSSMParams fetches every value declared through a NAME_SSM_PARAM
// variable and exports it as NAME, so envconfig sees it like any other
// variable. For example AWS_SECRET_ACCESS_KEY_SSM_PARAM=/prod/sqs-inspect/secret_key
// populates AWS_SECRET_ACCESS_KEY.
//
// A NAME that is already set wins over Parameter Store (OS Environment >
// Dotenv > SSM). All paths are fetched in one batch.
func resolveSSMParams(provider SecretProvider, deps loaderDeps) error {
	targets := make(map[string]string) // SSM path -> env var
	for _, entry := range deps.environ() {
		key, path, ok := strings.Cut(entry, "=")
		if !ok || path == "" {
			continue
		}
		name, found := strings.CutSuffix(key, ssmParamSuffix)
		if !found {
			continue
		}
		if _, set := deps.lookupEnv(name); set {
			continue
		}
		targets[path] = name
	}
	if len(targets) == 0 {
		return nil
	}

	paths := make([]string, 0, len(targets))
	for path := range targets {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	if provider == nil {
		names := make([]string, 0, len(paths))
		for _, path := range paths {
			names = append(names, targets[path])
		}
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(names, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve %d SSM parameters", len(paths)),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, targets[path])
			continue
		}
		if err := deps.setEnv(targets[path], value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", targets[path]),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}
	return nil
}
