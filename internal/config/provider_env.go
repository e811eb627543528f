package config

import (
	"context"
	"os"
)

// EnvVarProvider implements SecretProvider by treating each key as the name
// of an environment variable. It is used for local runs, where secrets come
// from the shell or a .env file instead of Parameter Store.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch returns the value of every key set in the environment.
// Unset keys are omitted from the result.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

// NewSecretProvider picks the provider for an environment: environment
// variables for local runs, Parameter Store everywhere else.
func NewSecretProvider(appEnv, region, endpoint string) SecretProvider {
	if appEnv == "" || appEnv == localEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region, endpoint)
}
