package config

import "context"

// SecretProvider resolves the values behind NAME_SSM_PARAM pointers.
// SSMProvider reads Parameter Store; EnvVarProvider reads the process
// environment for local runs and tests.
type SecretProvider interface {
	// GetParametersBatch resolves every key it can and returns them as
	// key -> plaintext. Keys that do not exist are omitted, not errors;
	// the loader reports them as missing.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
