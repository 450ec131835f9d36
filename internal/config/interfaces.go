package config

import "context"

// SecretProvider resolves secret references. SSMProvider serves deployed
// environments; EnvVarProvider serves local development and tests.
type SecretProvider interface {
	// GetParametersBatch returns plaintext values keyed by reference. Missing
	// references are omitted from the map rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
