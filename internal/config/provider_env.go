package config

import (
	"context"
	"os"
)

// Secret backends accepted by NewSecretProvider.
const (
	SecretBackendSSM = "ssm"
	SecretBackendEnv = "env"
)

// EnvVarProvider treats each _SSM_PARAM reference as the name of another
// environment variable. It lets a dev or staging profile run on a laptop
// without Parameter Store access.
type EnvVarProvider struct{}

// NewEnvVarProvider creates an EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up with os.LookupEnv. Unset keys are
// omitted.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string, len(keys))
	for _, key := range keys {
		if val, ok := os.LookupEnv(key); ok {
			result[key] = val
		}
	}
	return result, nil
}

// NewSecretProvider returns the provider for backend (SECRET_PROVIDER).
// Empty and unknown values select SSM.
func NewSecretProvider(backend, region, endpoint string) SecretProvider {
	if backend == SecretBackendEnv {
		return NewEnvVarProvider()
	}
	return NewSSMProvider(region, endpoint)
}

// SecretProviderFromEnv reads SECRET_PROVIDER, AWS_REGION and
// AWS_ENDPOINT_URL. Entry points call it before LoadConfig, which is the
// only place these are otherwise parsed.
func SecretProviderFromEnv() SecretProvider {
	return NewSecretProvider(os.Getenv("SECRET_PROVIDER"), os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))
}
