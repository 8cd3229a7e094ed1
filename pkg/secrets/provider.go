package secrets

import "context"

// Provider fetches secret material from an external secret store.
// Secrets are JSON maps, e.g. {"password": "...", "api_key": "..."}.
type Provider interface {
	GetSecret(ctx context.Context, key string) (map[string]string, error)
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
