package secrets

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/config"
	pkgsecrets "github.com/shambasmart/marketplace/pkg/secrets"
)

// Resolver overlays runtime secrets from the secret store onto the loaded
// configuration. Resolved values are cached so restart-free secret rotation
// only costs one fetch per TTL window.
type Resolver struct {
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[map[string]string]
	logger   *zap.Logger
}

func NewResolver(provider pkgsecrets.Provider, cache *pkgsecrets.Cache[map[string]string], logger *zap.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    cache,
		logger:   logger,
	}
}

func (r *Resolver) fetch(ctx context.Context, name string) (map[string]string, error) {
	if cached, ok := r.cache.Get(name); ok {
		return cached, nil
	}
	secret, err := r.provider.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	r.cache.Put(name, secret)
	return secret, nil
}

// Apply resolves the configured secret names and overwrites the matching
// config fields. Unset secret names are skipped so local development can run
// on plain env vars.
func (r *Resolver) Apply(ctx context.Context, cfg *config.Config) error {
	if cfg.DatabaseSecretName != "" {
		secret, err := r.fetch(ctx, cfg.DatabaseSecretName)
		if err != nil {
			return fmt.Errorf("resolve database secret: %w", err)
		}
		if dsn, ok := secret["dsn"]; ok && dsn != "" {
			cfg.DatabaseURL = dsn
		}
		r.logger.Info("secrets.database_resolved",
			zap.String("secret_name", cfg.DatabaseSecretName))
	}

	if cfg.AISecretName != "" {
		secret, err := r.fetch(ctx, cfg.AISecretName)
		if err != nil {
			return fmt.Errorf("resolve AI secret: %w", err)
		}
		if key, ok := secret["api_key"]; ok && key != "" {
			cfg.AIAPIKey = key
		}
		if url, ok := secret["base_url"]; ok && url != "" {
			cfg.AIBaseURL = url
		}
		r.logger.Info("secrets.ai_resolved",
			zap.String("secret_name", cfg.AISecretName))
	}

	return nil
}
