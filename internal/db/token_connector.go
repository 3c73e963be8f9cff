package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/internal/retry"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// tokenExpiryWarning is how close to expiry a fresh token must be before a
// warning is logged. Pools opened with a short-lived token cannot reconnect
// after it expires.
const tokenExpiryWarning = 5 * time.Minute

// TokenBasedConnector implements pgload.Connector for cloud providers that
// authenticate via short-lived tokens (AWS IAM, Azure Entra ID).
// The token is acquired from a TokenProvider and used as the PostgreSQL password.
type TokenBasedConnector struct {
	config        *pgload.ConnectionConfig
	tokenProvider TokenProvider
	options       connectorOptions
	retryExecutor *retry.Executor
	providerName  string
}

// NewTokenBasedConnector creates a connector that uses a TokenProvider for authentication.
// providerName is used in error/warning messages (e.g., "AWS IAM", "Azure").
func NewTokenBasedConnector(config *pgload.ConnectionConfig, tokenProvider TokenProvider, providerName string, opts ...ConnectorOption) *TokenBasedConnector {
	o := buildOptions(opts)
	return &TokenBasedConnector{
		config:        config,
		tokenProvider: tokenProvider,
		options:       o,
		retryExecutor: newConnectExecutor(o.logger),
		providerName:  providerName,
	}
}

// Connect acquires a fresh token for every attempt and opens the pool with it.
func (c *TokenBasedConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.tokenProvider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire %s token: %w", c.providerName, err)
		}

		if remaining := time.Until(expiresOn); remaining < tokenExpiryWarning && c.options.logger != nil {
			c.options.logger.Info("Warning: %s token expires in %v", c.providerName, remaining.Round(time.Second))
		}

		configWithToken := *c.config
		configWithToken.Password = token

		pool, err = openPool(ctx, BuildConnectionString(&configWithToken), c.config, c.options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}
