package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vvka-141/pgload/internal/retry"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// Pool defaults. MaxConns is raised to the load worker count by the caller
// through WithMaxConns so no dispatcher worker waits on Acquire.
const (
	DefaultMaxConns        = 5
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 30 * time.Minute
)

// ConnectorOption configures connectors built by NewConnector.
type ConnectorOption func(*connectorOptions)

type connectorOptions struct {
	logger   pgload.Logger
	maxConns int32
}

// WithLogger routes retry progress, token warnings and server notices to logger.
func WithLogger(logger pgload.Logger) ConnectorOption {
	return func(o *connectorOptions) {
		o.logger = logger
	}
}

// WithMaxConns sets the pool size. Values below DefaultMaxConns are ignored.
func WithMaxConns(n int) ConnectorOption {
	return func(o *connectorOptions) {
		if n > DefaultMaxConns {
			o.maxConns = int32(n)
		}
	}
}

func buildOptions(opts []ConnectorOption) connectorOptions {
	o := connectorOptions{maxConns: DefaultMaxConns}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o connectorOptions) configurePool(poolConfig *pgxpool.Config) {
	poolConfig.MaxConns = o.maxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	logger := o.logger
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		if logger != nil {
			logger.Verbose("%s: %s", notice.Severity, notice.Message)
		}
	}
}

func newConnectExecutor(logger pgload.Logger) *retry.Executor {
	classifier := retry.NewPostgreSQLErrorClassifier()
	strategy := retry.NewExponentialBackoff(pgload.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(pgload.DefaultRetryInitialDelay),
		retry.WithMaxDelay(pgload.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(classifier, strategy, logger)
}

// openPool parses connStr, opens a pool and pings it. The pool is closed on
// any failure after creation.
func openPool(ctx context.Context, connStr string, cfg *pgload.ConnectionConfig, o connectorOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}

	o.configurePool(poolConfig)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector implements pgload.Connector for username/password
// authentication with automatic retry on transient failures.
type StandardConnector struct {
	config        *pgload.ConnectionConfig
	options       connectorOptions
	retryExecutor *retry.Executor
}

// NewStandardConnector creates a new StandardConnector with the given configuration.
// Retry behavior uses pgload defaults: DefaultRetryMaxAttempts attempts,
// exponential backoff starting at DefaultRetryInitialDelay, max DefaultRetryMaxDelay.
func NewStandardConnector(config *pgload.ConnectionConfig, opts ...ConnectorOption) *StandardConnector {
	o := buildOptions(opts)
	return &StandardConnector{
		config:        config,
		options:       o,
		retryExecutor: newConnectExecutor(o.logger),
	}
}

// Connect establishes a connection pool using standard authentication with automatic retry.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool
	connStr := BuildConnectionString(c.config)

	err := c.retryExecutor.Execute(ctx, func(ctx context.Context) error {
		var err error
		pool, err = openPool(ctx, connStr, c.config, c.options)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pool, nil
}

// NewConnector is a factory function that creates the appropriate Connector
// based on the ConnectionConfig's AuthMethod.
func NewConnector(config *pgload.ConnectionConfig, opts ...ConnectorOption) (pgload.Connector, error) {
	switch config.AuthMethod {
	case pgload.AuthMethodStandard:
		return NewStandardConnector(config, opts...), nil
	case pgload.AuthMethodAWSIAM:
		return newAWSConnector(config, opts)
	case pgload.AuthMethodGoogleIAM:
		return newGoogleConnector(config, opts)
	case pgload.AuthMethodAzureEntraID:
		return newAzureConnector(config, opts)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, pgload.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError wraps raw pgx connection errors with actionable guidance.
// Every result matches pgload.ErrConnectionFailed.
func wrapConnectionError(err error, host string, port int, database string) error {
	errStr := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	var msg string
	switch {
	case strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "actively refused"):
		msg = fmt.Sprintf(`connection refused to %s

Possible causes:
  - PostgreSQL is not running (check: pg_isready -h %s -p %d)
  - Wrong host or port
  - Firewall blocking the connection`, addr, host, port)

	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "no host"):
		msg = fmt.Sprintf(`cannot resolve host "%s"

Possible causes:
  - Hostname is misspelled
  - DNS is not configured or reachable`, host)

	case strings.Contains(errStr, "password authentication failed"):
		msg = fmt.Sprintf(`password authentication failed for database "%s"

Possible causes:
  - Wrong password (check $PGPASSWORD or ~/.pgpass)
  - Wrong username`, database)

	case strings.Contains(errStr, "does not exist"):
		msg = fmt.Sprintf(`database "%s" does not exist

The target tables must already exist. Create the database first:
  createdb %s`, database, database)

	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "timed out"):
		msg = fmt.Sprintf(`connection timed out to %s

Possible causes:
  - Server is overloaded or unresponsive
  - Firewall silently dropping packets
  - Wrong host/port (server not listening)`, addr)

	case strings.Contains(errStr, "ssl") || strings.Contains(errStr, "tls"):
		msg = `SSL/TLS connection error

Possible causes:
  - Server requires SSL but --sslmode is wrong
  - Certificate verification failed (try --sslmode=require)`

	case strings.Contains(errStr, "too many connections"):
		msg = fmt.Sprintf(`too many connections to database "%s"

Possible causes:
  - max_connections limit reached in postgresql.conf
  - --load-workers is larger than the server allows`, database)

	default:
		return fmt.Errorf("%w: %w", pgload.ErrConnectionFailed, err)
	}

	return fmt.Errorf("%s\n\n%w: %w", msg, pgload.ErrConnectionFailed, err)
}

// newAWSConnector creates a token-based connector with the AWS IAM token provider.
func newAWSConnector(config *pgload.ConnectionConfig, opts []ConnectorOption) (pgload.Connector, error) {
	endpoint := fmt.Sprintf("%s:%d", config.Host, config.Port)

	tokenProvider, err := NewAWSIAMTokenProvider(endpoint, config.AWSRegion, config.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS IAM token provider: %w", err)
	}

	return NewTokenBasedConnector(config, tokenProvider, "AWS IAM", opts...), nil
}

// newGoogleConnector creates a GoogleCloudSQLConnector for Google Cloud SQL IAM authentication.
func newGoogleConnector(config *pgload.ConnectionConfig, opts []ConnectorOption) (pgload.Connector, error) {
	if config.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", pgload.ErrInvalidConfig)
	}
	if config.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires username (-U): %w", pgload.ErrInvalidConfig)
	}

	return NewGoogleCloudSQLConnector(config, config.GoogleInstance, opts...), nil
}

// newAzureConnector creates a token-based connector with the Azure Entra ID token provider.
// If explicit credentials (tenant, client, secret) are provided, uses Service Principal auth.
// Otherwise, falls back to DefaultAzureCredential chain.
func newAzureConnector(config *pgload.ConnectionConfig, opts []ConnectorOption) (pgload.Connector, error) {
	var tokenProvider TokenProvider
	var err error

	if config.AzureTenantID != "" && config.AzureClientID != "" && config.AzureClientSecret != "" {
		tokenProvider, err = NewAzureServicePrincipalProvider(
			config.AzureTenantID,
			config.AzureClientID,
			config.AzureClientSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Service Principal provider: %w", err)
		}
	} else {
		tokenProvider, err = NewAzureDefaultCredentialProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Default Credential provider: %w", err)
		}
	}

	return NewTokenBasedConnector(config, tokenProvider, "Azure", opts...), nil
}
