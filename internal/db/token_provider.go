package db

import (
	"context"
	"time"
)

// TokenProvider acquires a short-lived database password from a cloud
// identity service. TokenBasedConnector calls it once per connect attempt.
type TokenProvider interface {
	// GetToken returns the token and its expiry time.
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. It must not include secrets.
	String() string
}

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"
