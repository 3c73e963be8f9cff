package cli

import (
	"fmt"
	"os"

	"github.com/vvka-141/pgload/internal/config"
	"github.com/vvka-141/pgload/internal/db"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// connectionFlags holds the connection-related flag values.
type connectionFlags struct {
	connection     string
	host           string
	port           int
	username       string
	database       string
	sslMode        string
	auth           string
	awsRegion      string
	googleInstance string
	azureTenantID  string
	azureClientID  string
}

// connectionStringFromEnv returns PGLOAD_CONNECTION_STRING. DATABASE_URL is
// handled by the resolver since it yields to granular flags.
func connectionStringFromEnv() string {
	return os.Getenv("PGLOAD_CONNECTION_STRING")
}

// resolveConnection resolves the connection from flags, environment and
// pgload.yaml.
func resolveConnection(
	flags connectionFlags,
	projectCfg *config.ProjectConfig,
	verbose bool,
) (*pgload.ConnectionConfig, error) {
	connString := flags.connection
	if connString == "" {
		connString = connectionStringFromEnv()
	}

	granular := &db.GranularConnFlags{
		Host:     flags.host,
		Port:     flags.port,
		Username: flags.username,
		Database: flags.database,
		SSLMode:  flags.sslMode,
	}
	auth := &db.AuthFlags{
		Method:         flags.auth,
		AWSRegion:      flags.awsRegion,
		GoogleInstance: flags.googleInstance,
		AzureTenantID:  flags.azureTenantID,
		AzureClientID:  flags.azureClientID,
	}

	connConfig, err := db.ResolveConnectionParams(connString, granular, auth, db.LoadFromEnvironment(), projectCfg)
	if err != nil {
		return nil, err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "[VERBOSE] Connection resolved:\n")
		fmt.Fprintf(os.Stderr, "  Host: %s\n", connConfig.Host)
		fmt.Fprintf(os.Stderr, "  Port: %d\n", connConfig.Port)
		fmt.Fprintf(os.Stderr, "  User: %s\n", connConfig.Username)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", connConfig.Database)
		fmt.Fprintf(os.Stderr, "  SSL Mode: %s\n", connConfig.SSLMode)
		fmt.Fprintf(os.Stderr, "  Auth Method: %s\n", connConfig.AuthMethod)
	}
	return connConfig, nil
}
