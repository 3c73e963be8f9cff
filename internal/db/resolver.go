package db

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/vvka-141/pgload/internal/config"
	"github.com/vvka-141/pgload/pkg/pgload"
)

// GranularConnFlags represents connection parameters from CLI flags.
// These follow PostgreSQL standard flag conventions (-h, -p, -U, -d).
//
// Password is not a flag. Use $PGPASSWORD, ~/.pgpass or a connection
// string with an embedded password.
type GranularConnFlags struct {
	Host     string
	Port     int
	Username string
	Database string
	SSLMode  string
}

// IsEmpty returns true if no connection-related granular flags were provided.
// Database is excluded so -d can override the database of a connection string.
func (g *GranularConnFlags) IsEmpty() bool {
	return g.Host == "" && g.Port == 0 && g.Username == "" && g.SSLMode == ""
}

// AuthFlags selects and configures cloud authentication from the CLI.
// Secrets are never flags; AZURE_CLIENT_SECRET comes from the environment.
type AuthFlags struct {
	Method         string // standard, aws, google, azure
	AWSRegion      string
	GoogleInstance string
	AzureTenantID  string
	AzureClientID  string
}

// IsEmpty returns true if no auth flags were provided.
func (a *AuthFlags) IsEmpty() bool {
	return a == nil || (a.Method == "" && a.AWSRegion == "" && a.GoogleInstance == "" &&
		a.AzureTenantID == "" && a.AzureClientID == "")
}

// EnvVars represents PostgreSQL standard environment variables.
// See: https://www.postgresql.org/docs/current/libpq-envars.html
type EnvVars struct {
	PGHOST       string
	PGPORT       string
	PGUSER       string
	PGPASSWORD   string
	PGDATABASE   string
	PGSSLMODE    string
	PGAPPNAME    string
	DATABASE_URL string // Heroku/Rails convention

	AWS_REGION string

	// Azure SDK standard names
	AZURE_TENANT_ID     string
	AZURE_CLIENT_ID     string
	AZURE_CLIENT_SECRET string
}

// LoadFromEnvironment reads the PostgreSQL and cloud provider variables.
func LoadFromEnvironment() *EnvVars {
	return &EnvVars{
		PGHOST:              os.Getenv("PGHOST"),
		PGPORT:              os.Getenv("PGPORT"),
		PGUSER:              os.Getenv("PGUSER"),
		PGPASSWORD:          os.Getenv("PGPASSWORD"),
		PGDATABASE:          os.Getenv("PGDATABASE"),
		PGSSLMODE:           os.Getenv("PGSSLMODE"),
		PGAPPNAME:           os.Getenv("PGAPPNAME"),
		DATABASE_URL:        os.Getenv("DATABASE_URL"),
		AWS_REGION:          os.Getenv("AWS_REGION"),
		AZURE_TENANT_ID:     os.Getenv("AZURE_TENANT_ID"),
		AZURE_CLIENT_ID:     os.Getenv("AZURE_CLIENT_ID"),
		AZURE_CLIENT_SECRET: os.Getenv("AZURE_CLIENT_SECRET"),
	}
}

// HasAzureCredentials returns true if Azure Entra ID environment variables are set.
func (e *EnvVars) HasAzureCredentials() bool {
	return e.AZURE_TENANT_ID != "" || e.AZURE_CLIENT_ID != ""
}

// ParseAuthMethod maps a flag or config spelling to an AuthMethod.
func ParseAuthMethod(s string) (pgload.AuthMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard", "password":
		return pgload.AuthMethodStandard, nil
	case "aws", "aws-iam", "iam":
		return pgload.AuthMethodAWSIAM, nil
	case "google", "gcp", "cloudsql":
		return pgload.AuthMethodGoogleIAM, nil
	case "azure", "entra", "azure-entra-id":
		return pgload.AuthMethodAzureEntraID, nil
	}
	return pgload.AuthMethodStandard, fmt.Errorf("unknown auth method %q (want standard, aws, google or azure): %w", s, pgload.ErrInvalidConfig)
}

// ResolveConnectionParams resolves connection parameters using PostgreSQL-standard precedence:
//
//  1. Connection string flag (--connection), parsed and used directly
//  2. DATABASE_URL, when no granular flags are given
//  3. Per parameter: granular flag > PG* environment > pgload.yaml > default
//
// -d always overrides the database. Cloud authentication is applied last:
// flags > pgload.yaml > environment for the method and its settings.
//
// Returns an error if both --connection and granular flags are provided.
func ResolveConnectionParams(
	connStringFlag string,
	granularFlags *GranularConnFlags,
	authFlags *AuthFlags,
	envVars *EnvVars,
	projectConfig *config.ProjectConfig,
) (*pgload.ConnectionConfig, error) {
	if granularFlags == nil {
		granularFlags = &GranularConnFlags{}
	}
	if authFlags == nil {
		authFlags = &AuthFlags{}
	}
	if envVars == nil {
		envVars = &EnvVars{}
	}
	var pc config.ConnectionConfig
	if projectConfig != nil {
		pc = projectConfig.Connection
	}

	if connStringFlag != "" && !granularFlags.IsEmpty() {
		return nil, fmt.Errorf(
			"cannot specify both --connection and granular flags (-h, -p, -U)\n"+
				"Choose one approach:\n"+
				"  1. Connection string: --connection \"postgresql://user@localhost:5432/mydb\"\n"+
				"  2. Granular flags: -h localhost -p 5432 -U myuser -d mydb\n"+
				"  3. Environment variables: export PGHOST=localhost PGPORT=5432 PGUSER=myuser: %w",
			pgload.ErrInvalidConfig,
		)
	}

	var cfg *pgload.ConnectionConfig
	var err error

	switch {
	case connStringFlag != "":
		cfg, err = resolveFromConnectionString(connStringFlag, envVars)
	case granularFlags.IsEmpty() && envVars.DATABASE_URL != "":
		cfg, err = resolveFromConnectionString(envVars.DATABASE_URL, envVars)
	default:
		cfg, err = resolveFromGranularParams(granularFlags, envVars, pc)
	}
	if err != nil {
		return nil, err
	}

	if granularFlags.Database != "" {
		cfg.Database = granularFlags.Database
	}
	if cfg.AppName == "" {
		cfg.AppName = envVars.PGAPPNAME
	}
	if cfg.AppName == "" {
		cfg.AppName = "pgload"
	}

	if err := applyAuth(cfg, authFlags, envVars, pc); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// applyAuth sets the auth method and its cloud settings. Azure is implied
// when Azure identifiers are present and no method was chosen explicitly.
func applyAuth(cfg *pgload.ConnectionConfig, flags *AuthFlags, env *EnvVars, pc config.ConnectionConfig) error {
	method, err := ParseAuthMethod(firstNonEmpty(flags.Method, pc.AuthMethod))
	if err != nil {
		return err
	}

	tenantID := firstNonEmpty(flags.AzureTenantID, pc.AzureTenantID, env.AZURE_TENANT_ID)
	clientID := firstNonEmpty(flags.AzureClientID, pc.AzureClientID, env.AZURE_CLIENT_ID)
	if method == pgload.AuthMethodStandard && flags.Method == "" && pc.AuthMethod == "" && (tenantID != "" || clientID != "") {
		method = pgload.AuthMethodAzureEntraID
	}

	cfg.AuthMethod = method
	switch method {
	case pgload.AuthMethodAzureEntraID:
		cfg.AzureTenantID = tenantID
		cfg.AzureClientID = clientID
		cfg.AzureClientSecret = env.AZURE_CLIENT_SECRET
	case pgload.AuthMethodAWSIAM:
		cfg.AWSRegion = firstNonEmpty(flags.AWSRegion, pc.AWSRegion, env.AWS_REGION)
	case pgload.AuthMethodGoogleIAM:
		cfg.GoogleInstance = firstNonEmpty(flags.GoogleInstance, pc.GoogleInstance)
	}
	return nil
}

// resolveFromConnectionString parses a connection string. PGSSLMODE fills in
// sslmode when the string leaves it out, like libpq.
func resolveFromConnectionString(connStr string, envVars *EnvVars) (*pgload.ConnectionConfig, error) {
	cfg, err := ParseConnectionString(connStr)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	if !hasSSLMode(connStr) && envVars.PGSSLMODE != "" {
		cfg.SSLMode = envVars.PGSSLMODE
	}
	return cfg, nil
}

func hasSSLMode(connStr string) bool {
	lower := strings.ToLower(connStr)
	return strings.Contains(lower, "sslmode=") || strings.Contains(lower, "ssl mode=")
}

// resolveFromGranularParams builds a ConnectionConfig one parameter at a time:
// flag > environment > pgload.yaml > default.
func resolveFromGranularParams(flags *GranularConnFlags, envVars *EnvVars, pc config.ConnectionConfig) (*pgload.ConnectionConfig, error) {
	cfg := &pgload.ConnectionConfig{
		AuthMethod:       pgload.AuthMethodStandard,
		AdditionalParams: make(map[string]string),
	}

	cfg.Host = firstNonEmpty(flags.Host, envVars.PGHOST, pc.Host, "localhost")

	switch {
	case flags.Port != 0:
		cfg.Port = flags.Port
	case envVars.PGPORT != "":
		port, err := strconv.Atoi(envVars.PGPORT)
		if err != nil {
			return nil, fmt.Errorf("invalid $PGPORT value '%s': must be an integer: %w", envVars.PGPORT, pgload.ErrInvalidConfig)
		}
		cfg.Port = port
	case pc.Port != 0:
		cfg.Port = pc.Port
	default:
		cfg.Port = 5432
	}

	cfg.Username = firstNonEmpty(flags.Username, envVars.PGUSER, pc.Username, os.Getenv("USER"), os.Getenv("USERNAME"))
	cfg.Password = envVars.PGPASSWORD
	cfg.Database = firstNonEmpty(flags.Database, envVars.PGDATABASE, pc.Database, "postgres")
	cfg.SSLMode = firstNonEmpty(flags.SSLMode, envVars.PGSSLMODE, pc.SSLMode, "prefer")

	return cfg, nil
}
