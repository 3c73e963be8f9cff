package pgload

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LoadMode selects the write strategy for a whole dispatcher run.
type LoadMode int

const (
	// ModeBulk streams every batch through one binary COPY; atomic per batch,
	// fails on duplicate keys.
	ModeBulk LoadMode = iota
	// ModeMerge inserts or updates row by row on the record's key field.
	ModeMerge
)

// String returns the flag spelling of the mode.
func (m LoadMode) String() string {
	switch m {
	case ModeBulk:
		return "bulk"
	case ModeMerge:
		return "merge"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ParseLoadMode parses "bulk"/"copy" or "merge"/"upsert".
func ParseLoadMode(s string) (LoadMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "bulk", "copy", "append", "":
		return ModeBulk, nil
	case "merge", "upsert":
		return ModeMerge, nil
	}
	return ModeBulk, fmt.Errorf("unknown load mode %q (want bulk or merge): %w", s, ErrInvalidConfig)
}

// LoadConfig contains all parameters needed for one scan-and-load run.
type LoadConfig struct {
	// SourcePath is the root directory scanned for files
	SourcePath string

	// Extension is the file extension to ingest, with the leading dot (".xml").
	// Compared case-insensitively.
	Extension string

	// SchemaPath points to the record type registry (YAML)
	SchemaPath string

	// ConnectionString is the PostgreSQL connection string (URI or ADO.NET format)
	ConnectionString string

	// Mode selects bulk append or merge upsert for the whole run
	Mode LoadMode

	// ScanWorkers and LoadWorkers size the two worker pools independently
	ScanWorkers int
	LoadWorkers int

	// MaxAwaiting is the queue length above which scanner workers back off
	// (0 = DefaultMaxAwaiting; the smallest effective threshold is 1)
	MaxAwaiting int

	// Backoff is the scanner sleep interval while the queue is over MaxAwaiting
	Backoff time.Duration

	// TimestampFormat is a Go time layout used to render timestamps in statement previews
	TimestampFormat string

	// AtomicMerge wraps each merge batch in a single transaction
	AtomicMerge bool

	// Timeout bounds the whole run (0 = no limit)
	Timeout time.Duration

	// Verbose enables detailed logging
	Verbose bool

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is used when AuthMethod is AuthMethodAWSIAM
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance (project:region:instance) for AuthMethodGoogleIAM
	GoogleInstance string
}

// ApplyDefaults fills zero-valued tuning fields with package defaults.
func (c *LoadConfig) ApplyDefaults() {
	if c.Extension == "" {
		c.Extension = DefaultExtension
	}
	if c.ScanWorkers == 0 {
		c.ScanWorkers = DefaultScanWorkers
	}
	if c.LoadWorkers == 0 {
		c.LoadWorkers = DefaultLoadWorkers
	}
	if c.MaxAwaiting == 0 {
		c.MaxAwaiting = DefaultMaxAwaiting
	}
	if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.TimestampFormat == "" {
		c.TimestampFormat = DefaultTimestampFormat
	}
}

// Validate checks if the LoadConfig has all required fields and valid values.
// It returns a multi-error if multiple validation failures occur.
func (c *LoadConfig) Validate() error {
	var errs []error

	if c.SourcePath == "" {
		errs = append(errs, fmt.Errorf("SourcePath is required: %w", ErrInvalidConfig))
	}

	if c.SchemaPath == "" {
		errs = append(errs, fmt.Errorf("SchemaPath is required: %w", ErrInvalidConfig))
	}

	if c.ConnectionString == "" {
		errs = append(errs, fmt.Errorf("ConnectionString is required: %w", ErrInvalidConfig))
	}

	if c.Extension != "" && !strings.HasPrefix(c.Extension, ".") {
		errs = append(errs, fmt.Errorf("extension %q must start with a dot: %w", c.Extension, ErrInvalidConfig))
	}

	if c.Mode != ModeBulk && c.Mode != ModeMerge {
		errs = append(errs, fmt.Errorf("unknown load mode %v: %w", c.Mode, ErrInvalidConfig))
	}

	if c.ScanWorkers < 1 {
		errs = append(errs, fmt.Errorf("scan workers must be at least 1: %w", ErrInvalidConfig))
	}

	if c.LoadWorkers < 1 {
		errs = append(errs, fmt.Errorf("load workers must be at least 1: %w", ErrInvalidConfig))
	}

	if c.MaxAwaiting < 0 {
		errs = append(errs, fmt.Errorf("max awaiting cannot be negative: %w", ErrInvalidConfig))
	}

	if c.Backoff < 0 {
		errs = append(errs, fmt.Errorf("backoff cannot be negative: %w", ErrInvalidConfig))
	}

	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout cannot be negative: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// Azure Entra ID authentication parameters.
	// If all three are provided, Service Principal authentication is used.
	// Otherwise the DefaultAzureCredential chain is used.
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string

	// AWSRegion is the region of the RDS instance for AWS IAM authentication
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance connection name
	GoogleInstance string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}

// RunSummary reports what a run did. Counters are final once Run returns.
type RunSummary struct {
	FilesClaimed  int64
	FilesSkipped  int64
	ParseFailures int64
	BatchesLoaded int64
	BatchesFailed int64
	RowsWritten   int64
	Duration      time.Duration
}

// Failed returns true if any file or batch failed during the run.
func (s RunSummary) Failed() bool {
	return s.ParseFailures > 0 || s.BatchesFailed > 0
}
