package cfg

import (
	"errors"
	"flag"
	"fmt"

	"github.com/linnemanlabs/beacon/internal/dispatch"
)

// Config adds beacon-specific configuration fields to the
// common cfg.Registerable and cfg.Validatable interfaces
type Config struct {
	DrainSeconds          int
	ShutdownBudgetSeconds int
	APIPort               int
	Environment           string
	JiraSecretFile        string
	APIToken              string
	DatabaseURL           string
	BatchFailMode         string
}

// RegisterFlags binds Config fields to the given FlagSet with defaults inline
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.DrainSeconds, "drain-seconds", 60, "seconds to wait for in-flight requests to drain before shutdown (1..300)")
	fs.IntVar(&c.ShutdownBudgetSeconds, "shutdown-budget-seconds", 90, "total seconds for component shutdown after drain (1..300)")
	fs.IntVar(&c.APIPort, "http-port", 8080, "API listen TCP port (1..65535)")
	fs.StringVar(&c.Environment, "environment", "dev", "environment name used to label created tickets (env-<name>)")
	fs.StringVar(&c.JiraSecretFile, "jira-secret-file", "/etc/beacon/jira-secret.json", "path to the JSON secret with Jira credentials")
	fs.StringVar(&c.APIToken, "api-token", "", "bearer token required on the ingestion API (empty = no auth)")
	fs.StringVar(&c.DatabaseURL, "database-url", "", "PostgreSQL connection URL for the outcome store (empty = in-memory store)")
	fs.StringVar(&c.BatchFailMode, "batch-fail-mode", string(dispatch.FailModeContinue), "batch failure semantics: continue or abort")
}

// Validate checks all configuration fields for correctness.
// It returns an error if any field is invalid, or nil if all fields are valid.
func (c *Config) Validate() error {
	var errs []error

	// Drain and shutdown budgets
	if c.DrainSeconds <= 0 || c.DrainSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid DRAIN_SECONDS %d (must be 1..300)", c.DrainSeconds))
	}
	if c.ShutdownBudgetSeconds <= 0 || c.ShutdownBudgetSeconds > 300 {
		errs = append(errs, fmt.Errorf("invalid SHUTDOWN_BUDGET_SECONDS %d (must be 1..300)", c.ShutdownBudgetSeconds))
	}

	// Shutdown budget must be greater than drain time
	if c.ShutdownBudgetSeconds <= c.DrainSeconds {
		errs = append(errs, fmt.Errorf("SHUTDOWN_BUDGET_SECONDS %d must be greater than DRAIN_SECONDS %d", c.ShutdownBudgetSeconds, c.DrainSeconds))
	}

	// API port must be valid TCP port number
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.APIPort))
	}

	// Environment feeds the env-<name> ticket label
	if c.Environment == "" {
		errs = append(errs, errors.New("ENVIRONMENT is required"))
	}

	// Jira credentials are loaded lazily, but the location must be known
	if c.JiraSecretFile == "" {
		errs = append(errs, errors.New("JIRA_SECRET_FILE is required"))
	}

	if _, err := dispatch.ParseFailMode(c.BatchFailMode); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
