package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path names the environment variable at fault (e.g. "DB_HOST",
// "DBT_NAME"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// Kinds lists the store kinds the job can connect to.
var Kinds = []string{"postgres", "mssql", "mysql", "sqlite"}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c and returns the issues found. It
// does not connect to anything.
func (c *Config) Validate() []Issue {
	var issues []Issue
	add := func(sev IssueSeverity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(c.SourcePrefix) == "" {
		add(SeverityError, "SOURCE_PREFIX", "must not be empty")
	}
	if strings.TrimSpace(c.TargetPrefix) == "" {
		add(SeverityError, "TARGET_PREFIX", "must not be empty")
	}
	if c.SourcePrefix != "" && c.SourcePrefix == c.TargetPrefix {
		add(SeverityError, "TARGET_PREFIX", "must differ from SOURCE_PREFIX (%q)", c.SourcePrefix)
	}

	needsServer := false
	for _, s := range []Side{c.Source, c.Target} {
		issues = append(issues, validateSide(s)...)
		if s.DSN == "" && s.Kind != "sqlite" {
			needsServer = true
		}
	}
	if needsServer {
		if strings.TrimSpace(c.DB.User) == "" {
			add(SeverityError, "DB_USER", "must be set")
		}
		if strings.TrimSpace(c.DB.Host) == "" {
			add(SeverityError, "DB_HOST", "must be set")
		}
		if c.DB.Port < 0 || c.DB.Port > 65535 {
			add(SeverityError, "DB_PORT", "must be between 1 and 65535, got %d", c.DB.Port)
		}
		if c.DB.Password == "" {
			add(SeverityWarning, "DB_PASS", "is empty")
		}
	}

	if c.Source.DSN == "" && c.Target.DSN == "" &&
		c.Source.Kind == c.Target.Kind && c.Source.Name != "" && c.Source.Name == c.Target.Name {
		add(SeverityWarning, c.TargetPrefix+"_NAME", "source and target are the same database %q", c.Source.Name)
	}

	switch c.CatalogMode {
	case "lazy", "eager":
	default:
		add(SeverityError, "CATALOG_MODE", "must be lazy or eager, got %q", c.CatalogMode)
	}
	if strings.TrimSpace(c.Job) == "" {
		add(SeverityError, "JOB_NAME", "must not be empty; it labels metrics and log records")
	}
	if c.BatchSize <= 0 {
		add(SeverityError, "BATCH_SIZE", "must be > 0, got %d", c.BatchSize)
	}

	if strings.TrimSpace(c.Log.File) == "" {
		add(SeverityError, "LOG_FILE", "must not be empty")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		add(SeverityError, "LOG_LEVEL", "%v", err)
	}

	switch c.Metrics.Backend {
	case "", "none":
	case "pushgateway":
		if c.Metrics.PushgatewayURL == "" {
			add(SeverityError, "PUSHGATEWAY_URL", "required when METRICS_BACKEND=pushgateway")
		}
	case "datadog":
		if c.Metrics.DatadogAddr == "" {
			add(SeverityError, "DD_AGENT_ADDR", "required when METRICS_BACKEND=datadog")
		}
	default:
		add(SeverityWarning, "METRICS_BACKEND", "unknown backend %q; metrics will be disabled", c.Metrics.Backend)
	}

	return issues
}

func validateSide(s Side) []Issue {
	var issues []Issue
	known := false
	for _, k := range Kinds {
		if s.Kind == k {
			known = true
		}
	}
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     s.Prefix + "_KIND",
			Message:  fmt.Sprintf("unknown kind %q; want one of %s", s.Kind, strings.Join(Kinds, ", ")),
		})
	}
	if s.DSN == "" && s.Name == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     s.Prefix + "_NAME",
			Message:  "must be set (or provide " + s.Prefix + "_DSN)",
		})
	}
	return issues
}
