// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import "fmt"

// ValidationError is one configuration problem. Level "error" fails
// Load; "warning" is only ever surfaced to a caller that inspects
// ValidateConfiguration directly.
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

// ValidateConfiguration checks cfg for problems Load's layered
// defaulting can't catch on its own (present sections, but with a
// value nothing downstream can act on).
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Transport != nil {
		switch cfg.Transport.Kind {
		case "memdag":
		case "wsrelay":
			if cfg.Transport.ListenAddr == "" && cfg.Transport.DialURL == "" {
				errs = append(errs, ValidationError{
					Field:   "transport",
					Message: "wsrelay transport needs listen_addr (server) or dial_url (client)",
					Level:   "error",
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   "transport.kind",
				Message: fmt.Sprintf("unknown transport kind %q, want memdag or wsrelay", cfg.Transport.Kind),
				Level:   "error",
			})
		}
	}

	if cfg.Persistence != nil {
		switch cfg.Persistence.Backend {
		case "file":
		case "postgres":
			if cfg.Persistence.Postgres == nil {
				errs = append(errs, ValidationError{
					Field:   "persistence.postgres",
					Message: "postgres backend selected but persistence.postgres is unset",
					Level:   "error",
				})
			}
		default:
			errs = append(errs, ValidationError{
				Field:   "persistence.backend",
				Message: fmt.Sprintf("unknown persistence backend %q, want file or postgres", cfg.Persistence.Backend),
				Level:   "error",
			})
		}
	}

	if cfg.Lobby != nil && cfg.Lobby.MaxMembers < 0 {
		errs = append(errs, ValidationError{
			Field:   "lobby.max_members",
			Message: "max_members must not be negative",
			Level:   "error",
		})
	}

	if cfg.Handover != nil && cfg.Handover.ScanBudgetSeconds < 0 {
		errs = append(errs, ValidationError{
			Field:   "handover.scan_budget_seconds",
			Message: "scan_budget_seconds must not be negative",
			Level:   "error",
		})
	}

	if cfg.Metrics != nil && cfg.Metrics.Enabled && cfg.Metrics.Addr == "" {
		errs = append(errs, ValidationError{
			Field:   "metrics.addr",
			Message: "metrics enabled but addr is empty",
			Level:   "warning",
		})
	}

	return errs
}
