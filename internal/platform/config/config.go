package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration for the report service.
// Domain pins the SimplyBook installation the process talks to; cluster and
// credentials arrive per request.
type Server struct {
	Addr          string
	Domain        string
	StateDir      string
	ClientTimeout time.Duration
	PollInterval  time.Duration
	PollAttempts  int
}

// Defaults mirror the external API contract: companies come 50 per page,
// bookings 100 per page, and report jobs are polled every 5 seconds for at
// most 60 attempts (a 5 minute ceiling).
var (
	CompanyPageSize = 50
	BookingPageSize = 100
	PollInterval    = 5 * time.Second
	PollAttempts    = 60
	CredentialTTL   = 30 * time.Minute
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("REPORT_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	domain := os.Getenv("REPORT_DOMAIN")
	if domain == "" {
		domain = "simplybook.me"
	}

	stateDir := os.Getenv("REPORT_STATE_DIR")
	if stateDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			stateDir = dir
		} else {
			stateDir = "."
		}
	}

	clientTimeout := 30 * time.Second
	if raw := os.Getenv("REPORT_CLIENT_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			clientTimeout = d
		}
	}

	if raw := os.Getenv("REPORT_POLL_INTERVAL"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			PollInterval = d
		}
	}
	if raw := os.Getenv("REPORT_POLL_ATTEMPTS"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			PollAttempts = n
		}
	}

	return Server{
		Addr:          addr,
		Domain:        domain,
		StateDir:      stateDir,
		ClientTimeout: clientTimeout,
		PollInterval:  PollInterval,
		PollAttempts:  PollAttempts,
	}
}
