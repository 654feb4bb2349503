// reportctl runs one booking report end to end from the command line:
// authenticate, pick companies, collect bookings, and write the CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"clusterreport/internal/bookings"
	"clusterreport/internal/cluster"
	"clusterreport/internal/credential"
	"clusterreport/internal/export"
	"clusterreport/internal/platform/config"
	"clusterreport/internal/platform/logger"
	"clusterreport/internal/report"
	"clusterreport/pkg/platform/circuit"
)

func main() {
	var (
		apiKey      = flag.String("key", os.Getenv("REPORT_API_KEY"), "cluster API key (defaults to REPORT_API_KEY)")
		clusterName = flag.String("cluster", "", "cluster name")
		domain      = flag.String("domain", "simplybook.me", "installation domain")
		companies   = flag.String("companies", "", "comma-separated company logins; empty means every active company")
		status      = flag.String("status", "", "booking status filter")
		dateFrom    = flag.String("from", "", "booking date from (YYYY-MM-DD)")
		dateTo      = flag.String("to", "", "booking date to (YYYY-MM-DD)")
		createdFrom = flag.String("created-from", "", "creation date from (YYYY-MM-DD)")
		createdTo   = flag.String("created-to", "", "creation date to (YYYY-MM-DD)")
		out         = flag.String("out", "", "output path; defaults to the generated report filename")
		unionSchema = flag.Bool("union-schema", false, "build CSV columns from every record instead of the first")
	)
	flag.Parse()

	if *clusterName == "" {
		fmt.Fprintln(os.Stderr, "reportctl: -cluster is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	creds := credential.NewFileStore(cfg.StateDir)
	clusterClient := cluster.New(cluster.BaseURL(*domain), cfg.ClientTimeout,
		cluster.WithInvalidator(creds),
	)
	bookingsClient := bookings.NewClient(bookings.UserBaseURL(*domain), cfg.ClientTimeout,
		bookings.WithInvalidator(creds),
	)
	collector := bookings.NewCollector(bookingsClient,
		bookings.WithLogger(log),
		bookings.WithBreaker(circuit.New("bookings-direct")),
		bookings.WithPoller(bookings.NewPoller(bookingsClient,
			bookings.WithInterval(cfg.PollInterval),
			bookings.WithMaxAttempts(cfg.PollAttempts),
			bookings.WithPollerLogger(log),
		)),
	)
	svc := report.New(clusterClient, collector, creds, report.NewInMemoryRunStore(),
		report.WithLogger(log),
	)

	logins := splitLogins(*companies)
	if len(logins) == 0 {
		cred, err := svc.Connect(ctx, *apiKey, *clusterName, *domain)
		if err != nil {
			fatal(err)
		}
		listed, err := svc.Companies(ctx, cred)
		if err != nil {
			fatal(err)
		}
		for _, c := range listed {
			if c.IsActive() {
				logins = append(logins, c.Login)
			}
		}
		fmt.Fprintf(os.Stderr, "collecting from all %d active companies\n", len(logins))
	}

	params := report.Params{
		APIKey:    *apiKey,
		Cluster:   *clusterName,
		Domain:    *domain,
		Companies: logins,
		Filter: bookings.Filter{
			Status:      *status,
			DateFrom:    *dateFrom,
			DateTo:      *dateTo,
			CreatedFrom: *createdFrom,
			CreatedTo:   *createdTo,
		},
	}

	cb := report.Callbacks{
		Progress: func(percent int, message string) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", percent, message)
		},
		Status: func(login string, outcome report.StatusOutcome, message string) {
			fmt.Fprintf(os.Stderr, "       %s: %s\n", login, message)
		},
	}

	run, err := svc.Generate(ctx, params, cb)
	if err != nil {
		fatal(err)
	}

	for _, runErr := range run.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s failed at %s stage: %s\n", runErr.Company, runErr.Stage, runErr.Reason)
	}

	if !run.Exportable() {
		fmt.Fprintln(os.Stderr, "no bookings collected; nothing to export")
		os.Exit(1)
	}

	var flattenerOpts []export.FlattenerOption
	if *unionSchema {
		flattenerOpts = append(flattenerOpts, export.WithUnionSchema())
	}
	flattener := export.NewFlattener(flattenerOpts...)

	exportable := make([]export.CompanyBookings, 0, len(run.Results))
	for _, result := range run.Results {
		if !result.Failed {
			exportable = append(exportable, export.CompanyBookings{Login: result.Login, Bookings: result.Bookings})
		}
	}

	path := *out
	if path == "" {
		path = export.Filename(run.Cluster, time.Now())
	}
	if err := os.WriteFile(path, []byte(flattener.Render(exportable)), 0o644); err != nil {
		fatal(err)
	}

	fmt.Fprintf(os.Stderr, "wrote %d bookings from %d/%d companies to %s\n",
		run.TotalBookings, run.Successful(), len(run.Requested), path)
}

func splitLogins(raw string) []string {
	var logins []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			logins = append(logins, trimmed)
		}
	}
	return logins
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "reportctl:", err)
	os.Exit(1)
}
