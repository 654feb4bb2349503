package httptransport

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clusterreport/internal/bookings"
	"clusterreport/internal/cluster"
	"clusterreport/internal/credential"
	"clusterreport/internal/platform/health"
	"clusterreport/internal/report"
	dErrors "clusterreport/pkg/domain-errors"
)

type fakeService struct {
	connectErr  error
	companies   []cluster.Company
	startID     string
	startErr    error
	startParams report.Params
	runs        map[string]*report.Run
}

func (f *fakeService) Connect(_ context.Context, _, clusterName, domain string) (*credential.Credential, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &credential.Credential{Cluster: clusterName, Domain: domain}, nil
}

func (f *fakeService) Companies(context.Context, *credential.Credential) ([]cluster.Company, error) {
	return f.companies, nil
}

func (f *fakeService) Start(_ context.Context, params report.Params, _ report.Callbacks) (string, error) {
	f.startParams = params
	if f.startErr != nil {
		return "", f.startErr
	}
	return f.startID, nil
}

func (f *fakeService) Generate(_ context.Context, params report.Params, _ report.Callbacks) (*report.Run, error) {
	return nil, dErrors.New(dErrors.CodeInternal, "not used in transport tests")
}

func (f *fakeService) Run(_ context.Context, id string) (*report.Run, error) {
	if run, ok := f.runs[id]; ok {
		return run, nil
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "run not found")
}

func (f *fakeService) Runs(context.Context) ([]*report.Run, error) {
	runs := make([]*report.Run, 0, len(f.runs))
	for _, run := range f.runs {
		runs = append(runs, run)
	}
	return runs, nil
}

func newTestServer(t *testing.T, svc ReportService) (*httptest.Server, *ProgressHub) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewProgressHub()
	now := func() time.Time { return time.Date(2025, 3, 7, 9, 5, 0, 0, time.UTC) }
	handler := NewHandler(svc, hub, logger, WithNow(now))
	srv := httptest.NewServer(NewRouter(handler, health.New(), logger))
	t.Cleanup(srv.Close)
	return srv, hub
}

func completedRun() *report.Run {
	return &report.Run{
		ID:      "run-1",
		Cluster: "acme",
		Domain:  "simplybook.pro",
		State:   report.RunStateCompleted,
		Percent: 100,
		Message: "Report generation complete",
		Results: []report.CompanyResult{
			{Login: "spa", Bookings: []bookings.Record{{"id": float64(1), "code": "B-1"}}, TotalCount: 1},
			{Login: "gym", Failed: true, FailureReason: "api_error"},
		},
		TotalBookings: 1,
		Requested:     []string{"spa", "gym"},
		Errors:        []report.RunError{{Company: "gym", Stage: report.StageBookings, Reason: "api_error"}},
		StartedAt:     time.Date(2025, 3, 7, 9, 0, 0, 0, time.UTC),
	}
}

func TestStartRun(t *testing.T) {
	svc := &fakeService{startID: "run-9"}
	srv, _ := newTestServer(t, svc)

	t.Run("accepted", func(t *testing.T) {
		body := `{"api_key":"csk_1","cluster":"acme","domain":"simplybook.pro","companies":["spa"],"filter":{"date_from":"2025-01-01","date_to":"2025-01-31"}}`
		resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		var out map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		assert.Equal(t, "run-9", out["run_id"])

		assert.Equal(t, []string{"spa"}, svc.startParams.Companies)
		assert.Equal(t, "2025-01-01", svc.startParams.Filter.DateFrom)
	})

	t.Run("malformed body", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("validation error from service", func(t *testing.T) {
		svc.startErr = dErrors.New(dErrors.CodeValidation, "no companies selected")
		defer func() { svc.startErr = nil }()

		resp, err := http.Post(srv.URL+"/api/runs", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestGetRun(t *testing.T) {
	svc := &fakeService{runs: map[string]*report.Run{"run-1": completedRun()}}
	srv, _ := newTestServer(t, svc)

	t.Run("found", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/runs/run-1")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var run report.Run
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
		assert.Equal(t, "run-1", run.ID)
		assert.Equal(t, report.RunStateCompleted, run.State)
	})

	t.Run("missing", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/runs/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestListRuns(t *testing.T) {
	svc := &fakeService{runs: map[string]*report.Run{"run-1": completedRun()}}
	srv, _ := newTestServer(t, svc)

	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Runs []runSummary `json:"runs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Runs, 1)
	assert.Equal(t, 2, out.Runs[0].Requested)
	assert.Equal(t, 1, out.Runs[0].Successful)
	assert.Equal(t, 1, out.Runs[0].Errors)
	assert.Equal(t, 1, out.Runs[0].TotalBookings)
}

func TestExportRun(t *testing.T) {
	svc := &fakeService{runs: map[string]*report.Run{"run-1": completedRun()}}
	srv, _ := newTestServer(t, svc)

	t.Run("csv download", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/runs/run-1/export")
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="booking-report-acme-2025-03-07-0905.csv"`,
			resp.Header.Get("Content-Disposition"))

		rows, err := csv.NewReader(resp.Body).ReadAll()
		require.NoError(t, err)
		require.Len(t, rows, 2, "header plus one record; failed companies contribute nothing")
		assert.Equal(t, "company", rows[0][0])
		assert.Equal(t, "spa", rows[1][0])
	})

	t.Run("nothing to export", func(t *testing.T) {
		svc.runs["empty"] = &report.Run{
			ID:    "empty",
			State: report.RunStateCompleted,
		}
		resp, err := http.Get(srv.URL + "/api/runs/empty/export")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("still running", func(t *testing.T) {
		svc.runs["live"] = &report.Run{
			ID:            "live",
			State:         report.RunStateRunning,
			TotalBookings: 3,
		}
		resp, err := http.Get(srv.URL + "/api/runs/live/export")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestCompanies(t *testing.T) {
	svc := &fakeService{
		companies: []cluster.Company{
			{ID: "7", Login: "spa", Title: "Spa Retreat", Status: "active"},
			{ID: "8", Login: "gym", Status: "suspended"},
		},
	}
	srv, _ := newTestServer(t, svc)

	t.Run("listing", func(t *testing.T) {
		body := `{"api_key":"csk_1","cluster":"acme","domain":"simplybook.pro"}`
		resp, err := http.Post(srv.URL+"/api/companies", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()

		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out struct {
			Companies []companyView `json:"companies"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Len(t, out.Companies, 2)
		assert.Equal(t, "Spa Retreat", out.Companies[0].Name)
		assert.True(t, out.Companies[0].Active)
		assert.Equal(t, "gym", out.Companies[1].Name, "login fallback when the title is empty")
		assert.False(t, out.Companies[1].Active)
	})

	t.Run("auth failure", func(t *testing.T) {
		svc.connectErr = dErrors.New(dErrors.CodeAuth, "unknown api key")
		defer func() { svc.connectErr = nil }()

		resp, err := http.Post(srv.URL+"/api/companies", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
