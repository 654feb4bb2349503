package httptransport

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"clusterreport/internal/export"
	"clusterreport/internal/report"
	dErrors "clusterreport/pkg/domain-errors"
	"clusterreport/pkg/platform/httputil"
)

func (h *Handler) handleStartRun(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[startRunRequest](w, r)
	if !ok {
		return
	}

	// The run id is only known after Start returns, so the callbacks read it
	// through an atomic. Events fired before the id is set have no possible
	// subscriber yet (clients subscribe with the id from this response) and
	// socket clients receive a store snapshot on connect anyway.
	var runID atomic.Value
	cb := report.Callbacks{
		Progress: func(percent int, message string) {
			if id, idSet := runID.Load().(string); idSet {
				h.hub.Publish(id, Event{Type: EventProgress, RunID: id, Percent: percent, Message: message})
			}
		},
		Status: func(login string, outcome report.StatusOutcome, message string) {
			if id, idSet := runID.Load().(string); idSet {
				h.hub.Publish(id, Event{Type: EventStatus, RunID: id, Company: login, Outcome: string(outcome), Message: message})
			}
		},
	}

	id, err := h.svc.Start(r.Context(), report.Params{
		APIKey:    req.APIKey,
		Cluster:   req.Cluster,
		Domain:    req.Domain,
		Companies: req.Companies,
		Filter:    req.Filter,
	}, cb)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	runID.Store(id)

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": id})
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.svc.Runs(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summaries := make([]runSummary, 0, len(runs))
	for _, run := range runs {
		summaries = append(summaries, summarize(run))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": summaries})
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func (h *Handler) handleExportRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !run.Exportable() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeConflict, "run has no bookings to export"))
		return
	}

	companies := make([]export.CompanyBookings, 0, len(run.Results))
	for _, result := range run.Results {
		if result.Failed {
			continue
		}
		companies = append(companies, export.CompanyBookings{
			Login:    result.Login,
			Bookings: result.Bookings,
		})
	}

	body := export.NewFlattener().Render(companies)
	filename := export.Filename(run.Cluster, h.now())

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		h.logger.Warn("failed to write export body", "run_id", run.ID, "error", err)
	}
}

// runSummary is the list view of a run, without per-company booking payloads.
type runSummary struct {
	ID            string          `json:"id"`
	Cluster       string          `json:"cluster"`
	Domain        string          `json:"domain"`
	State         report.RunState `json:"state"`
	Percent       int             `json:"percent"`
	Message       string          `json:"message"`
	Requested     int             `json:"requested"`
	Successful    int             `json:"successful"`
	TotalBookings int             `json:"total_bookings"`
	Errors        int             `json:"errors"`
	StartedAt     string          `json:"started_at"`
}

func summarize(run *report.Run) runSummary {
	return runSummary{
		ID:            run.ID,
		Cluster:       run.Cluster,
		Domain:        run.Domain,
		State:         run.State,
		Percent:       run.Percent,
		Message:       run.Message,
		Requested:     len(run.Requested),
		Successful:    run.Successful(),
		TotalBookings: run.TotalBookings,
		Errors:        len(run.Errors),
		StartedAt:     run.StartedAt.UTC().Format(time.RFC3339),
	}
}
