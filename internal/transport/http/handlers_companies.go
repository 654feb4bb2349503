package httptransport

import (
	"net/http"

	"clusterreport/internal/cluster"
	"clusterreport/pkg/platform/httputil"
)

// companyView is the listing entry shown to operators when they pick which
// companies a report should cover.
type companyView struct {
	ID     string `json:"id"`
	Login  string `json:"login"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Active bool   `json:"active"`
}

func (h *Handler) handleCompanies(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[connectRequest](w, r)
	if !ok {
		return
	}

	cred, err := h.svc.Connect(r.Context(), req.APIKey, req.Cluster, req.Domain)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	companies, err := h.svc.Companies(r.Context(), cred)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	views := make([]companyView, 0, len(companies))
	for _, c := range companies {
		views = append(views, toCompanyView(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"companies": views})
}

func toCompanyView(c cluster.Company) companyView {
	return companyView{
		ID:     c.ID.String(),
		Login:  c.Login,
		Name:   c.DisplayName(),
		Status: c.Status,
		Active: c.IsActive(),
	}
}
