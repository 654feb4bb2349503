package cluster

import "encoding/json"

// CompanyStatusActive is the only status the listing distinguishes; anything
// else is rendered as-is but treated as "other".
const CompanyStatusActive = "active"

// Company is an immutable snapshot of one tenant account from the cluster
// listing. Identity is Login.
type Company struct {
	ID     json.Number `json:"id"`
	Login  string      `json:"login"`
	Title  string      `json:"title"`
	Status string      `json:"status"`
}

// IsActive reports whether the company is in active status.
func (c Company) IsActive() bool {
	return c.Status == CompanyStatusActive
}

// DisplayName is the title with a login fallback, matching how the listing
// is presented to operators.
func (c Company) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Login
}
