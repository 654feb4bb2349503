package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"clusterreport/internal/platform/config"
)

// Credential is the cached cluster token together with the scope it was
// issued for. The token is usable only while Now < ExpiresAt and only for
// the exact (cluster, domain) pair.
type Credential struct {
	Token     string    `json:"token"`
	APIKey    string    `json:"apiKey"`
	Cluster   string    `json:"cluster"`
	Domain    string    `json:"domain"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// New builds a credential with the conservative client-side reuse window
// applied. The window is 30 minutes from acquisition regardless of the
// server's own token lifetime, except that a JWT token carrying an earlier
// exp claim clamps the window down. The claim is read unverified; it only
// ever shortens the window, never extends it.
func New(token, apiKey, cluster, domain string, now time.Time) *Credential {
	expires := now.Add(config.CredentialTTL)
	if exp, ok := tokenExpiry(token); ok && exp.Before(expires) {
		expires = exp
	}
	return &Credential{
		Token:     token,
		APIKey:    apiKey,
		Cluster:   cluster,
		Domain:    domain,
		ExpiresAt: expires,
	}
}

// Expired reports whether the reuse window has closed.
func (c *Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Scoped reports whether the credential was issued for the given pair.
func (c *Credential) Scoped(cluster, domain string) bool {
	return c.Cluster == cluster && c.Domain == domain
}

func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
