package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "clusterreport/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", dErrors.New(dErrors.CodeValidation, "bad range"), http.StatusBadRequest, "validation_failed"},
		{"auth", dErrors.New(dErrors.CodeAuth, "bad key"), http.StatusUnauthorized, "auth_failed"},
		{"not found", dErrors.New(dErrors.CodeNotFound, "no run"), http.StatusNotFound, "not_found"},
		{"conflict", dErrors.New(dErrors.CodeConflict, "nothing to export"), http.StatusConflict, "conflict"},
		{"timeout", dErrors.New(dErrors.CodeTimeout, "job stuck"), http.StatusGatewayTimeout, "timeout"},
		{"upstream", dErrors.New(dErrors.CodeAPI, "500 from api"), http.StatusBadGateway, "api_error"},
		{"plain error falls back to 500", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.err)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantCode, body["error"])
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Cluster string `json:"cluster"`
	}

	t.Run("valid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"cluster":"acme"}`))

		got, ok := DecodeJSON[payload](rec, req)
		require.True(t, ok)
		assert.Equal(t, "acme", got.Cluster)
	})

	t.Run("malformed body writes 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))

		_, ok := DecodeJSON[payload](rec, req)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
