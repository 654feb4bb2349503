package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"clusterreport/internal/bookings"
	dErrors "clusterreport/pkg/domain-errors"
)

func TestParamsNormalize(t *testing.T) {
	p := Params{
		APIKey:    " csk_1 ",
		Cluster:   " acme",
		Domain:    "simplybook.pro ",
		Companies: []string{" Spa", "GYM", "spa", "", "gym "},
	}
	p.Normalize()

	assert.Equal(t, "csk_1", p.APIKey)
	assert.Equal(t, "acme", p.Cluster)
	assert.Equal(t, "simplybook.pro", p.Domain)
	assert.Equal(t, []string{"spa", "gym"}, p.Companies)
}

func TestParamsValidate(t *testing.T) {
	valid := Params{Cluster: "acme", Domain: "simplybook.pro", Companies: []string{"spa"}}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"missing cluster", func(p *Params) { p.Cluster = "" }},
		{"missing domain", func(p *Params) { p.Domain = "" }},
		{"no companies", func(p *Params) { p.Companies = nil }},
		{"inverted date range", func(p *Params) {
			p.Filter = bookings.Filter{DateFrom: "2025-02-01", DateTo: "2025-01-01"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			err := p.Validate()
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "got %v", err)
		})
	}
}

func TestRunHelpers(t *testing.T) {
	run := &Run{
		State:         RunStateCompleted,
		TotalBookings: 2,
		Results: []CompanyResult{
			{Login: "spa", Bookings: []bookings.Record{{"id": 1}, {"id": 2}}, TotalCount: 2},
			{Login: "gym", Failed: true, FailureReason: "auth_failed"},
		},
	}

	assert.Equal(t, 1, run.Successful())
	assert.True(t, run.Exportable())

	result, ok := run.Result("gym")
	assert.True(t, ok)
	assert.True(t, result.Failed)

	_, ok = run.Result("pool")
	assert.False(t, ok)

	run.TotalBookings = 0
	assert.False(t, run.Exportable(), "a run with zero bookings has nothing to export")
}
