package bookings

import (
	"net/url"
	"time"

	dErrors "clusterreport/pkg/domain-errors"
)

const dateLayout = "2006-01-02"

// Filter narrows a booking collection. All fields are optional; date ranges
// are inclusive and the created range is independent of the booking range.
type Filter struct {
	Status      string `json:"status,omitempty"`
	DateFrom    string `json:"date_from,omitempty"`
	DateTo      string `json:"date_to,omitempty"`
	CreatedFrom string `json:"created_date_from,omitempty"`
	CreatedTo   string `json:"created_date_to,omitempty"`
}

// Validate rejects malformed dates and inverted ranges. It must pass before
// any network call is made.
func (f Filter) Validate() error {
	if err := validateRange(f.DateFrom, f.DateTo, "date"); err != nil {
		return err
	}
	return validateRange(f.CreatedFrom, f.CreatedTo, "created date")
}

func validateRange(from, to, label string) error {
	var fromT, toT time.Time
	var err error

	if from != "" {
		if fromT, err = time.Parse(dateLayout, from); err != nil {
			return dErrors.New(dErrors.CodeValidation, label+` "from" must be YYYY-MM-DD`)
		}
	}
	if to != "" {
		if toT, err = time.Parse(dateLayout, to); err != nil {
			return dErrors.New(dErrors.CodeValidation, label+` "to" must be YYYY-MM-DD`)
		}
	}
	if from != "" && to != "" && fromT.After(toT) {
		return dErrors.New(dErrors.CodeValidation, label+` "from" cannot be later than "to"`)
	}
	return nil
}

// query encodes the filter as filter[...] parameters for the bookings
// listing endpoint.
func (f Filter) query(q url.Values) {
	set := func(key, value string) {
		if value != "" {
			q.Set("filter["+key+"]", value)
		}
	}
	set("status", f.Status)
	set("date_from", f.DateFrom)
	set("date_to", f.DateTo)
	set("created_date_from", f.CreatedFrom)
	set("created_date_to", f.CreatedTo)
}
