// Package export flattens the heterogeneous booking records collected by a
// report run into a single rectangular CSV.
package export

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"clusterreport/internal/bookings"
)

// priorityColumns are ordered first in the derived schema when present.
// Everything else discovered in the schema record follows lexicographically.
var priorityColumns = []string{
	"company",
	"code",
	"record_date",
	"date_start",
	"time",
	"event_name",
	"unit_name",
	"client_name",
	"client_email",
}

// CompanyBookings pairs one company's login with its collected bookings, in
// the order they were appended to the aggregate.
type CompanyBookings struct {
	Login    string
	Bookings []bookings.Record
}

// Flattener renders company bookings as CSV. By default the column schema
// is derived from the first record encountered; fields that only appear in
// later records are dropped. WithUnionSchema switches to the union of every
// record's fields instead.
type Flattener struct {
	unionSchema bool
}

// FlattenerOption configures the Flattener.
type FlattenerOption func(*Flattener)

// WithUnionSchema derives the schema from all records instead of the first.
func WithUnionSchema() FlattenerOption {
	return func(f *Flattener) {
		f.unionSchema = true
	}
}

// NewFlattener builds a Flattener.
func NewFlattener(opts ...FlattenerOption) *Flattener {
	f := &Flattener{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Render produces the full CSV text: header row plus one row per booking
// across all companies, newline-joined. Companies are iterated in slice
// order and records in server-returned order, so the schema record is the
// first booking of the first company with data.
func (f *Flattener) Render(companies []CompanyBookings) string {
	var flattened []map[string]string
	for _, company := range companies {
		for _, record := range company.Bookings {
			flattened = append(flattened, flattenRecord(company.Login, record))
		}
	}
	if len(flattened) == 0 {
		return ""
	}

	schema := f.deriveSchema(flattened)

	var b strings.Builder
	writeRow(&b, schema)
	for _, row := range flattened {
		b.WriteByte('\n')
		values := make([]string, len(schema))
		for i, column := range schema {
			values[i] = row[column]
		}
		writeRow(&b, values)
	}
	return b.String()
}

// deriveSchema orders priority columns first, then the remaining discovered
// fields lexicographically.
func (f *Flattener) deriveSchema(flattened []map[string]string) []string {
	fields := make(map[string]bool)
	if f.unionSchema {
		for _, row := range flattened {
			for key := range row {
				fields[key] = true
			}
		}
	} else {
		for key := range flattened[0] {
			fields[key] = true
		}
	}

	schema := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, column := range priorityColumns {
		if fields[column] {
			schema = append(schema, column)
			seen[column] = true
		}
	}

	rest := make([]string, 0, len(fields))
	for key := range fields {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	return append(schema, rest...)
}

// flattenRecord flattens one booking, tagging it with the owning company and
// deriving the date and time-of-day columns from its start timestamp.
func flattenRecord(login string, record bookings.Record) map[string]string {
	out := make(map[string]string)
	flattenValue("", map[string]any(record), out)
	out["company"] = login

	if start, ok := out["start_datetime"]; ok {
		date, timeOfDay, found := strings.Cut(start, " ")
		out["date_start"] = date
		if found {
			out["time"] = timeOfDay
		}
	}
	return out
}

// flattenValue recursively flattens a decoded JSON value. Nested mappings
// become parent_key_childKey columns, sequences join into one delimited
// string, booleans render as Yes/No, and nulls as empty strings.
func flattenValue(key string, value any, out map[string]string) {
	switch v := value.(type) {
	case map[string]any:
		for child, childValue := range v {
			childKey := child
			if key != "" {
				childKey = key + "_" + child
			}
			flattenValue(childKey, childValue, out)
		}
	case []any:
		parts := make([]string, len(v))
		for i, element := range v {
			parts[i] = scalarString(element)
		}
		out[key] = strings.Join(parts, ";")
	default:
		out[key] = scalarString(v)
	}
}

func scalarString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// writeRow appends one CSV row, escaping each field per standard rules: a
// value containing a comma, double quote, or newline is wrapped in double
// quotes with internal quotes doubled.
func writeRow(b *strings.Builder, values []string) {
	for i, value := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escape(value))
	}
}

func escape(value string) string {
	if strings.ContainsAny(value, ",\"\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}

// Filename names the exported artifact after the cluster and the moment of
// export.
func Filename(cluster string, now time.Time) string {
	return fmt.Sprintf("booking-report-%s-%s-%s.csv",
		cluster, now.Format("2006-01-02"), now.Format("1504"))
}
