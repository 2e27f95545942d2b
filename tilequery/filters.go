package tilequery

import (
	"net/url"
	"strings"
)

// GeometryField is the filter key carrying a WKT shape drawn on the map.
const GeometryField = "_tmgeom"

// Filter restricts one field to a set of values. For GeometryField the values
// are WKT geometries in EPSG:4326.
type Filter struct {
	Field  string
	Values []string
}

// Filters keeps filters in the order their fields first appeared.
type Filters []Filter

// ParseFilters parses the view filter syntax "field:value|field:value".
// Percent-escapes are decoded, entries without a colon are skipped and
// repeated fields accumulate values.
func ParseFilters(raw string) Filters {
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}

	var filters Filters
	index := map[string]int{}
	for _, entry := range strings.Split(raw, "|") {
		field, value, ok := strings.Cut(entry, ":")
		if !ok || field == "" {
			continue
		}
		if i, seen := index[field]; seen {
			filters[i].Values = append(filters[i].Values, value)
			continue
		}
		index[field] = len(filters)
		filters = append(filters, Filter{Field: field, Values: []string{value}})
	}
	return filters
}

// Add appends value to field, keeping first-appearance order.
func (f Filters) Add(field, value string) Filters {
	for i := range f {
		if f[i].Field == field {
			f[i].Values = append(f[i].Values, value)
			return f
		}
	}
	return append(f, Filter{Field: field, Values: []string{value}})
}

// Get returns the values of field.
func (f Filters) Get(field string) []string {
	for _, filter := range f {
		if filter.Field == field {
			return filter.Values
		}
	}
	return nil
}

// String renders the filters back into view syntax without escaping.
func (f Filters) String() string {
	var parts []string
	for _, filter := range f {
		for _, v := range filter.Values {
			parts = append(parts, filter.Field+":"+v)
		}
	}
	return strings.Join(parts, "|")
}
