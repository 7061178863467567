package models

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringSet is a TEXT[] column holding unique values (permissions, outlet codes)
type StringSet []string

// Value implements the driver.Valuer interface
func (a StringSet) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.Array([]string(a)).Value()
}

// Scan implements the sql.Scanner interface
func (a *StringSet) Scan(src interface{}) error {
	if src == nil {
		*a = nil
		return nil
	}
	slice := (*[]string)(a)
	return pq.Array(slice).Scan(src)
}

// Contains reports whether v is in the set
func (a StringSet) Contains(v string) bool {
	for _, s := range a {
		if s == v {
			return true
		}
	}
	return false
}

// Normalize drops empty and duplicate entries while keeping order
func (a StringSet) Normalize() StringSet {
	seen := make(map[string]struct{}, len(a))
	out := make(StringSet, 0, len(a))
	for _, s := range a {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
