package model

import "github.com/oklog/ulid/v2"

// NewID generates a new ULID string used to identify dispatch records.
// ULIDs sort lexicographically by creation time, which keeps the audit
// tables naturally ordered.
func NewID() string {
	return ulid.Make().String()
}
