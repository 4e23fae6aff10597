package model

import "github.com/oklog/ulid/v2"

// NewID generates a ULID string used to identify a dispatch batch.
// ULIDs sort by creation time, so batch history lists in submission order.
func NewID() string {
	return ulid.Make().String()
}
