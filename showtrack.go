// Package showtrack holds the domain types and service interfaces of the
// show tracker's local season store. Implementations live in subpackages:
// sqlite for storage, http for the JSON API.
package showtrack

// Build version & commit SHA, set by cmd/showtrack.
var (
	Version string
	Commit  string
)
