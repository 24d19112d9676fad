package treatment

import (
	"fmt"
	"regexp"
	"time"
)

// Treatment identifiers follow TRT<year><month><sequence>: 4-digit year,
// zero-padded 2-digit month, then a 6-digit counter scoped to that year-month
// bucket. The counter is (existing records sharing the prefix) + 1, assigned
// under a per-prefix lock so concurrent creations in the same month cannot
// collide.

var treatmentIDPattern = regexp.MustCompile(`^TRT\d{4}\d{2}\d{6}$`)

// IDPrefix returns the year-month prefix for records created at t.
func IDPrefix(t time.Time) string {
	return fmt.Sprintf("TRT%04d%02d", t.Year(), int(t.Month()))
}

// FormatTreatmentID builds a full identifier from a prefix and sequence number.
func FormatTreatmentID(prefix string, seq int) string {
	return fmt.Sprintf("%s%06d", prefix, seq)
}

// ValidTreatmentID reports whether id matches the generated identifier format.
func ValidTreatmentID(id string) bool {
	return treatmentIDPattern.MatchString(id)
}
