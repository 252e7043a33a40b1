package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var tripCodePattern = regexp.MustCompile(`^\d{6}-\d{4}$`)

// TripCodePrefix returns the YYMMDD date prefix for t in t's location.
func TripCodePrefix(t time.Time) string {
	return t.Format("060102")
}

// ValidTripCode reports whether code has the YYMMDD-XXXX shape.
func ValidTripCode(code string) bool {
	return tripCodePattern.MatchString(code)
}

// NextTripCode returns the next code for now's calendar day given the codes
// that already exist. Codes from other days and codes whose sequence is not
// a number are ignored. The result is max(sequence)+1, or 0001 for the first
// trip of the day.
//
// There is no reservation step: two callers working from the same set of
// codes get the same answer.
func NextTripCode(existing []string, now time.Time) string {
	prefix := TripCodePrefix(now)

	highest := 0
	for _, code := range existing {
		if !strings.HasPrefix(code, prefix) {
			continue
		}
		_, seq, ok := strings.Cut(code, "-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(seq)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s-%04d", prefix, highest+1)
}
