package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/vehicle-requests/backend/internal/domain"
)

func TestNextTripCode(t *testing.T) {
	day := time.Date(2025, 1, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		existing []string
		want     string
	}{
		{"no trips", nil, "250101-0001"},
		{"gap in sequence", []string{"250101-0001", "250101-0003"}, "250101-0004"},
		{"other days ignored", []string{"241231-0009", "250102-0004"}, "250101-0001"},
		{"unparsable sequences ignored", []string{"250101-00x1", "250101", "250101-0002"}, "250101-0003"},
		{"unordered input", []string{"250101-0010", "250101-0002"}, "250101-0011"},
		{"beyond four digits", []string{"250101-9999"}, "250101-10000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.NextTripCode(tt.existing, day))
		})
	}
}

// TestNextTripCode_UsesLocalCalendarDay verifies that the prefix follows the
// location of the supplied time, not UTC.
func TestNextTripCode_UsesLocalCalendarDay(t *testing.T) {
	manila := time.FixedZone("PHT", 8*60*60)
	// 2025-01-01 20:00 UTC is already 2025-01-02 in Manila.
	now := time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC).In(manila)

	assert.Equal(t, "250102-0001", domain.NextTripCode(nil, now))
}

func TestNextTripCode_StrictlyGreaterThanExisting(t *testing.T) {
	day := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	existing := []string{"250314-0004", "250314-0001", "250314-0007"}

	next := domain.NextTripCode(existing, day)

	for _, c := range existing {
		assert.Greater(t, next, c)
	}
	assert.Equal(t, "250314-0008", next)
}

func TestValidTripCode(t *testing.T) {
	assert.True(t, domain.ValidTripCode("250101-0001"))
	assert.False(t, domain.ValidTripCode("250101-1"))
	assert.False(t, domain.ValidTripCode("20250101-0001"))
	assert.False(t, domain.ValidTripCode(""))
}
