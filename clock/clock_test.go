package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clockAt(name, zone string, at time.Time) *Clock {
	return &Clock{Name: name, Zone: zone, Reading: Sample(at, zone, nil)}
}

func TestClockFormatting(t *testing.T) {
	c := clockAt("Kathmandu", "Asia/Kathmandu", noon)

	assert.Equal(t, "18:19:56", c.FormatTime())
	assert.Equal(t, "2025-01-15", c.FormatDate())
	assert.Equal(t, "GMT+05:45", c.FormatOffset())
	assert.Equal(t, "2025-01-15 - GMT+05:45", c.FormatDateWithOffset())
	assert.Equal(t, 5*3600+45*60, c.OffsetSeconds())
	assert.Equal(t, "Asia/Kathmandu", c.FormatZone())
}

func TestClockDateCrossesMidnight(t *testing.T) {
	late := time.Date(2025, time.January, 15, 23, 30, 0, 0, time.UTC)
	c := clockAt("Tokyo", "Asia/Tokyo", late)

	assert.Equal(t, "08:30:00", c.FormatTime())
	assert.Equal(t, "2025-01-16", c.FormatDate())
}

func TestClockInvalidZone(t *testing.T) {
	c := clockAt("Nowhere", "Not/A_Zone", noon)

	assert.True(t, c.Reading.Approximate)
	assert.Equal(t, "Not/A Zone (local time)", c.FormatZone())
	assert.NotEmpty(t, c.FormatOffset())
}

func TestClockUpdateAndSetZone(t *testing.T) {
	c := clockAt("Home", "UTC", noon)

	assert.False(t, c.Update(Sample(noon, "Asia/Tokyo", nil)), "reading for another zone")
	assert.Equal(t, 12, c.Reading.Hours)

	c.SetZone("Asia/Tokyo", noon)
	assert.Equal(t, "Asia/Tokyo", c.Zone)
	assert.Equal(t, 21, c.Reading.Hours)

	later := noon.Add(time.Minute)
	assert.True(t, c.Update(Sample(later, "Asia/Tokyo", nil)))
	assert.Equal(t, 35, c.Reading.Minutes)
	assert.InDelta(t, MinuteDeg(35, 56), c.Hands().Minute, 1e-9)
}

func TestSortByOffset(t *testing.T) {
	clocks := []*Clock{
		clockAt("Tokyo", "Asia/Tokyo", noon),
		clockAt("New York", "America/New_York", noon),
		clockAt("London", "Europe/London", noon),
		clockAt("UTC", "UTC", noon),
		clockAt("Los Angeles", "America/Los_Angeles", noon),
	}

	SortByOffset(clocks)

	var names []string
	for _, c := range clocks {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Los Angeles", "New York", "London", "UTC", "Tokyo"}, names)
}

func TestNew(t *testing.T) {
	c := New("Tokyo", "Asia/Tokyo")
	assert.Equal(t, "Tokyo", c.Name)
	assert.False(t, c.Reading.Approximate)
	assert.WithinDuration(t, time.Now(), c.Reading.At, time.Minute)
}
