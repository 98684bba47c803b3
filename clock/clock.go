package clock

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/philtim/mechclock/tzcatalog"
)

// TimeSource provides the current instant.
type TimeSource interface {
	Now() time.Time
}

type systemTime struct{}

func (systemTime) Now() time.Time { return time.Now() }

// SystemTime reads the host clock.
var SystemTime TimeSource = systemTime{}

// Clock is one clock face: a name, the zone it shows and the latest
// reading from its sampler.
type Clock struct {
	Name    string
	Zone    string
	Reading Reading
}

// New creates a Clock for zone. An unknown zone is not an error here; the
// face will show local time until a valid zone is selected.
func New(name, zone string) *Clock {
	return &Clock{
		Name:    name,
		Zone:    zone,
		Reading: Sample(SystemTime.Now(), zone, nil),
	}
}

// Update stores r if it belongs to the clock's current zone. Readings for
// a zone the clock has moved away from are dropped.
func (c *Clock) Update(r Reading) bool {
	if r.Zone != c.Zone {
		return false
	}
	c.Reading = r
	return true
}

// SetZone switches the face to zone and takes an immediate reading so the
// face never shows the previous zone's time.
func (c *Clock) SetZone(zone string, now time.Time) {
	c.Zone = zone
	c.Reading = Sample(now, zone, nil)
}

// Hands returns the hand angles for the latest reading.
func (c *Clock) Hands() Hands {
	return HandsFor(c.Reading.TimeParts)
}

// FormatTime returns the time in 24-hour format (HH:MM:SS)
func (c *Clock) FormatTime() string {
	return c.Reading.TimeParts.String()
}

// FormatDate returns the date in YYYY-MM-DD format
func (c *Clock) FormatDate() string {
	return c.Reading.At.In(c.location()).Format("2006-01-02")
}

// FormatOffset returns the UTC offset as "GMT±HH:MM"
func (c *Clock) FormatOffset() string {
	return tzcatalog.LongOffset(c.Reading.At, c.location())
}

// FormatZone returns the zone identifier with underscores as spaces, plus
// a marker when the face is showing local time instead.
func (c *Clock) FormatZone() string {
	name := strings.ReplaceAll(c.Zone, "_", " ")
	if c.Reading.Approximate {
		return fmt.Sprintf("%s (local time)", name)
	}
	return name
}

// FormatDateWithOffset returns the date and UTC offset
// Format: "YYYY-MM-DD - GMT±HH:MM"
func (c *Clock) FormatDateWithOffset() string {
	return fmt.Sprintf("%s - %s", c.FormatDate(), c.FormatOffset())
}

// OffsetSeconds returns the UTC offset in seconds
func (c *Clock) OffsetSeconds() int {
	_, offset := c.Reading.At.In(c.location()).Zone()
	return offset
}

func (c *Clock) location() *time.Location {
	if c.Reading.Approximate {
		return time.Local
	}
	loc, err := LoadLocation(c.Zone)
	if err != nil {
		return time.Local
	}
	return loc
}

// SortByOffset sorts clocks by their UTC offset (west to east). Clocks
// with equal offsets keep their configured order.
func SortByOffset(clocks []*Clock) {
	sort.SliceStable(clocks, func(i, j int) bool {
		return clocks[i].OffsetSeconds() < clocks[j].OffsetSeconds()
	})
}
