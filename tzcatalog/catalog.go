// Package tzcatalog groups IANA timezone identifiers by their current UTC
// offset and searches the resulting groups.
//
// A Catalog is a snapshot: offsets are computed once, at build time, and a
// zone may move to another group after a DST transition. Build a new
// catalog rather than keeping one across days.
package tzcatalog

import (
	"slices"
	"strings"
	"time"
)

// Group is one UTC-offset bucket of timezone identifiers.
type Group struct {
	ID                     string   `yaml:"id"`
	Offset                 string   `yaml:"offset"`
	OffsetMinutes          int      `yaml:"offset_minutes"`
	DisplayLabel           string   `yaml:"label"`
	RepresentativeIANAName string   `yaml:"representative"`
	SearchTerms            []string `yaml:"-"`
	Continent              string   `yaml:"continent"`
	Members                []string `yaml:"members"`
}

// Matches reports whether the lowercase query is a substring of one of the
// group's search terms or of its display label.
func (g Group) Matches(lowerQuery string) bool {
	for _, term := range g.SearchTerms {
		if strings.Contains(term, lowerQuery) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(g.DisplayLabel), lowerQuery)
}

// HasMember reports whether zone belongs to the group.
func (g Group) HasMember(zone string) bool {
	for _, m := range g.Members {
		if m == zone {
			return true
		}
	}
	return false
}

// Catalog is the ordered result of a build.
//
// Fallback is set when the host could not enumerate its zones and the
// hardcoded list was used instead. Skipped lists identifiers whose offset
// could not be resolved; Err carries the individual failures.
type Catalog struct {
	Groups   []Group
	BuiltAt  time.Time
	Fallback bool
	Skipped  []string
	Err      error

	now          func() time.Time
	loadLocation func(string) (*time.Location, error)
}

// Degraded reports whether the catalog is missing zones the host would
// normally provide.
func (c *Catalog) Degraded() bool {
	return c.Fallback || len(c.Skipped) > 0
}

// Filter returns the groups matching query, in catalog order. An empty
// query returns every group.
func (c *Catalog) Filter(query string) []Group {
	if query == "" {
		return slices.Clone(c.Groups)
	}

	q := strings.ToLower(query)
	var matches []Group
	for _, g := range c.Groups {
		if g.Matches(q) {
			matches = append(matches, g)
		}
	}
	return matches
}

// GroupOf returns the group zone is a member of.
func (c *Catalog) GroupOf(zone string) (Group, bool) {
	for _, g := range c.Groups {
		if g.HasMember(zone) {
			return g, true
		}
	}
	return Group{}, false
}

// Representative returns the group whose representative is zone.
func (c *Catalog) Representative(zone string) (Group, bool) {
	for _, g := range c.Groups {
		if g.RepresentativeIANAName == zone {
			return g, true
		}
	}
	return Group{}, false
}

// Label is the text shown for the currently selected zone: the group label
// when zone represents a group, otherwise "(offset) City" computed now.
func (c *Catalog) Label(zone string) string {
	if zone == "" {
		return "Select a timezone"
	}
	if g, ok := c.Representative(zone); ok {
		return g.DisplayLabel
	}

	city, _ := splitZone(zone)
	load := c.loadLocation
	if load == nil {
		load = time.LoadLocation
	}
	loc, err := load(zone)
	if err != nil {
		return city
	}
	now := time.Now
	if c.now != nil {
		now = c.now
	}
	return "(" + LongOffset(now(), loc) + ") " + city
}

// WithSynonyms returns a copy of the catalog whose groups also match the
// extra names given per member identifier. Group membership and order are
// unchanged.
func (c *Catalog) WithSynonyms(extra map[string][]string) *Catalog {
	out := *c
	out.Groups = make([]Group, len(c.Groups))
	for i, g := range c.Groups {
		terms := append([]string(nil), g.SearchTerms...)
		for _, member := range g.Members {
			for _, name := range extra[member] {
				terms = append(terms, strings.ToLower(name))
			}
		}
		g.SearchTerms = dedupe(terms)
		out.Groups[i] = g
	}
	return &out
}

// splitZone returns the display city and continent of an identifier:
// "America/Argentina/Buenos_Aires" is ("Argentina/Buenos Aires", "America").
func splitZone(zone string) (city, continent string) {
	parts := strings.Split(zone, "/")
	city = parts[0]
	if len(parts) > 1 {
		city = strings.Join(parts[1:], "/")
	}
	city = strings.ReplaceAll(city, "_", " ")
	continent = strings.ReplaceAll(parts[0], "_", " ")
	return city, continent
}

// dedupe drops empty and repeated strings, keeping first occurrences.
func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0]
	for _, s := range items {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
