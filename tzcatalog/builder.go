package tzcatalog

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Builder builds catalogs. The zero value is not usable; use NewBuilder.
type Builder struct {
	source       Source
	now          func() time.Time
	logger       *zap.Logger
	synonyms     map[string][]string
	locale       language.Tag
	formatOffset OffsetFormatter
	loadLocation func(string) (*time.Location, error)
}

// Option configures a Builder.
type Option func(*Builder)

// WithSource sets where identifiers come from. Defaults to SystemSource.
func WithSource(s Source) Option {
	return func(b *Builder) { b.source = s }
}

// WithNow sets the clock used to compute offsets.
func WithNow(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithLogger sets the logger for warnings about skipped zones.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithSynonyms adds search names per identifier on top of the built-in
// table.
func WithSynonyms(extra map[string][]string) Option {
	return func(b *Builder) { b.synonyms = mergeSynonyms(extra) }
}

// WithLocale sets the collation language used to order cities and labels.
func WithLocale(tag language.Tag) Option {
	return func(b *Builder) { b.locale = tag }
}

// WithOffsetFormatter replaces LongOffset.
func WithOffsetFormatter(f OffsetFormatter) Option {
	return func(b *Builder) { b.formatOffset = f }
}

// WithLocationLoader replaces time.LoadLocation.
func WithLocationLoader(f func(string) (*time.Location, error)) Option {
	return func(b *Builder) { b.loadLocation = f }
}

// NewBuilder returns a Builder with the given options applied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		now:          time.Now,
		logger:       zap.NewNop(),
		synonyms:     mergeSynonyms(nil),
		locale:       language.English,
		formatOffset: LongOffset,
		loadLocation: time.LoadLocation,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.source == nil {
		b.source = SystemSource()
	}
	return b
}

type zoneDetail struct {
	name      string
	city      string
	continent string
	offset    string
}

// Build enumerates zones, resolves their offsets as of now and returns
// the grouped catalog. It never fails: zones that cannot be resolved are
// skipped and reported on the result.
func (b *Builder) Build() *Catalog {
	now := b.now()
	cat := &Catalog{
		BuiltAt:      now,
		now:          b.now,
		loadLocation: b.loadLocation,
	}

	zones, err := b.source.Zones()
	if err != nil || len(zones) == 0 {
		b.logger.Warn("timezone enumeration unavailable, using fallback list",
			zap.Error(err), zap.Int("fallback_zones", len(FallbackZones)))
		zones = FallbackZones
		cat.Fallback = true
	}
	zones = normalizeZones(zones)
	b.logger.Debug("building timezone catalog", zap.Int("zones", len(zones)))

	var skipped *multierror.Error
	var details []zoneDetail
	for _, name := range zones {
		offset, err := b.resolveOffset(now, name)
		if err != nil {
			b.logger.Warn("skipping timezone", zap.String("zone", name), zap.Error(err))
			cat.Skipped = append(cat.Skipped, name)
			skipped = multierror.Append(skipped, err)
			continue
		}
		city, continent := splitZone(name)
		details = append(details, zoneDetail{
			name:      name,
			city:      city,
			continent: continent,
			offset:    offset,
		})
	}
	cat.Err = skipped.ErrorOrNil()

	cat.Groups = b.group(details)
	b.logger.Debug("timezone catalog built",
		zap.Int("groups", len(cat.Groups)), zap.Int("skipped", len(cat.Skipped)))
	return cat
}

// normalizeZones sorts, removes duplicates and drops the Etc/ namespace.
func normalizeZones(zones []string) []string {
	out := make([]string, 0, len(zones))
	for _, z := range zones {
		if z == "" || strings.HasPrefix(strings.ToLower(z), "etc/") {
			continue
		}
		out = append(out, z)
	}
	sort.Strings(out)
	return dedupe(out)
}

// resolveOffset returns the "GMT±HH:MM" offset of zone at now, falling
// back to the manual computation when the formatter output looks wrong.
func (b *Builder) resolveOffset(now time.Time, zone string) (offset string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("offset for %s: %v", zone, r)
		}
	}()

	loc, err := b.loadLocation(zone)
	if err != nil {
		return "", fmt.Errorf("failed to load timezone '%s': %w", zone, err)
	}

	offset = b.formatOffset(now, loc)
	if isLongOffset(offset) {
		return offset, nil
	}

	b.logger.Warn("unexpected long offset, computing manually",
		zap.String("zone", zone), zap.String("offset", offset))
	return FormatOffsetMinutes(ManualOffsetMinutes(now, loc)), nil
}

// group buckets details by offset and builds the ordered groups.
func (b *Builder) group(details []zoneDetail) []Group {
	coll := collate.New(b.locale)
	compare := func(x, y string) int {
		if c := coll.CompareString(x, y); c != 0 {
			return c
		}
		return strings.Compare(x, y)
	}

	buckets := make(map[string][]zoneDetail)
	for _, d := range details {
		buckets[d.offset] = append(buckets[d.offset], d)
	}

	groups := make([]Group, 0, len(buckets))
	for offset, members := range buckets {
		sort.Slice(members, func(i, j int) bool {
			a, z := members[i], members[j]
			aAmerica, zAmerica := a.continent == "America", z.continent == "America"
			if aAmerica != zAmerica {
				return aAmerica
			}
			if c := compare(a.continent, z.continent); c != 0 {
				return c < 0
			}
			if c := compare(a.city, z.city); c != 0 {
				return c < 0
			}
			return a.name < z.name
		})
		groups = append(groups, b.newGroup(offset, members))
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].OffsetMinutes != groups[j].OffsetMinutes {
			return groups[i].OffsetMinutes < groups[j].OffsetMinutes
		}
		return compare(groups[i].DisplayLabel, groups[j].DisplayLabel) < 0
	})
	return groups
}

func (b *Builder) newGroup(offset string, members []zoneDetail) Group {
	cities := make([]string, 0, len(members))
	names := make([]string, 0, len(members))
	terms := []string{strings.ToLower(offset)}
	for _, m := range members {
		cities = append(cities, m.city)
		names = append(names, m.name)
		terms = append(terms,
			strings.ToLower(m.city),
			strings.ToLower(m.continent),
			strings.ToLower(m.name),
		)
		for _, syn := range b.synonyms[m.name] {
			terms = append(terms, strings.ToLower(syn))
		}
	}

	// offsets reaching here have passed isLongOffset
	minutes, _ := ParseOffsetMinutes(offset)

	return Group{
		ID:                     offset,
		Offset:                 offset,
		OffsetMinutes:          minutes,
		DisplayLabel:           "(" + offset + ") " + strings.Join(dedupe(cities), ", "),
		RepresentativeIANAName: members[0].name,
		SearchTerms:            dedupe(terms),
		Continent:              members[0].continent,
		Members:                names,
	}
}
