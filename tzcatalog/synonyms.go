package tzcatalog

// commonCities maps identifiers to colloquial city names people search for.
// The list is hand-maintained and deliberately small; extra entries come
// from the config file and, when enabled, the GeoNames city list.
//
// Phoenix is listed twice: Denver observes DST, Arizona does not, so a
// search for "phoenix" must also find the America/Phoenix group.
var commonCities = map[string][]string{
	"America/Chicago": {
		"chicago",
		"dallas",
		"houston",
		"minneapolis",
		"new orleans",
		"winnipeg",
		"mexico city",
	},
	"America/Denver": {
		"denver",
		"salt lake city",
		"edmonton",
		"boise",
		"phoenix (no DST)",
	},
	"America/Los_Angeles": {
		"los angeles",
		"san francisco",
		"seattle",
		"las vegas",
		"vancouver",
		"san diego",
		"portland",
	},
	"America/New_York": {
		"new york",
		"boston",
		"philadelphia",
		"washington dc",
		"miami",
		"toronto",
		"montreal",
		"atlanta",
		"detroit",
	},
	"America/Phoenix": {"phoenix", "tucson"},
	"Europe/London":   {"london", "dublin", "lisbon"},
	"Europe/Paris": {
		"paris",
		"berlin",
		"rome",
		"madrid",
		"amsterdam",
		"brussels",
	},
}

// mergeSynonyms returns the curated table with extra entries appended.
// Neither input is modified.
func mergeSynonyms(extra map[string][]string) map[string][]string {
	merged := make(map[string][]string, len(commonCities)+len(extra))
	for zone, names := range commonCities {
		merged[zone] = append([]string(nil), names...)
	}
	for zone, names := range extra {
		merged[zone] = append(merged[zone], names...)
	}
	return merged
}
