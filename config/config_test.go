package config

import (
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvConfig, EnvTZ, EnvLogLevel, EnvLogFile} {
		t.Setenv(k, "")
	}
}

func TestParse(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
clocks:
  - name: Home
    timezone: Europe/Berlin
  - name: Office
    timezone: America/New_York
face:
  seconds: false
search:
  locale: de
  synonyms:
    Asia/Kolkata: [mumbai, delhi]
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, []Clock{{"Home", "Europe/Berlin"}, {"Office", "America/New_York"}}, cfg.Clocks)
	assert.Equal(t, 7, cfg.Face.Radius)
	assert.False(t, cfg.Face.Seconds)
	assert.Equal(t, "de", cfg.Locale().String())
	assert.Equal(t, []string{"mumbai", "delhi"}, cfg.Search.Synonyms["Asia/Kolkata"])
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Nil(t, cfg.Home)
}

func TestParseDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte("clocks:\n  - {name: UTC, timezone: UTC}\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Face.Seconds)
	assert.Equal(t, "en", cfg.Search.Locale)
	assert.False(t, cfg.Search.GeoNames)
}

func TestEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvTZ, "Asia/Tokyo")
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogFile, "/tmp/mechclock.log")

	cfg, err := Parse([]byte(`
clocks:
  - {name: A, timezone: Europe/London}
  - {name: B, timezone: Europe/Paris}
`))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Clocks[0].Timezone)
	assert.Equal(t, "Europe/Paris", cfg.Clocks[1].Timezone)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "/tmp/mechclock.log", cfg.Log.File)
}

func TestHomeSeedsLocalClock(t *testing.T) {
	clearEnv(t)

	cfg, err := Parse([]byte(`
clocks:
  - {name: Local, timezone: UTC}
  - {name: Other, timezone: UTC}
home:
  latitude: 35.68
  longitude: 139.69
`))
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Clocks[0].Timezone)
	assert.Equal(t, "UTC", cfg.Clocks[1].Timezone)
}

func TestValidate(t *testing.T) {
	base := func() *Config { return Default("UTC") }

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no clocks", func(c *Config) { c.Clocks = nil }, "no clocks configured"},
		{"unnamed", func(c *Config) { c.Clocks[0].Name = "" }, "clock at index 0 has no name"},
		{"empty zone", func(c *Config) { c.Clocks[0].Timezone = "" }, "invalid timezone '' for clock 'Local'"},
		{"radius", func(c *Config) { c.Face.Radius = 42 }, "face radius 42 out of range 3..20"},
		{"locale", func(c *Config) { c.Search.Locale = "not a locale" }, "invalid search locale"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "invalid log level 'loud'"},
		{"home", func(c *Config) { c.Home = &Home{Latitude: 91} }, "home coordinates"},
	}

	require.NoError(t, base().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := base()
	cfg.Clocks = nil
	cfg.Face.Radius = 1
	err := cfg.Validate()
	assert.ErrorIs(t, err, ErrNoClocks)
	assert.ErrorContains(t, err, "2 errors occurred")
}

func TestLoadCreatesDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("TZ", "Asia/Kathmandu")
	path := filepath.Join(t.TempDir(), "conf", "mechclock.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Clock{{LocalName, "Asia/Kathmandu"}}, cfg.Clocks)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "timezone: Asia/Kathmandu")
	assert.NotContains(t, string(data), "home:")
}

func TestLoadUsesEnvPath(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clocks:\n  - {name: X, timezone: Europe/Rome}\n"), 0644))
	t.Setenv(EnvConfig, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Rome", cfg.Clocks[0].Timezone)
}

func TestLoadRejectsInvalid(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("clocks: []\n"), 0644))

	_, err := Load(path)
	assert.ErrorIs(t, err, ErrNoClocks)

	require.NoError(t, os.WriteFile(path, []byte("clocks: [\n"), 0644))
	_, err = Load(path)
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestSaveIsAtomic(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "mechclock.yaml")

	cfg := Default("Europe/Berlin")
	cfg.path = path
	cfg.Search.Synonyms = map[string][]string{"Asia/Kolkata": {"mumbai"}}
	require.NoError(t, cfg.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Clocks, loaded.Clocks)
	assert.Equal(t, cfg.Search.Synonyms, loaded.Search.Synonyms)

	cfg.Clocks = nil
	assert.ErrorIs(t, cfg.Save(), ErrNoClocks)
}

func TestAddClock(t *testing.T) {
	cfg := Default("UTC")

	require.NoError(t, cfg.AddClock("Tokyo", "Asia/Tokyo"))
	assert.Len(t, cfg.Clocks, 2)
	assert.ErrorContains(t, cfg.AddClock("Tokyo", "Asia/Tokyo"), "already exists")
	assert.ErrorContains(t, cfg.AddClock("Nowhere", ""), "invalid timezone")
	assert.Len(t, cfg.Clocks, 2)

	// unknown zones are kept and reported
	require.NoError(t, cfg.AddClock("Nowhere", "Not/AZone"))
	assert.Len(t, cfg.Clocks, 3)
	assert.Equal(t, []Clock{{Name: "Nowhere", Timezone: "Not/AZone"}}, cfg.UnknownZones())
}

func TestUnknownZonesPassValidation(t *testing.T) {
	cfg := Default("UTC")
	cfg.Clocks = append(cfg.Clocks, Clock{Name: "Mars", Timezone: "Mars/Olympus"})

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, []Clock{{Name: "Mars", Timezone: "Mars/Olympus"}}, cfg.UnknownZones())
	assert.Empty(t, Default("Asia/Tokyo").UnknownZones())
}

func TestDetectTimezone(t *testing.T) {
	dir := t.TempDir()
	localtime := filepath.Join(dir, "localtime")
	timezone := filepath.Join(dir, "timezone")
	env := map[string]string{}
	d := detector{
		getenv:       func(k string) string { return env[k] },
		localtime:    localtime,
		timezoneFile: timezone,
	}

	assert.Equal(t, "UTC", d.detect())

	require.NoError(t, os.WriteFile(timezone, []byte("Europe/Paris\n"), 0644))
	assert.Equal(t, "Europe/Paris", d.detect())

	require.NoError(t, os.Symlink("/usr/share/zoneinfo/America/Chicago", localtime))
	assert.Equal(t, "America/Chicago", d.detect())

	env["TZ"] = ":Asia/Tokyo"
	assert.Equal(t, "Asia/Tokyo", d.detect())

	env["TZ"] = "Not/AZone"
	assert.Equal(t, "America/Chicago", d.detect())
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	os.Unsetenv(EnvLogLevel)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(EnvLogLevel+"=debug\n"), 0644))

	LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, "debug", os.Getenv(EnvLogLevel))
}
