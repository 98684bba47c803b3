package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bradfitz/latlong"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/philtim/mechclock/dial"
	"github.com/philtim/mechclock/logging"
)

// Environment variables that override the file.
const (
	EnvConfig   = "MECHCLOCK_CONFIG"
	EnvTZ       = "MECHCLOCK_TZ"
	EnvLogLevel = "MECHCLOCK_LOG_LEVEL"
	EnvLogFile  = "MECHCLOCK_LOG_FILE"
)

// LocalName is the name of the clock created on first run.
const LocalName = "Local"

// ErrNoClocks is returned by Validate for a config without clocks.
var ErrNoClocks = errors.New("no clocks configured")

// Clock is one configured clock face.
type Clock struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// Face controls how faces are drawn.
type Face struct {
	Radius  int  `yaml:"radius"`
	Seconds bool `yaml:"seconds"`
}

// Search controls the timezone catalog.
type Search struct {
	Locale   string              `yaml:"locale"`
	GeoNames bool                `yaml:"geonames"`
	Synonyms map[string][]string `yaml:"synonyms,omitempty"`
}

// Log controls the log output.
type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Home seeds the Local clock from coordinates.
type Home struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// Config represents the application configuration
type Config struct {
	Clocks []Clock `yaml:"clocks"`
	Face   Face    `yaml:"face"`
	Search Search  `yaml:"search"`
	Log    Log     `yaml:"log"`
	Home   *Home   `yaml:"home,omitempty"`

	path string
}

// Default returns the first-run configuration: one Local clock in zone.
func Default(zone string) *Config {
	return &Config{
		Clocks: []Clock{{Name: LocalName, Timezone: zone}},
		Face:   Face{Radius: dial.DefaultRadius, Seconds: true},
		Search: Search{Locale: "en"},
		Log:    Log{Level: "info"},
	}
}

// LoadDotEnv reads .env files into the environment. Missing files are
// ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Path returns the config file location: $MECHCLOCK_CONFIG or
// ~/.config/mechclock.yaml.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "mechclock.yaml"), nil
}

// Load reads the configuration from path, or from Path() when path is
// empty. If the file doesn't exist, it creates a default one.
func Load(path string) (*Config, error) {
	if path == "" {
		var err error
		if path, err = Path(); err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default(SystemTimezone())
		cfg.path = path
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// Parse decodes YAML, fills defaults, applies the environment and home
// coordinates, then validates.
func Parse(data []byte) (*Config, error) {
	cfg := Config{
		Face:   Face{Seconds: true},
		Search: Search{Locale: "en"},
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Face.Radius == 0 {
		cfg.Face.Radius = dial.DefaultRadius
	}
	cfg.applyEnv()
	cfg.applyHome()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if tz := os.Getenv(EnvTZ); tz != "" && len(c.Clocks) > 0 {
		c.Clocks[0].Timezone = tz
	}
	if lvl := os.Getenv(EnvLogLevel); lvl != "" {
		c.Log.Level = lvl
	}
	if f := os.Getenv(EnvLogFile); f != "" {
		c.Log.File = f
	}
}

func (c *Config) applyHome() {
	if c.Home == nil {
		return
	}
	zone := HomeZone(c.Home.Latitude, c.Home.Longitude)
	if zone == "" {
		return
	}
	for i := range c.Clocks {
		if c.Clocks[i].Name == LocalName {
			c.Clocks[i].Timezone = zone
		}
	}
}

// HomeZone returns the timezone at the coordinates, or "" over open water.
func HomeZone(lat, lon float64) string {
	return latlong.LookupZoneName(lat, lon)
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if len(c.Clocks) == 0 {
		result = multierror.Append(result, ErrNoClocks)
	}
	for i, clk := range c.Clocks {
		if clk.Name == "" {
			result = multierror.Append(result, fmt.Errorf("clock at index %d has no name", i))
			continue
		}
		if clk.Timezone == "" {
			result = multierror.Append(result, fmt.Errorf("invalid timezone '' for clock '%s': no timezone", clk.Name))
		}
	}

	if c.Face.Radius < dial.MinRadius || c.Face.Radius > dial.MaxRadius {
		result = multierror.Append(result, fmt.Errorf("face radius %d out of range %d..%d", c.Face.Radius, dial.MinRadius, dial.MaxRadius))
	}
	if _, err := language.Parse(c.Search.Locale); err != nil {
		result = multierror.Append(result, fmt.Errorf("invalid search locale '%s': %w", c.Search.Locale, err))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, err)
	}
	if h := c.Home; h != nil {
		if h.Latitude < -90 || h.Latitude > 90 || h.Longitude < -180 || h.Longitude > 180 {
			result = multierror.Append(result, fmt.Errorf("home coordinates %g,%g out of range", h.Latitude, h.Longitude))
		}
	}

	return result.ErrorOrNil()
}

func validZone(zone string) error {
	if zone == "" {
		return errors.New("no timezone")
	}
	_, err := time.LoadLocation(zone)
	return err
}

// UnknownZones returns the clocks whose timezone cannot be loaded. They
// are kept and show local time.
func (c *Config) UnknownZones() []Clock {
	var unknown []Clock
	for _, clk := range c.Clocks {
		if clk.Timezone != "" && validZone(clk.Timezone) != nil {
			unknown = append(unknown, clk)
		}
	}
	return unknown
}

// Locale returns the collation language for the catalog.
func (c *Config) Locale() language.Tag {
	tag, err := language.Parse(c.Search.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Save writes the configuration atomically to the path it was loaded from.
func (c *Config) Save() error {
	if c.path == "" {
		path, err := Path()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		c.path = path
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	configDir := filepath.Dir(c.path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Atomic write: write to temp file, then rename
	tempFile, err := os.CreateTemp(configDir, "mechclock-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tempPath, c.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// AddClock adds a clock for this session. It is never saved.
func (c *Config) AddClock(name, zone string) error {
	for _, clk := range c.Clocks {
		if clk.Name == name && clk.Timezone == zone {
			return fmt.Errorf("clock '%s' already exists", name)
		}
	}
	if zone == "" {
		return errors.New("invalid timezone '': no timezone")
	}
	c.Clocks = append(c.Clocks, Clock{Name: name, Timezone: zone})
	return nil
}

// SystemTimezone returns the host's IANA timezone name.
func SystemTimezone() string {
	return detector{
		getenv:       os.Getenv,
		localtime:    "/etc/localtime",
		timezoneFile: "/etc/timezone",
	}.detect()
}

type detector struct {
	getenv       func(string) string
	localtime    string
	timezoneFile string
}

// detect tries TZ, the /etc/localtime symlink, /etc/timezone, then UTC.
func (d detector) detect() string {
	if tz := strings.TrimPrefix(d.getenv("TZ"), ":"); tz != "" && validZone(tz) == nil {
		return tz
	}
	if target, err := os.Readlink(d.localtime); err == nil {
		if _, zone, ok := strings.Cut(filepath.ToSlash(target), "zoneinfo/"); ok && validZone(zone) == nil {
			return zone
		}
	}
	if data, err := os.ReadFile(d.timezoneFile); err == nil {
		if zone := strings.TrimSpace(string(data)); zone != "" && validZone(zone) == nil {
			return zone
		}
	}
	return "UTC"
}
