package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cespare/subcmd"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/philtim/mechclock/clock"
	"github.com/philtim/mechclock/config"
	"github.com/philtim/mechclock/dial"
	"github.com/philtim/mechclock/geonames"
	"github.com/philtim/mechclock/logging"
	"github.com/philtim/mechclock/tzcatalog"
)

var cmds = []subcmd.Command{
	{
		Name:        "run",
		Description: "show the clocks (default)",
		Do:          cmdRun,
	},
	{
		Name:        "zones",
		Description: "print the timezone catalog grouped by UTC offset",
		Do:          cmdZones,
	},
	{
		Name:        "search",
		Description: "print the timezone groups matching a query",
		Do:          cmdSearch,
	},
	{
		Name:        "now",
		Description: "print the time and hand angles for a timezone",
		Do:          cmdNow,
	},
	{
		Name:        "locate",
		Description: "print the timezone at a latitude and longitude",
		Do:          cmdLocate,
	},
}

func main() {
	config.LoadDotEnv()

	if len(os.Args) < 2 {
		cmdRun(nil)
		return
	}
	subcmd.Run(cmds)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage(fs *pflag.FlagSet, text string) func() {
	return func() {
		fmt.Fprint(os.Stderr, text)
		fs.PrintDefaults()
	}
}

// cliLogger logs warnings to stderr unless MECHCLOCK_LOG_LEVEL says
// otherwise.
func cliLogger() *zap.Logger {
	level := os.Getenv(config.EnvLogLevel)
	if level == "" {
		level = "warn"
	}
	logger, err := logging.New(logging.Options{Level: level, Color: true})
	if err != nil {
		fatalf("Error creating logger: %v", err)
	}
	return logger
}

// cliConfig loads the config for commands that only read it. A broken
// config is reported and the defaults are used.
func cliConfig(path string, logger *zap.Logger) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		logger.Warn("using default config", zap.Error(err))
		return config.Default(config.SystemTimezone())
	}
	return cfg
}

func newBuilder(cfg *config.Config, logger *zap.Logger, opts ...tzcatalog.Option) *tzcatalog.Builder {
	opts = append([]tzcatalog.Option{
		tzcatalog.WithLogger(logger.Named("catalog")),
		tzcatalog.WithLocale(cfg.Locale()),
		tzcatalog.WithSynonyms(cfg.Search.Synonyms),
	}, opts...)
	return tzcatalog.NewBuilder(opts...)
}

func newGeoNames(logger *zap.Logger) *geonames.Database {
	return geonames.NewDatabase(geonames.WithLogger(logger.Named("geonames")))
}

func cmdRun(args []string) {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "config file (default $MECHCLOCK_CONFIG or ~/.config/mechclock.yaml)")
	zone := fs.StringP("zone", "z", "", "also show this timezone, for this session only")
	fs.Usage = usage(fs, `Usage:

  mechclock run [flags...]

where the flags are:

`)
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	if *zone != "" {
		if err := cfg.AddClock(zoneName(*zone), *zone); err != nil {
			fatalf("Error adding clock: %v", err)
		}
	}

	logFile := cfg.Log.File
	if logFile == "" {
		if logFile, err = logging.DefaultFile(); err != nil {
			fatalf("Error finding log file: %v", err)
		}
	}
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, File: logFile})
	if err != nil {
		fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()
	for _, c := range cfg.UnknownZones() {
		logger.Warn("timezone unavailable, showing local time",
			zap.String("clock", c.Name), zap.String("zone", c.Timezone))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var geo *geonames.Database
	if cfg.Search.GeoNames {
		geo = newGeoNames(logger)
	}

	m := newModel(ctx, cfg, logger, newBuilder(cfg, logger), geo)
	defer m.stop()

	logger.Info("starting", zap.Int("clocks", len(m.cards)))
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("program failed", zap.Error(err))
		fatalf("Error running program: %v", err)
	}
}

// zoneName is the clock name shown for a zone given on the command line.
func zoneName(zone string) string {
	name := zone
	if i := strings.LastIndex(zone, "/"); i >= 0 {
		name = zone[i+1:]
	}
	return strings.ReplaceAll(name, "_", " ")
}

func cmdZones(args []string) {
	fs := pflag.NewFlagSet("zones", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "config file")
	format := fs.StringP("format", "f", "text", "output format: text or yaml")
	fs.Usage = usage(fs, `Usage:

  mechclock zones [flags...]

Prints every timezone group, west to east.

`)
	fs.Parse(args)

	logger := cliLogger()
	defer logger.Sync()
	cat := newBuilder(cliConfig(*configPath, logger), logger).Build()
	if err := printZones(os.Stdout, cat, *format); err != nil {
		fatalf("Error: %v", err)
	}
}

func printZones(w io.Writer, cat *tzcatalog.Catalog, format string) error {
	switch format {
	case "text":
		for _, g := range cat.Groups {
			fmt.Fprintln(w, g.DisplayLabel)
		}
		printDegraded(w, cat)
		return nil
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cat.Groups); err != nil {
			return fmt.Errorf("failed to encode catalog: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format '%s'", format)
}

func printDegraded(w io.Writer, cat *tzcatalog.Catalog) {
	if cat.Fallback {
		fmt.Fprintln(w, "note: timezone enumeration unavailable, showing the fallback list")
	}
	if len(cat.Skipped) > 0 {
		fmt.Fprintf(w, "note: skipped %d timezones: %s\n", len(cat.Skipped), strings.Join(cat.Skipped, ", "))
	}
}

func cmdSearch(args []string) {
	fs := pflag.NewFlagSet("search", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "config file")
	useGeoNames := fs.BoolP("geonames", "g", false, "also search the GeoNames city list (downloaded on first use)")
	fs.Usage = usage(fs, `Usage:

  mechclock search [flags...] <query>

where the flags are:

`)
	fs.Parse(args)
	if fs.NArg() < 1 {
		fs.Usage()
		os.Exit(1)
	}
	query := strings.Join(fs.Args(), " ")

	logger := cliLogger()
	defer logger.Sync()
	cfg := cliConfig(*configPath, logger)
	cat := newBuilder(cfg, logger).Build()

	var cities []geonames.City
	if *useGeoNames || cfg.Search.GeoNames {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		db := newGeoNames(logger)
		if err := db.Load(ctx); err != nil {
			fatalf("Error loading GeoNames: %v", err)
		}
		syn, err := db.Synonyms()
		if err != nil {
			fatalf("Error loading GeoNames: %v", err)
		}
		cat = cat.WithSynonyms(syn)
		cities = db.Search(query, 20)
	}

	printSearch(os.Stdout, cat, query, cities)
}

func printSearch(w io.Writer, cat *tzcatalog.Catalog, query string, cities []geonames.City) {
	groups := cat.Filter(query)
	if len(groups) == 0 {
		fmt.Fprintln(w, "No timezones match your search.")
	}
	for _, g := range groups {
		fmt.Fprintf(w, "%s\t%s\n", g.RepresentativeIANAName, g.DisplayLabel)
	}
	if len(cities) > 0 {
		fmt.Fprintln(w)
		for _, c := range cities {
			fmt.Fprintf(w, "%s, %s (%s)\n", c.Name, c.CountryCode, c.Timezone)
		}
	}
}

func cmdNow(args []string) {
	fs := pflag.NewFlagSet("now", pflag.ExitOnError)
	face := fs.BoolP("face", "f", false, "draw the clock face")
	radius := fs.IntP("radius", "r", dial.DefaultRadius, "face radius in rows")
	fs.Usage = usage(fs, `Usage:

  mechclock now [flags...] <timezone>

where the flags are:

`)
	fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	zone := fs.Arg(0)
	c := &clock.Clock{Name: zone, Zone: zone, Reading: clock.Sample(clock.SystemTime.Now(), zone, nil)}
	if c.Reading.Approximate {
		logger := cliLogger()
		logger.Warn("timezone unavailable, using local time", zap.String("zone", zone), zap.Error(c.Reading.Err))
		logger.Sync()
	}

	printNow(os.Stdout, c)
	if *face {
		opts := dial.DefaultOptions()
		opts.Radius = *radius
		fmt.Println()
		fmt.Println(dial.Render(c.Hands(), opts))
	}
}

func printNow(w io.Writer, c *clock.Clock) {
	h := c.Hands()
	fmt.Fprintf(w, "zone:   %s\n", c.FormatZone())
	fmt.Fprintf(w, "time:   %s\n", c.FormatTime())
	fmt.Fprintf(w, "date:   %s\n", c.FormatDateWithOffset())
	fmt.Fprintf(w, "hands:  hour %.2f° minute %.2f° second %.2f°\n", h.Hour, h.Minute, h.Second)
}

func cmdLocate(args []string) {
	fs := pflag.NewFlagSet("locate", pflag.ExitOnError)
	configPath := fs.StringP("config", "c", "", "config file")
	fs.Usage = usage(fs, `Usage:

  mechclock locate <latitude> <longitude>

`)
	fs.Parse(args)
	if fs.NArg() != 2 {
		fs.Usage()
		os.Exit(1)
	}

	lat, err := strconv.ParseFloat(fs.Arg(0), 64)
	if err != nil {
		fatalf("Bad latitude %q: %v", fs.Arg(0), err)
	}
	lon, err := strconv.ParseFloat(fs.Arg(1), 64)
	if err != nil {
		fatalf("Bad longitude %q: %v", fs.Arg(1), err)
	}

	logger := cliLogger()
	defer logger.Sync()
	cat := newBuilder(cliConfig(*configPath, logger), logger).Build()
	if err := printLocate(os.Stdout, cat, lat, lon); err != nil {
		fatalf("Error: %v", err)
	}
}

func printLocate(w io.Writer, cat *tzcatalog.Catalog, lat, lon float64) error {
	zone := config.HomeZone(lat, lon)
	if zone == "" {
		return fmt.Errorf("no timezone at %g,%g", lat, lon)
	}
	label := cat.Label(zone)
	if g, ok := cat.GroupOf(zone); ok {
		label = g.DisplayLabel
	}
	fmt.Fprintf(w, "%s\t%s\n", zone, label)
	return nil
}
