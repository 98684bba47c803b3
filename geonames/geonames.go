package geonames

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// GeoNamesURL is the download URL for cities with 15000+ population
	GeoNamesURL = "http://download.geonames.org/export/dump/cities15000.zip"
	// CacheFileName is the name of the cached cities file
	CacheFileName = "cities15000.txt"
)

// ErrNotReady is returned while the database is still loading.
var ErrNotReady = errors.New("geonames database not loaded")

// City represents a city from the GeoNames database
type City struct {
	Name        string
	ASCIIName   string
	CountryCode string
	Timezone    string
}

// Database holds the GeoNames cities data
type Database struct {
	dir    string
	url    string
	client *http.Client
	logger *zap.Logger

	cities []City
	ready  bool
	err    error
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

// Option configures a Database.
type Option func(*Database)

// WithDir sets the cache directory. Defaults to ~/.cache/mechclock.
func WithDir(dir string) Option {
	return func(db *Database) { db.dir = dir }
}

// WithURL sets the download URL.
func WithURL(url string) Option {
	return func(db *Database) { db.url = url }
}

// WithHTTPClient sets the client used for the download.
func WithHTTPClient(c *http.Client) Option {
	return func(db *Database) { db.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(db *Database) { db.logger = l }
}

// NewDatabase creates a new GeoNames database instance
func NewDatabase(opts ...Option) *Database {
	db := &Database{
		url:    GeoNamesURL,
		client: &http.Client{Timeout: 2 * time.Minute},
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// LoadAsync loads the GeoNames database asynchronously. Done is closed
// when loading finishes either way.
func (db *Database) LoadAsync(ctx context.Context) {
	go func() {
		_ = db.Load(ctx)
	}()
}

// Load downloads the file if it is not cached yet, then parses it. Only
// the first call does any work; later calls return its result.
func (db *Database) Load(ctx context.Context) error {
	db.once.Do(func() {
		defer close(db.done)
		cities, err := db.load(ctx)

		db.mu.Lock()
		defer db.mu.Unlock()
		if err != nil {
			db.err = err
			db.logger.Warn("geonames unavailable", zap.Error(err))
			return
		}
		db.cities = cities
		db.ready = true
		db.logger.Info("geonames loaded", zap.Int("cities", len(cities)))
	})
	<-db.done
	return db.Err()
}

func (db *Database) load(ctx context.Context) ([]City, error) {
	cachePath, err := db.cachePath()
	if err != nil {
		return nil, fmt.Errorf("failed to get cache path: %w", err)
	}

	if _, err := os.Stat(cachePath); errors.Is(err, os.ErrNotExist) {
		db.logger.Info("downloading geonames", zap.String("url", db.url), zap.String("path", cachePath))
		if err := db.downloadAndExtract(ctx, cachePath); err != nil {
			return nil, fmt.Errorf("failed to download GeoNames data: %w", err)
		}
	}

	cities, err := parseFile(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GeoNames data: %w", err)
	}
	return cities, nil
}

// Done is closed once loading has finished.
func (db *Database) Done() <-chan struct{} {
	return db.done
}

// IsReady returns whether the database is loaded and ready
func (db *Database) IsReady() bool {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.ready
}

// Err returns any error that occurred during loading
func (db *Database) Err() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.err
}

// Search searches for cities matching the query
// Returns top maxResults matches
func (db *Database) Search(query string, maxResults int) []City {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.ready {
		return []City{}
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if len(query) < 3 {
		return []City{}
	}

	var exactMatches []City
	var partialMatches []City

	for _, city := range db.cities {
		name := strings.ToLower(city.Name)
		ascii := strings.ToLower(city.ASCIIName)

		switch {
		case name == query || ascii == query:
			exactMatches = append(exactMatches, city)
		case strings.Contains(name, query) || strings.Contains(ascii, query):
			partialMatches = append(partialMatches, city)
		}

		if len(exactMatches)+len(partialMatches) >= maxResults {
			break
		}
	}

	// Combine results: exact matches first, then partial
	results := append(exactMatches, partialMatches...)
	if len(results) > maxResults {
		results = results[:maxResults]
	}

	return results
}

// Synonyms maps each timezone to the lowercase names of the cities in it,
// for extending the timezone catalog's search terms.
func (db *Database) Synonyms() (map[string][]string, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if !db.ready {
		if db.err != nil {
			return nil, db.err
		}
		return nil, ErrNotReady
	}

	seen := make(map[string]bool)
	out := make(map[string][]string)
	for _, city := range db.cities {
		for _, n := range []string{city.Name, city.ASCIIName} {
			n = strings.ToLower(n)
			key := city.Timezone + "\x00" + n
			if n == "" || seen[key] {
				continue
			}
			seen[key] = true
			out[city.Timezone] = append(out[city.Timezone], n)
		}
	}
	return out, nil
}

func (db *Database) cachePath() (string, error) {
	dir := db.dir
	if dir == "" {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(cacheDir, "mechclock")
	}
	return filepath.Join(dir, CacheFileName), nil
}

// downloadAndExtract downloads the GeoNames zip file and extracts it
func (db *Database) downloadAndExtract(ctx context.Context, targetPath string) error {
	cacheDir := filepath.Dir(targetPath)
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tempZip, err := os.CreateTemp(cacheDir, "cities-*.zip")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tempZip.Name())

	if err := db.download(ctx, tempZip); err != nil {
		tempZip.Close()
		return fmt.Errorf("failed to download file: %w", err)
	}
	if err := tempZip.Close(); err != nil {
		return err
	}

	if err := extractFile(tempZip.Name(), CacheFileName, targetPath); err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}

	return nil
}

func (db *Database) download(ctx context.Context, out io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, db.url, nil)
	if err != nil {
		return err
	}
	resp, err := db.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractFile extracts a specific file from a zip archive. The target only
// appears once it is complete.
func extractFile(zipPath, fileName, targetPath string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != fileName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		defer rc.Close()

		tmp := targetPath + ".part"
		out, err := os.Create(tmp)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			os.Remove(tmp)
			return err
		}
		if err := out.Close(); err != nil {
			os.Remove(tmp)
			return err
		}
		return os.Rename(tmp, targetPath)
	}

	return fmt.Errorf("file %s not found in zip archive", fileName)
}

// parseFile parses the GeoNames cities15000.txt file
func parseFile(path string) ([]City, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var cities []City
	scanner := bufio.NewScanner(file)

	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")

		// timezone is at index 17
		if len(fields) < 18 || fields[17] == "" {
			continue
		}

		cities = append(cities, City{
			Name:        fields[1],
			ASCIIName:   fields[2],
			CountryCode: fields[8],
			Timezone:    fields[17],
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return cities, nil
}
