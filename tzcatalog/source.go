package tzcatalog

import (
	"archive/zip"
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrNoZones is returned by a Source that found nothing to offer.
var ErrNoZones = errors.New("no timezone identifiers found")

// Source enumerates the timezone identifiers supported by the host.
type Source interface {
	Zones() ([]string, error)
}

// FallbackZones is used when the host cannot enumerate its timezones.
var FallbackZones = []string{
	"UTC",
	"America/New_York",
	"America/Chicago",
	"America/Denver",
	"America/Los_Angeles",
	"America/Phoenix",
	"Europe/London",
	"Asia/Tokyo",
	"Australia/Sydney",
}

// StaticSource is a fixed list of identifiers.
type StaticSource []string

// Zones returns a copy of the list.
func (s StaticSource) Zones() ([]string, error) {
	if len(s) == 0 {
		return nil, ErrNoZones
	}
	return append([]string(nil), s...), nil
}

// TabSource reads the identifiers listed in zone.tab and zone1970.tab in
// a zoneinfo directory. zone1970.tab leaves out zones that still load,
// such as Europe/Oslo, so the two files are merged.
type TabSource struct {
	Dir string
}

// Zones returns the union of the third column of both tab files plus UTC.
// A missing file is skipped; it is an error only when both are missing.
func (s TabSource) Zones() ([]string, error) {
	var zones []string
	var missing *multierror.Error
	seen := make(map[string]bool)
	for _, name := range []string{"zone.tab", "zone1970.tab"} {
		f, err := os.Open(filepath.Join(s.Dir, name))
		if err != nil {
			missing = multierror.Append(missing, err)
			continue
		}
		names, err := parseZoneTab(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		for _, z := range names {
			if !seen[z] {
				seen[z] = true
				zones = append(zones, z)
			}
		}
	}
	if missing != nil && len(missing.Errors) == 2 {
		return nil, missing.ErrorOrNil()
	}
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	if !seen["UTC"] {
		zones = append(zones, "UTC")
	}
	return zones, nil
}

func parseZoneTab(r io.Reader) ([]string, error) {
	var zones []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		zones = append(zones, fields[2])
	}
	return zones, scanner.Err()
}

// skipped zoneinfo entries that are not geographic zones
var ignoredZoneFiles = map[string]bool{
	"localtime":  true,
	"posixrules": true,
	"Factory":    true,
}

var tzifMagic = []byte("TZif")

// DirSource walks a zoneinfo directory and keeps every TZif file.
type DirSource struct {
	Dir string
}

// Zones walks the directory tree.
func (s DirSource) Zones() ([]string, error) {
	var zones []string
	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rel == "posix" || rel == "right" {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !acceptZoneName(rel) {
			return nil
		}
		if ok, err := hasTZifMagic(path); err != nil || !ok {
			return nil
		}
		zones = append(zones, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", s.Dir, err)
	}
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	return zones, nil
}

func acceptZoneName(name string) bool {
	if ignoredZoneFiles[name] {
		return false
	}
	return strings.Contains(name, "/") || name == "UTC"
}

func hasTZifMagic(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, len(tzifMagic))
	if _, err := io.ReadFull(f, buf); err != nil {
		return false, nil
	}
	return bytes.Equal(buf, tzifMagic), nil
}

// ZipSource lists the entries of a Go zoneinfo.zip archive.
type ZipSource struct {
	Path string
}

// Zones reads the archive directory.
func (s ZipSource) Zones() ([]string, error) {
	r, err := zip.OpenReader(s.Path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var zones []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !acceptZoneName(f.Name) {
			continue
		}
		zones = append(zones, f.Name)
	}
	if len(zones) == 0 {
		return nil, ErrNoZones
	}
	return zones, nil
}

// ChainSource asks each source in turn and returns the first non-empty
// answer. If all fail, the errors are returned together.
type ChainSource []Source

// Zones walks the chain.
func (c ChainSource) Zones() ([]string, error) {
	var result *multierror.Error
	for _, s := range c {
		if s == nil {
			continue
		}
		zones, err := s.Zones()
		if err == nil && len(zones) > 0 {
			return zones, nil
		}
		if err == nil {
			err = ErrNoZones
		}
		result = multierror.Append(result, err)
	}
	if result == nil {
		return nil, ErrNoZones
	}
	return nil, result.ErrorOrNil()
}

// zoneinfoDirs are the usual locations of the system tz database.
var zoneinfoDirs = []string{
	"/usr/share/zoneinfo",
	"/usr/lib/zoneinfo",
	"/usr/share/lib/zoneinfo",
}

// SystemSource returns the chain used by the program: the tab files, then
// a directory walk, for $ZONEINFO and the usual directories, then the
// zoneinfo.zip under $GOROOT when that variable is set.
func SystemSource() Source {
	var chain ChainSource
	var zipPaths []string

	if env := os.Getenv("ZONEINFO"); env != "" {
		if info, err := os.Stat(env); err == nil && info.IsDir() {
			chain = append(chain, TabSource{Dir: env}, DirSource{Dir: env})
		} else {
			zipPaths = append(zipPaths, env)
		}
	}
	for _, dir := range zoneinfoDirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		chain = append(chain, TabSource{Dir: dir}, DirSource{Dir: dir})
	}
	if root := os.Getenv("GOROOT"); root != "" {
		zipPaths = append(zipPaths, filepath.Join(root, "lib", "time", "zoneinfo.zip"))
	}
	for _, p := range zipPaths {
		chain = append(chain, ZipSource{Path: p})
	}
	return chain
}
