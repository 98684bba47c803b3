package tzcatalog

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestStaticSource(t *testing.T) {
	zones, err := StaticSource{"Asia/Tokyo"}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia/Tokyo"}, zones)

	_, err = StaticSource(nil).Zones()
	assert.ErrorIs(t, err, ErrNoZones)
}

func TestTabSource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zone1970.tab"), `# tzdb timezone descriptions
#
JP	+353916+1394441	Asia/Tokyo
US	+404251-0740023	America/New_York	Eastern (most areas)
AR	-3436-05827	America/Argentina/Buenos_Aires	Buenos Aires (BA, CF)
`)

	zones, err := TabSource{Dir: dir}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Asia/Tokyo",
		"America/New_York",
		"America/Argentina/Buenos_Aires",
		"UTC",
	}, zones)
}

func TestTabSourceFallsBackToZoneTab(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zone.tab"), "GB\t+513030-0000731\tEurope/London\n")

	zones, err := TabSource{Dir: dir}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{"Europe/London", "UTC"}, zones)

	_, err = TabSource{Dir: t.TempDir()}.Zones()
	assert.Error(t, err)
}

func TestTabSourceMergesBothFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "zone.tab"), "NO\t+5955+01045\tEurope/Oslo\nDE\t+5230+01322\tEurope/Berlin\n")
	writeFile(t, filepath.Join(dir, "zone1970.tab"), "DE,DK,NO,SE,SJ\t+5230+01322\tEurope/Berlin\tmost of Germany\n")

	zones, err := TabSource{Dir: dir}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{"Europe/Oslo", "Europe/Berlin", "UTC"}, zones)
}

func TestTabSourceHostData(t *testing.T) {
	zones, err := TabSource{Dir: "testdata"}.Zones()
	require.NoError(t, err)
	assert.Greater(t, len(zones), 400)
	for _, z := range []string{"Europe/Oslo", "Europe/Stockholm", "Asia/Kuwait", "Atlantic/Reykjavik", "Asia/Kuala_Lumpur", "UTC"} {
		assert.Contains(t, zones, z)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	tzif := "TZif2\x00\x00\x00"
	writeFile(t, filepath.Join(dir, "Asia", "Tokyo"), tzif)
	writeFile(t, filepath.Join(dir, "America", "Indiana", "Knox"), tzif)
	writeFile(t, filepath.Join(dir, "UTC"), tzif)
	writeFile(t, filepath.Join(dir, "posixrules"), tzif)
	writeFile(t, filepath.Join(dir, "EST5EDT"), tzif)
	writeFile(t, filepath.Join(dir, "posix", "Asia", "Tokyo"), tzif)
	writeFile(t, filepath.Join(dir, "right", "Asia", "Tokyo"), tzif)
	writeFile(t, filepath.Join(dir, "zone1970.tab"), "# not tzif\n")
	writeFile(t, filepath.Join(dir, "Europe", "README"), "plain text")

	zones, err := DirSource{Dir: dir}.Zones()
	require.NoError(t, err)
	sort.Strings(zones)
	assert.Equal(t, []string{"America/Indiana/Knox", "Asia/Tokyo", "UTC"}, zones)

	_, err = DirSource{Dir: t.TempDir()}.Zones()
	assert.ErrorIs(t, err, ErrNoZones)
}

func TestZipSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zoneinfo.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for _, name := range []string{"Asia/", "Asia/Tokyo", "Europe/Paris", "UTC", "Factory", "GMT"} {
		_, err := w.Create(name)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	zones, err := ZipSource{Path: path}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{"Asia/Tokyo", "Europe/Paris", "UTC"}, zones)

	_, err = ZipSource{Path: filepath.Join(t.TempDir(), "missing.zip")}.Zones()
	assert.Error(t, err)
}

func TestChainSource(t *testing.T) {
	zones, err := ChainSource{failingSource{}, StaticSource(nil), StaticSource{"UTC"}}.Zones()
	require.NoError(t, err)
	assert.Equal(t, []string{"UTC"}, zones)

	_, err = ChainSource{failingSource{}, StaticSource(nil)}.Zones()
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)
	assert.ErrorIs(t, err, ErrNoZones)

	_, err = ChainSource{}.Zones()
	assert.ErrorIs(t, err, ErrNoZones)
}
