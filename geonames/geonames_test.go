package geonames

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func row(name, ascii, country, zone string) string {
	fields := make([]string, 19)
	fields[0] = "1"
	fields[1] = name
	fields[2] = ascii
	fields[8] = country
	fields[17] = zone
	return strings.Join(fields, "\t")
}

var sample = strings.Join([]string{
	row("München", "Muenchen", "DE", "Europe/Berlin"),
	row("Berlin", "Berlin", "DE", "Europe/Berlin"),
	row("Mumbai", "Mumbai", "IN", "Asia/Kolkata"),
	row("Tucson", "Tucson", "US", "America/Phoenix"),
	row("Nowhere", "Nowhere", "XX", ""),
	"short\tline",
}, "\n") + "\n"

func zipped(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func serve(t *testing.T, status int, body []byte) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestLoadDownloadsOnce(t *testing.T) {
	srv, hits := serve(t, http.StatusOK, zipped(t, CacheFileName, sample))
	dir := t.TempDir()

	db := NewDatabase(WithDir(dir), WithURL(srv.URL))
	require.NoError(t, db.Load(context.Background()))
	assert.True(t, db.IsReady())
	assert.EqualValues(t, 1, atomic.LoadInt32(hits))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files are removed")
	assert.Equal(t, CacheFileName, entries[0].Name())

	again := NewDatabase(WithDir(dir), WithURL(srv.URL))
	require.NoError(t, again.Load(context.Background()))
	assert.EqualValues(t, 1, atomic.LoadInt32(hits), "cached file is reused")
}

func TestLoadAsync(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, zipped(t, CacheFileName, sample))
	db := NewDatabase(WithDir(t.TempDir()), WithURL(srv.URL))

	assert.False(t, db.IsReady())
	db.LoadAsync(context.Background())
	<-db.Done()
	assert.True(t, db.IsReady())
	assert.NoError(t, db.Err())
}

func TestLoadFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   []byte
		want   string
	}{
		{"bad status", http.StatusNotFound, nil, "bad status: 404"},
		{"missing entry", http.StatusOK, zipped(t, "other.txt", sample), "not found in zip archive"},
		{"not a zip", http.StatusOK, []byte("garbage"), "failed to extract file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := serve(t, tt.status, tt.body)
			core, logs := observer.New(zapcore.WarnLevel)
			db := NewDatabase(WithDir(t.TempDir()), WithURL(srv.URL), WithLogger(zap.New(core)))

			err := db.Load(context.Background())
			assert.ErrorContains(t, err, tt.want)
			assert.Equal(t, err, db.Err())
			assert.False(t, db.IsReady())
			assert.Equal(t, 1, logs.FilterMessage("geonames unavailable").Len())

			_, err = db.Synonyms()
			assert.Error(t, err)
		})
	}
}

func TestLoadHonoursContext(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, zipped(t, CacheFileName, sample))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := NewDatabase(WithDir(t.TempDir()), WithURL(srv.URL))
	assert.ErrorIs(t, db.Load(ctx), context.Canceled)
}

func loaded(t *testing.T) *Database {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, CacheFileName), []byte(sample), 0644))
	db := NewDatabase(WithDir(dir), WithURL("http://127.0.0.1:0/unused"))
	require.NoError(t, db.Load(context.Background()))
	return db
}

func TestSearch(t *testing.T) {
	db := loaded(t)

	assert.Empty(t, db.Search("mu", 10), "too short")

	got := db.Search("mumbai", 10)
	require.Len(t, got, 1)
	assert.Equal(t, City{"Mumbai", "Mumbai", "IN", "Asia/Kolkata"}, got[0])

	got = db.Search("muenchen", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "München", got[0].Name)

	got = db.Search("ber", 10)
	require.Len(t, got, 1)
	assert.Equal(t, "Berlin", got[0].Name)

	assert.Len(t, db.Search("mu", 1), 0)
	assert.Len(t, db.Search("u", 1), 0)
	assert.Len(t, db.Search("mün", 1), 1)
	assert.Empty(t, db.Search("nowhere", 10), "rows without timezone are skipped")
}

func TestSynonyms(t *testing.T) {
	_, err := NewDatabase().Synonyms()
	assert.ErrorIs(t, err, ErrNotReady)

	syn, err := loaded(t).Synonyms()
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"Europe/Berlin":   {"münchen", "muenchen", "berlin"},
		"Asia/Kolkata":    {"mumbai"},
		"America/Phoenix": {"tucson"},
	}, syn)
}
