package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revenues.csv")
	require.NoError(t, os.WriteFile(path, []byte(header), 0o644))

	got, cleanup, err := Fetch(context.Background(), path)
	defer cleanup()
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestFetch_LocalPathMissing(t *testing.T) {
	_, _, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestFetch_HTTPDownload(t *testing.T) {
	body := header + "r1,2020-01-01,Example Movie,100,120,Studio X\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	local, cleanup, err := Fetch(context.Background(), srv.URL+"/revenues.csv")
	require.NoError(t, err)
	defer cleanup()

	got, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
}

func TestFetch_HTTPRetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(header))
	}))
	defer srv.Close()

	local, cleanup, err := Fetch(context.Background(), srv.URL+"/revenues.csv")
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, int32(2), calls.Load())
	assert.FileExists(t, local)
}

func TestFetch_HTTPClientError_NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Fetch(context.Background(), srv.URL+"/revenues.csv")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLoad_DispatchesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "revenues.csv")
	require.NoError(t, os.WriteFile(path, []byte(header+"r1,2020-01-01,A,100,10,Studio X\n"), 0o644))

	records, summary, err := Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, summary.RowsParsed)
}

func TestRemoteExt(t *testing.T) {
	assert.Equal(t, ".csv", remoteExt("https://example.com/data"))
	assert.Equal(t, ".csv", remoteExt("https://example.com/data.csv?token=x"))
	assert.Equal(t, ".xlsx", remoteExt("ftp://example.com/exports/revenues.xlsx"))
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://files.example.com/exports/revenues.csv")
	require.NoError(t, err)
	assert.Equal(t, "files.example.com:21", host)
	assert.Equal(t, "/exports/revenues.csv", path)

	host, _, err = parseFTPURL("ftp://files.example.com:2121/data.csv")
	require.NoError(t, err)
	assert.Equal(t, "files.example.com:2121", host)

	_, _, err = parseFTPURL("https://example.com/data.csv")
	require.Error(t, err)
}
