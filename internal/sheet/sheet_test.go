package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scheduleCSV = `TRUE,,,,,,,,,
day,pairs,subject,groups,subgroup,link,note,parity,start,end
Tuesday,2-3,Algorithms,"A,B",,room 101,,,01.09,31.12
`

func TestDecodeCSV(t *testing.T) {
	t.Parallel()
	grid, err := DecodeCSV(strings.NewReader(scheduleCSV))
	require.NoError(t, err)
	require.Len(t, grid, 3)

	assert.Equal(t, true, grid.Cell(0, 0))
	assert.Nil(t, grid.Cell(0, 1))
	assert.Equal(t, "A,B", grid.Cell(2, 3))
	assert.Equal(t, "01.09", grid.Cell(2, 8))
	assert.Nil(t, grid.Cell(2, 42))
	assert.Nil(t, grid.Cell(-1, 0))
}

func TestDecodeHTML(t *testing.T) {
	t.Parallel()
	page := `<html><body><table class="waffle">
<thead><tr><th></th><th>A</th><th>B</th><th>C</th></tr></thead>
<tbody>
<tr><th>1</th><td>TRUE</td><td></td><td></td></tr>
<tr><th>2</th><td>Monday</td><td>1</td><td>Physics&nbsp;</td></tr>
</tbody></table></body></html>`

	grid, err := DecodeHTML(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, true, grid.Cell(0, 0))
	assert.Nil(t, grid.Cell(0, 1))
	assert.Equal(t, "Monday", grid.Cell(1, 0))
	assert.Equal(t, "Physics", grid.Cell(1, 2))

	_, err = DecodeHTML(strings.NewReader("<p>nothing</p>"))
	assert.Error(t, err)
}

func TestSplitRange(t *testing.T) {
	t.Parallel()
	name, cells := SplitRange("'Second course'!A1:J200")
	assert.Equal(t, "Second course", name)
	assert.Equal(t, "A1:J200", cells)

	name, cells = SplitRange("Holidays")
	assert.Equal(t, "Holidays", name)
	assert.Empty(t, cells)
}

func TestHTTPReaderUsesConditionalCache(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/spreadsheets/d/doc-key/gviz/tq", r.URL.Path)
		assert.Equal(t, "out:csv", r.URL.Query().Get("tqx"))
		assert.Equal(t, "Schedule", r.URL.Query().Get("sheet"))
		assert.Equal(t, "A1:J200", r.URL.Query().Get("range"))
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(scheduleCSV))
	}))
	defer srv.Close()

	reader := NewHTTPReader(HTTPOptions{
		SpreadsheetID: "doc-key",
		BaseURL:       srv.URL,
		CacheDir:      t.TempDir(),
		RatePerSec:    1000,
	})

	first, err := reader.Fetch(context.Background(), "Schedule!A1:J200")
	require.NoError(t, err)
	second, err := reader.Fetch(context.Background(), "Schedule!A1:J200")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 2, hits.Load())
	assert.EqualValues(t, 1, notModified.Load())
}

func TestHTTPReaderFallsBackToCacheOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "quota", http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(scheduleCSV))
	}))
	defer srv.Close()

	reader := NewHTTPReader(HTTPOptions{SpreadsheetID: "k", BaseURL: srv.URL, CacheDir: t.TempDir(), RatePerSec: 1000})
	_, err := reader.Fetch(context.Background(), "Schedule")
	require.NoError(t, err)

	fail.Store(true)
	grid, err := reader.Fetch(context.Background(), "Schedule")
	require.NoError(t, err)
	assert.Len(t, grid, 3)
}

func TestHTTPReaderTransportError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	reader := NewHTTPReader(HTTPOptions{SpreadsheetID: "k", BaseURL: srv.URL, RatePerSec: 1000})
	_, err := reader.Fetch(context.Background(), "Schedule")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTransport))

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Schedule", te.Range)

	_, err = NewHTTPReader(HTTPOptions{}).Fetch(context.Background(), "Schedule")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPReaderHTMLFormat(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "out:html", r.URL.Query().Get("tqx"))
		_, _ = w.Write([]byte(`<table><tr><td>TRUE</td></tr><tr><td>Friday</td></tr></table>`))
	}))
	defer srv.Close()

	reader := NewHTTPReader(HTTPOptions{SpreadsheetID: "k", BaseURL: srv.URL, Format: FormatHTML, RatePerSec: 1000})
	grid, err := reader.Fetch(context.Background(), "Schedule")
	require.NoError(t, err)
	assert.Equal(t, Grid{{true}, {"Friday"}}, grid)
}

func TestRedactURL(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "https://docs.google.com/...(redacted)", redactURL("https://docs.google.com/spreadsheets/d/secret/gviz/tq?x=1"))
	assert.Equal(t, "sheet://...(redacted)", redactURL("not a url"))
}

func TestFileReader(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Schedule.csv"), []byte(scheduleCSV), 0o600))

	r := FileReader{Dir: dir}
	grid, err := r.Fetch(context.Background(), "Schedule!A1:J200")
	require.NoError(t, err)
	assert.Len(t, grid, 3)

	_, err = r.Fetch(context.Background(), "Missing!A1:B2")
	assert.ErrorIs(t, err, ErrTransport)
}
