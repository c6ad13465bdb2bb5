package utils

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		expected string
		wantErr  bool
	}{
		{url: "https://example.com/data/people.csv", expected: "people.csv"},
		{url: "https://example.com/data/My%20Data.csv?raw=1", expected: "My Data.csv"},
		{url: "https://example.com/", expected: "downloaded.csv"},
		{url: "https://example.com", expected: "downloaded.csv"},
		{url: "ftp://example.com/a.csv", wantErr: true},
		{url: "://bad", wantErr: true},
	}

	for _, tt := range tests {
		got, err := FilenameFromURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.expected, got, tt.url)
	}
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/people.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		io.WriteString(w, "name\nAlice\n")
	}))
	defer srv.Close()

	body, name, contentType, err := DownloadFile(context.Background(), srv.URL+"/people.csv")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "name\nAlice\n", string(data))
	assert.Equal(t, "people.csv", name)
	assert.Equal(t, "text/csv", contentType)

	_, _, _, err = DownloadFile(context.Background(), srv.URL+"/missing.csv")
	assert.EqualError(t, err, "unexpected status code: 404")
}
