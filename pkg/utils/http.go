package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

const defaultDownloadName = "downloaded.csv"

var HTTPClient = &http.Client{
	Timeout: 30 * time.Second,
}

// DownloadFile fetches rawURL and returns the response body, the file name
// taken from the URL path and the response content type.
func DownloadFile(ctx context.Context, rawURL string) (io.ReadCloser, string, string, error) {
	filename, err := FilenameFromURL(rawURL)
	if err != nil {
		return nil, "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to download file: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, filename, resp.Header.Get("Content-Type"), nil
}

// FilenameFromURL returns the last path segment of an http(s) URL, or
// "downloaded.csv" when the path has none.
func FilenameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url: unsupported scheme %q", u.Scheme)
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return defaultDownloadName, nil
	}
	return name, nil
}
