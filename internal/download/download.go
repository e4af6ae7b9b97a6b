package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const progressInterval = 2 * time.Second

// Downloader fetches model files over HTTP.
type Downloader struct {
	client *http.Client
	log    zerolog.Logger
}

// New returns a Downloader. A nil client uses http.DefaultClient.
func New(client *http.Client, log zerolog.Logger) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Downloader{client: client, log: log}
}

// progressWriter wraps an io.Writer to track download progress
type progressWriter struct {
	total      int64
	downloaded int64
	lastLog    time.Time
	name       string
	log        zerolog.Logger
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n := len(p)
	pw.downloaded += int64(n)

	// Log progress every 2 seconds or when complete
	now := time.Now()
	if now.Sub(pw.lastLog) >= progressInterval || pw.downloaded >= pw.total {
		pw.lastLog = now
		pw.log.Info().
			Str("file", pw.name).
			Float64("percent", float64(pw.downloaded)/float64(pw.total)*100).
			Float64("downloaded_mb", float64(pw.downloaded)/1024/1024).
			Float64("total_mb", float64(pw.total)/1024/1024).
			Msg("Downloading")
	}

	return n, nil
}

// Ensure downloads url to dest unless dest already exists. It reports
// whether a download happened.
func (d *Downloader) Ensure(ctx context.Context, url, dest string) (bool, error) {
	if _, err := os.Stat(dest); err == nil {
		d.log.Debug().Str("path", dest).Msg("Already present")
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := d.Fetch(ctx, url, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Fetch downloads url to dest through a temporary file so that an
// interrupted download never leaves a truncated file at dest.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := dest + ".tmp"
	defer os.Remove(tmpPath)

	name := filepath.Base(dest)
	d.log.Info().Str("file", name).Str("url", url).Msg("Starting download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %d", name, resp.StatusCode)
	}

	totalSize := resp.ContentLength
	if totalSize <= 0 {
		d.log.Warn().Str("file", name).Msg("Content-Length not provided, progress tracking unavailable")
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	var writer io.Writer = out
	if totalSize > 0 {
		writer = io.MultiWriter(out, &progressWriter{
			total:   totalSize,
			name:    name,
			lastLog: time.Now(),
			log:     d.log,
		})
	}

	written, err := io.Copy(writer, resp.Body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	d.log.Info().
		Str("file", name).
		Str("path", dest).
		Float64("size_mb", float64(written)/1024/1024).
		Msg("Downloaded")

	return nil
}

// TODO: verify SHA256 against the published checksums once the catalogues carry them.
