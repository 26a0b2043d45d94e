// Package cv downloads the published CV and writes the metadata sidecar the
// site reads at build time.
package cv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"portfolio-functions/internal/domain"
)

const (
	DefaultFilePrefix   = "CV"
	DefaultOutputPath   = "public/cv.pdf"
	DefaultMetadataPath = "src/data/cv-metadata.json"

	isoMillis = "2006-01-02T15:04:05.000Z"
)

// BuildMetadata derives the sidecar fields from a modification time and the
// file size. All fields are computed in UTC.
func BuildMetadata(modified time.Time, sizeBytes int64, prefix string) domain.CVMetadata {
	if strings.TrimSpace(prefix) == "" {
		prefix = DefaultFilePrefix
	}
	t := modified.UTC()
	month := t.Format("Jan")
	return domain.CVMetadata{
		LastModified: t.Format(isoMillis),
		DisplayDate:  t.Format("January 2006"),
		Year:         t.Year(),
		Month:        month,
		FileName:     fmt.Sprintf("%s_%d_%s.pdf", prefix, t.Year(), month),
		SizeKB:       int64(math.Round(float64(sizeBytes) / 1024)),
	}
}

// WriteMetadata writes meta as indented JSON, creating parent directories.
func WriteMetadata(path string, meta domain.CVMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("cv: encode metadata: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cv: create metadata dir: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("cv: write metadata: %w", err)
	}
	return nil
}

// Result describes one Fetch run.
type Result struct {
	Metadata   domain.CVMetadata
	Downloaded bool
	SizeBytes  int64
	// FromHeader reports whether the date came from Last-Modified rather
	// than the local file mtime.
	FromHeader bool
}

type Fetcher struct {
	httpClient   *http.Client
	prefix       string
	outputPath   string
	metadataPath string
	now          func() time.Time
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.httpClient = c
		}
	}
}

func WithFilePrefix(prefix string) Option {
	return func(f *Fetcher) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			f.prefix = prefix
		}
	}
}

func WithPaths(outputPath, metadataPath string) Option {
	return func(f *Fetcher) {
		if outputPath != "" {
			f.outputPath = outputPath
		}
		if metadataPath != "" {
			f.metadataPath = metadataPath
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		if now != nil {
			f.now = now
		}
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		prefix:       DefaultFilePrefix,
		outputPath:   DefaultOutputPath,
		metadataPath: DefaultMetadataPath,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url to the output path and writes the sidecar. An empty
// url skips the download and writes placeholder metadata dated now, so dev
// builds still have a sidecar to read.
func (f *Fetcher) Fetch(ctx context.Context, url string) (Result, error) {
	logger := zerolog.Ctx(ctx)

	if strings.TrimSpace(url) == "" {
		logger.Warn().Msg("CV_URL not set, writing default metadata without downloading")
		meta := BuildMetadata(f.now(), 0, f.prefix)
		if err := WriteMetadata(f.metadataPath, meta); err != nil {
			return Result{}, err
		}
		return Result{Metadata: meta}, nil
	}

	size, lastModified, err := f.download(ctx, url)
	if err != nil {
		return Result{}, err
	}

	modified, fromHeader := parseLastModified(lastModified)
	if !fromHeader {
		info, err := os.Stat(f.outputPath)
		if err != nil {
			return Result{}, fmt.Errorf("cv: stat download: %w", err)
		}
		modified = info.ModTime()
		logger.Debug().Msg("Last-Modified header unavailable, using file mtime")
	}

	meta := BuildMetadata(modified, size, f.prefix)
	if err := WriteMetadata(f.metadataPath, meta); err != nil {
		return Result{}, err
	}
	logger.Info().Str("file_name", meta.FileName).Str("display_date", meta.DisplayDate).Msg("CV metadata written")

	return Result{
		Metadata:   meta,
		Downloaded: true,
		SizeBytes:  size,
		FromHeader: fromHeader,
	}, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (int64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("cv: build request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("cv: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, "", fmt.Errorf("cv: fetch: unexpected status %s", resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(f.outputPath), 0o755); err != nil {
		return 0, "", fmt.Errorf("cv: create output dir: %w", err)
	}
	out, err := os.Create(f.outputPath)
	if err != nil {
		return 0, "", fmt.Errorf("cv: create output: %w", err)
	}
	size, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		return 0, "", fmt.Errorf("cv: write output: %w", err)
	}
	return size, resp.Header.Get("Last-Modified"), nil
}

func parseLastModified(v string) (time.Time, bool) {
	if strings.TrimSpace(v) == "" {
		return time.Time{}, false
	}
	t, err := http.ParseTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
