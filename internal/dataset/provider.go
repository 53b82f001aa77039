package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phrazzld/carbonstats/internal/config"
	"github.com/phrazzld/carbonstats/internal/raster"
	"github.com/phrazzld/carbonstats/internal/redact"
)

var (
	// ErrUnavailable is returned when the dataset can be neither found
	// locally nor downloaded.
	ErrUnavailable = errors.New("dataset unavailable")

	// ErrUnexpectedStatus is returned for non-2xx download responses.
	ErrUnexpectedStatus = errors.New("unexpected download status")
)

// Provider fetches and opens the raster dataset.
type Provider struct {
	cfg    config.DatasetConfig
	client *http.Client
	logger *slog.Logger
}

// NewProvider creates a Provider. A nil client means http.DefaultClient.
func NewProvider(cfg config.DatasetConfig, client *http.Client, logger *slog.Logger) *Provider {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 20_000_000
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "dataset_provider"),
	}
}

// Path returns the local path of the dataset file.
func (p *Provider) Path() string {
	return p.cfg.Path
}

// Load fetches the dataset if needed and opens it.
func (p *Provider) Load(ctx context.Context) (*raster.Raster, error) {
	if err := p.Fetch(ctx); err != nil {
		return nil, err
	}

	r, err := raster.Open(p.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	p.logger.Info("dataset loaded",
		"path", p.cfg.Path,
		"width", r.Width(),
		"height", r.Height())
	return r, nil
}

// Fetch downloads the dataset to its configured path. The download is
// skipped when the file already exists and SkipIfPresent is set. A partial
// download never replaces the target: data is streamed into a temporary
// file that is renamed only once complete.
func (p *Provider) Fetch(ctx context.Context) error {
	if p.cfg.SkipIfPresent {
		if info, err := os.Stat(p.cfg.Path); err == nil && info.Mode().IsRegular() && info.Size() > 0 {
			p.logger.Info("dataset already present, skipping download", "path", p.cfg.Path)
			return nil
		}
	}
	if p.cfg.URL == "" {
		return fmt.Errorf("%w: %s is missing and no download URL is configured", ErrUnavailable, p.cfg.Path)
	}

	if p.cfg.DownloadTimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.DownloadTimeoutMinutes)*time.Minute)
		defer cancel()
	}

	source := redact.String(p.cfg.URL)
	start := time.Now()
	p.logger.Info("downloading dataset", "url", source, "path", p.cfg.Path)

	n, err := p.download(ctx)
	if err != nil {
		p.logger.Error("dataset download failed",
			"url", source,
			"error", redact.Error(err))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	p.logger.Info("dataset downloaded",
		"path", p.cfg.Path,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *Provider) download(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request dataset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}

	dir := filepath.Dir(p.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create dataset directory: %w", err)
	}

	// The temporary file lives next to the target so the rename is atomic
	tmp, err := os.CreateTemp(dir, ".dataset-*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	n, err := p.copyChunks(tmp, resp.Body)
	if err != nil {
		return n, err
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return n, fmt.Errorf("short download: got %d of %d bytes", n, resp.ContentLength)
	}

	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.cfg.Path); err != nil {
		return n, fmt.Errorf("move dataset into place: %w", err)
	}
	committed = true
	return n, nil
}

// copyChunks streams src to dst in ChunkSize pieces.
func (p *Provider) copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, p.cfg.ChunkSize)
	var total int64
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("write dataset: %w", werr)
			}
			total += int64(n)
			p.logger.Debug("dataset chunk written", "bytes_total", total)
		}
		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return total, nil
		default:
			return total, fmt.Errorf("read dataset: %w", err)
		}
	}
}
