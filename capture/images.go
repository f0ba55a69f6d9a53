// CLAUDE:SUMMARY Local image downloader — fetches product gallery images with deterministic names, skips existing files, tolerates per-image failures.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// imageExts are the extensions preserved in local filenames. Anything
// else falls back to .jpg.
var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageDownloaderOptions configures an ImageDownloader.
type ImageDownloaderOptions struct {
	// Dir is the directory images are stored in. Created on demand.
	Dir string
	// MaxImages caps downloads per product. Default: 5.
	MaxImages int
	Logger    *slog.Logger
}

func (o *ImageDownloaderOptions) defaults() {
	if o.MaxImages <= 0 {
		o.MaxImages = 5
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// ImageDownloader fetches product images to local files. Filenames are
// deterministic per goods ID and index, so re-collecting a page reuses
// the files already on disk.
type ImageDownloader struct {
	client *resty.Client
	opts   ImageDownloaderOptions
}

// NewImageDownloader creates a downloader storing into opts.Dir.
func NewImageDownloader(opts ImageDownloaderOptions) *ImageDownloader {
	opts.defaults()
	c := resty.New().SetTimeout(30 * time.Second)
	return &ImageDownloader{client: c, opts: opts}
}

// Download fetches the product's images and records the local path on
// each image it stored. Per-image failures are logged and skipped; the
// returned error covers only directory creation.
func (d *ImageDownloader) Download(ctx context.Context, p *Product) error {
	if len(p.Images) == 0 {
		return nil
	}
	if err := os.MkdirAll(d.opts.Dir, 0o755); err != nil {
		return fmt.Errorf("capture: image dir %s: %w", d.opts.Dir, err)
	}

	stored := 0
	for i := range p.Images {
		if stored >= d.opts.MaxImages {
			break
		}
		img := &p.Images[i]
		local, err := d.fetchOne(ctx, p.GoodsID, stored, img.URL)
		if err != nil {
			d.opts.Logger.Warn("capture: image download failed",
				"goods_id", p.GoodsID, "url", img.URL, "error", err)
			continue
		}
		img.LocalPath = local
		stored++
	}
	return nil
}

// fetchOne downloads one image to {goodsID}_{index}{ext}. An existing
// file is reused without a request.
func (d *ImageDownloader) fetchOne(ctx context.Context, goodsID string, index int, url string) (string, error) {
	name := fmt.Sprintf("%s_%d%s", goodsID, index, imageExt(url))
	dest := filepath.Join(d.opts.Dir, name)
	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}

	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("remote returned %s", resp.Status())
	}
	if err := os.WriteFile(dest, resp.Body(), 0o644); err != nil {
		return "", err
	}
	return dest, nil
}

// imageExt extracts a known image extension from the URL path. Unknown
// or missing extensions default to .jpg.
func imageExt(rawURL string) string {
	u := rawURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	ext := strings.ToLower(path.Ext(u))
	if imageExts[ext] {
		return ext
	}
	return ".jpg"
}
