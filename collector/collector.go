// CLAUDE:SUMMARY Per-page collection driver: open tab, primary capture, analytics delay, instrumented extraction, persist and spool.
// Package collector drives the collection of one product page end to
// end: open a tab, capture the primary record from the rendered HTML,
// wait for the analytics panel to render, run the instrumented
// extraction, then persist the merged record and spool it for upload.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/skuwatch/skuprobe/browser"
	"github.com/skuwatch/skuprobe/capture"
	"github.com/skuwatch/skuprobe/idgen"
	"github.com/skuwatch/skuprobe/inspect"
	"github.com/skuwatch/skuprobe/queue"
	"github.com/skuwatch/skuprobe/store"
)

// Page is an open product-page tab.
type Page interface {
	TargetID() string
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Opener opens product pages.
type Opener interface {
	OpenTab(ctx context.Context, url string) (Page, error)
}

// Extractor runs the instrumented analytics extraction.
type Extractor interface {
	Extract(ctx context.Context, target inspect.TargetID) *inspect.Result
}

type browserOpener struct{ m *browser.Manager }

func (o browserOpener) OpenTab(ctx context.Context, url string) (Page, error) {
	t, err := o.m.OpenTab(ctx, url)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// NewBrowserOpener adapts a browser.Manager to the Opener interface.
func NewBrowserOpener(m *browser.Manager) Opener { return browserOpener{m: m} }

// Options configures a Collector.
type Options struct {
	// AnalyticsDelay is the wait between primary capture and the
	// instrumented extraction, giving the panel time to render.
	// Default: 8s.
	AnalyticsDelay time.Duration
	// Spool receives each collected record for upload. Nil disables
	// spooling.
	Spool *queue.Spool
	// Images downloads product images to local files. Nil disables
	// downloading.
	Images *capture.ImageDownloader
	Gen    idgen.Generator
	Logger *slog.Logger
	// Sleep replaces the delay function. Test hook.
	Sleep func(context.Context, time.Duration) error
}

func (o *Options) defaults() {
	if o.AnalyticsDelay <= 0 {
		o.AnalyticsDelay = 8 * time.Second
	}
	if o.Gen == nil {
		o.Gen = idgen.Default
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
}

// Collector collects product pages.
type Collector struct {
	opener    Opener
	extractor Extractor
	store     *store.Store
	opts      Options
}

// New creates a Collector.
func New(opener Opener, extractor Extractor, st *store.Store, opts Options) *Collector {
	opts.defaults()
	return &Collector{opener: opener, extractor: extractor, store: st, opts: opts}
}

// CollectPage collects one product page and returns the persisted
// record. The primary capture must yield a goods ID; the instrumented
// extraction may fail and still produce a (primary-only) record.
func (c *Collector) CollectPage(ctx context.Context, pageURL string) (*store.Product, error) {
	log := c.opts.Logger
	start := time.Now()

	if pt := capture.DetectPageType(pageURL); pt != capture.PageProduct {
		log.Info("collector: skipping non-product page", "url", pageURL, "page_type", pt)
		return nil, fmt.Errorf("collector: %s is not a product page (%s)", pageURL, pt)
	}

	page, err := c.opener.OpenTab(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("collector: open %s: %w", pageURL, err)
	}
	defer page.Close()

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("collector: read page %s: %w", pageURL, err)
	}
	primary, err := capture.ParseProduct(html, pageURL)
	if err != nil {
		return nil, fmt.Errorf("collector: primary capture: %w", err)
	}

	if c.opts.Images != nil {
		if err := c.opts.Images.Download(ctx, primary); err != nil {
			log.Warn("collector: image download failed", "goods_id", primary.GoodsID, "error", err)
		}
	}

	if err := c.opts.Sleep(ctx, c.opts.AnalyticsDelay); err != nil {
		return nil, fmt.Errorf("collector: analytics delay: %w", err)
	}

	res := c.extractor.Extract(ctx, inspect.TargetID(page.TargetID()))

	rec := buildRecord(primary, res)
	if err := c.store.UpsertProduct(ctx, rec); err != nil {
		return nil, fmt.Errorf("collector: persist %s: %w", rec.GoodsID, err)
	}
	c.logAttempt(ctx, rec, res, time.Since(start))

	if c.opts.Spool != nil {
		payload, err := json.Marshal(rec)
		if err == nil {
			err = c.opts.Spool.Enqueue(ctx, c.opts.Gen(), payload)
		}
		if err != nil {
			log.Warn("collector: spool failed", "goods_id", rec.GoodsID, "error", err)
		}
	}

	log.Info("collector: page collected",
		"goods_id", rec.GoodsID,
		"analytics", res.Success,
		"fields", len(res.Fields),
		"samples", len(res.Samples),
		"elapsed", time.Since(start))
	return rec, nil
}

// Run collects every URL in order. Per-page failures are logged and do
// not stop the run; the error count is returned.
func (c *Collector) Run(ctx context.Context, urls []string) int {
	failed := 0
	for _, u := range urls {
		if ctx.Err() != nil {
			return failed
		}
		if _, err := c.CollectPage(ctx, u); err != nil {
			failed++
			c.opts.Logger.Error("collector: page failed", "url", u, "error", err)
		}
	}
	return failed
}

// logAttempt persists a per-page extraction summary for diagnostics.
// Best-effort: a failed insert never fails the collection.
func (c *Collector) logAttempt(ctx context.Context, rec *store.Product, res *inspect.Result, elapsed time.Duration) {
	a := &store.Attempt{
		ID:          "att_" + c.opts.Gen(),
		GoodsID:     rec.GoodsID,
		PageURL:     rec.PageURL,
		Attempt:     res.AttemptsUsed,
		Strategy:    string(res.Strategy),
		Success:     res.Success,
		ErrorClass:  res.Error,
		FieldCount:  len(res.Fields),
		SampleCount: len(res.Samples),
		ElapsedMS:   elapsed.Milliseconds(),
	}
	if err := c.store.InsertAttempt(ctx, a); err != nil {
		c.opts.Logger.Warn("collector: attempt log failed", "goods_id", rec.GoodsID, "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
