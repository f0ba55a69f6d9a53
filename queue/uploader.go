package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

// UploaderOptions configures the batch uploader.
type UploaderOptions struct {
	// Endpoint is the remote collect API URL.
	Endpoint string
	// Token is sent as a bearer token when non-empty.
	Token string
	// Interval is the drain period. Default: 1m.
	Interval time.Duration
	// BatchSize is the maximum records per upload. Default: 20.
	BatchSize int
	Logger    *slog.Logger
}

func (o *UploaderOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Minute
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Uploader drains the spool to a remote collect API in batches.
type Uploader struct {
	spool  *Spool
	client *resty.Client
	opts   UploaderOptions
}

// NewUploader creates an uploader for the given spool.
func NewUploader(spool *Spool, opts UploaderOptions) *Uploader {
	opts.defaults()
	c := resty.New().
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}
	return &Uploader{spool: spool, client: c, opts: opts}
}

// Run drains the spool on the configured interval until ctx is
// cancelled.
func (u *Uploader) Run(ctx context.Context) {
	log := u.opts.Logger
	log.Info("queue: uploader started",
		"endpoint", u.opts.Endpoint, "interval", u.opts.Interval, "batch_size", u.opts.BatchSize)

	ticker := time.NewTicker(u.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("queue: uploader stopped")
			return
		case <-ticker.C:
			if err := u.DrainOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("queue: drain failed", "error", err)
			}
		}
	}
}

// DrainOnce claims one batch and uploads it. Delivered records are
// acked; on upload failure the whole batch is nacked for retry.
func (u *Uploader) DrainOnce(ctx context.Context) error {
	recs, err := u.spool.ClaimBatch(ctx, u.opts.BatchSize)
	if err != nil {
		return fmt.Errorf("queue: claim batch: %w", err)
	}

	var batch []json.RawMessage
	var live []*Record
	for _, r := range recs {
		if u.spool.discardExhausted(ctx, r) {
			continue
		}
		batch = append(batch, json.RawMessage(r.Payload))
		live = append(live, r)
	}
	if len(batch) == 0 {
		return nil
	}

	if err := u.post(ctx, batch); err != nil {
		for _, r := range live {
			_ = u.spool.Nack(ctx, r.ID)
		}
		return fmt.Errorf("queue: upload %d records: %w", len(batch), err)
	}

	for _, r := range live {
		_ = u.spool.Ack(ctx, r.ID)
	}
	u.opts.Logger.Info("queue: batch uploaded", "records", len(batch))
	return nil
}

func (u *Uploader) post(ctx context.Context, batch []json.RawMessage) error {
	resp, err := u.client.R().
		SetContext(ctx).
		SetBody(map[string]any{"records": batch}).
		Post(u.opts.Endpoint)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("remote returned %s", resp.Status())
	}
	return nil
}
