// CLAUDE:SUMMARY Chart sweep sampler — synthesizes pointer moves across the chart, captures transient tooltip text via piercing search, dedupes and derives date/value pairs.
package inspect

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// SampledPoint is one recovered chart value. Ordering follows the
// left-to-right sweep, which on a chronological chart is chronological
// order.
type SampledPoint struct {
	RawText     string `json:"raw_text"`
	Date        string `json:"date,omitempty"`
	Value       string `json:"value,omitempty"`
	SampleIndex int    `json:"sample_index"`
}

// SamplerConfig controls the sweep geometry and overlay capture.
type SamplerConfig struct {
	// ChartSelector locates the chart element. No match is non-fatal:
	// the sweep returns an empty sequence.
	ChartSelector string

	// OverlaySelectors are the transient-overlay style signatures tried
	// in order at each position.
	OverlaySelectors []string

	// ValueLabels anchor value extraction inside tooltip text; when none
	// matches, the last numeric token wins.
	ValueLabels []string

	// Positions is the number of horizontal sample positions. Default 31.
	Positions int

	// LeftMargin excludes the axis-label region. Default 40px.
	LeftMargin float64

	// Settle is the wait after each pointer move for the overlay to
	// render. Default 150ms.
	Settle time.Duration

	// MaxTextLen bounds plausible tooltip text. Default 300.
	MaxTextLen int

	// MaxCandidates bounds how many overlay matches are inspected per
	// position. Default 3.
	MaxCandidates int
}

func (c *SamplerConfig) defaults() {
	if c.ChartSelector == "" {
		c.ChartSelector = `div[class*="sales-chart"]`
	}
	if len(c.OverlaySelectors) == 0 {
		c.OverlaySelectors = []string{
			`div[style*="z-index: 9999999"]`,
			`div[style*="position: absolute"][style*="pointer-events: none"]`,
		}
	}
	if len(c.ValueLabels) == 0 {
		c.ValueLabels = []string{"销量", "销售额"}
	}
	if c.Positions <= 0 {
		c.Positions = 31
	}
	if c.LeftMargin <= 0 {
		c.LeftMargin = 40
	}
	if c.Settle <= 0 {
		c.Settle = 150 * time.Millisecond
	}
	if c.MaxTextLen <= 0 {
		c.MaxTextLen = 300
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = 3
	}
}

var (
	tagRe      = regexp.MustCompile(`<[^>]*>`)
	dateRe     = regexp.MustCompile(`\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/]\d{1,2}`)
	anyDigitRe = regexp.MustCompile(`\d`)
)

// sampleChart sweeps a synthetic pointer across the chart and captures
// tooltip text. Best-effort throughout: any failure degrades to an empty
// or partial sequence, never an error; partial samples are not worth a
// retry once the panel has been located.
func sampleChart(ctx context.Context, s Session, cfg SamplerConfig, sleep func(context.Context, time.Duration) error, logger *slog.Logger) []SampledPoint {
	cfg.defaults()

	ids, err := s.Search(ctx, cfg.ChartSelector, true)
	if err != nil || len(ids) == 0 {
		if err != nil {
			logger.Debug("inspect: chart search failed", "error", err)
		}
		return nil
	}

	box, err := s.BoundingBox(ctx, ids[0])
	if err != nil {
		logger.Debug("inspect: chart geometry failed", "error", err)
		return nil
	}
	usable := box.Width - cfg.LeftMargin
	if usable <= 0 {
		return nil
	}
	y := box.Y + box.Height/2

	var points []SampledPoint
	seen := make(map[string]bool)

	for i := 0; i < cfg.Positions; i++ {
		// Single-position sweep samples the left edge of the usable region.
		x := box.X + cfg.LeftMargin
		if cfg.Positions > 1 {
			x += usable * float64(i) / float64(cfg.Positions-1)
		}

		if err := s.DispatchMouseMove(ctx, x, y); err != nil {
			logger.Debug("inspect: pointer move failed", "index", i, "error", err)
			continue
		}
		if err := sleep(ctx, cfg.Settle); err != nil {
			break
		}

		text, ok := captureOverlay(ctx, s, cfg, logger)
		if !ok || seen[text] {
			continue
		}
		seen[text] = true

		points = append(points, SampledPoint{
			RawText:     text,
			Date:        dateRe.FindString(text),
			Value:       extractValue(text, cfg.ValueLabels),
			SampleIndex: i,
		})
	}

	// Park the pointer off the chart so no overlay is left open.
	resetX, resetY := box.X-30, box.Y-30
	if resetX < 0 {
		resetX = 0
	}
	if resetY < 0 {
		resetY = 0
	}
	if err := s.DispatchMouseMove(ctx, resetX, resetY); err != nil {
		logger.Debug("inspect: pointer reset failed", "error", err)
	}

	return points
}

// captureOverlay inspects overlay candidates at the current pointer
// position and returns the first plausible tooltip text: non-empty,
// bounded length, contains at least one digit. Tie-break among matches is
// search-result order, nothing stronger.
func captureOverlay(ctx context.Context, s Session, cfg SamplerConfig, logger *slog.Logger) (string, bool) {
	for _, sel := range cfg.OverlaySelectors {
		ids, err := s.Search(ctx, sel, true)
		if err != nil {
			logger.Debug("inspect: overlay search failed", "selector", sel, "error", err)
			continue
		}
		if len(ids) > cfg.MaxCandidates {
			ids = ids[:cfg.MaxCandidates]
		}
		for _, id := range ids {
			markup, err := s.NodeMarkup(ctx, id)
			if err != nil {
				continue
			}
			text := strings.TrimSpace(tagRe.ReplaceAllString(markup, " "))
			text = strings.Join(strings.Fields(text), " ")
			if text == "" || len(text) > cfg.MaxTextLen || !anyDigitRe.MatchString(text) {
				continue
			}
			return text, true
		}
	}
	return "", false
}

// extractValue pulls the numeric value out of tooltip text: the first
// number following a known label, else the last numeric token.
func extractValue(text string, labels []string) string {
	for _, label := range labels {
		if idx := strings.Index(text, label); idx >= 0 {
			if tok := numTokenRe.FindString(text[idx+len(label):]); tok != "" {
				return tok
			}
		}
	}
	rest := dateRe.ReplaceAllString(text, " ")
	tokens := numTokenRe.FindAllString(rest, -1)
	if len(tokens) == 0 {
		return ""
	}
	return tokens[len(tokens)-1]
}
