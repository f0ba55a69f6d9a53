package inspect

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

const panelMarkup = `<div class="goods-analytics">` +
	`<span>品类</span><span title="Electronics">Electronics</span>` +
	`<i title="昨日销量: 120"></i><i title="昨日销售额: ¥306.00"></i></div>`

func testConfig() Config {
	return Config{
		PanelSelector: "#panel",
		PanelMarker:   "goods-analytics",
		SettleDelay:   time.Millisecond,
		Sampler:       SamplerConfig{ChartSelector: "#chart", OverlaySelectors: []string{"#tip"}},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func successSession() *fakeSession {
	return &fakeSession{
		search: map[string][]NodeID{"#panel": {5}},
		markup: map[NodeID]string{5: panelMarkup},
	}
}

func missSession() *fakeSession {
	// No search hits, no marker in the tree: locator miss.
	return &fakeSession{doc: &Node{ID: 1, Name: "HTML"}}
}

func TestExtract_Success(t *testing.T) {
	att := &fakeAttacher{session: successSession()}
	rec := &sleepRecorder{}
	e := New(att, testConfig(), WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if !res.Success {
		t.Fatalf("Extract: success=false, error=%q", res.Error)
	}
	if res.AttemptsUsed != 1 {
		t.Errorf("AttemptsUsed: got %d, want 1", res.AttemptsUsed)
	}
	if res.Strategy != StrategySearch {
		t.Errorf("Strategy: got %q, want %q", res.Strategy, StrategySearch)
	}
	if got := res.Fields.Text("category"); got != "Electronics" {
		t.Errorf("category: got %q, want Electronics", got)
	}
	if att.attaches != 1 || att.detachTotal() != 1 {
		t.Errorf("attach/detach: got %d/%d, want 1/1", att.attaches, att.detachTotal())
	}
}

func TestExtract_DetachBalancesAttach(t *testing.T) {
	cases := []struct {
		name string
		make func(n int) (*fakeSession, error)
	}{
		{"success", func(n int) (*fakeSession, error) { return successSession(), nil }},
		{"locator miss", func(n int) (*fakeSession, error) { return missSession(), nil }},
		{"protocol error", func(n int) (*fakeSession, error) {
			return &fakeSession{searchErr: errBoom}, nil
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			att := &fakeAttacher{make: tc.make}
			rec := &sleepRecorder{}
			e := New(att, testConfig(),
				WithPolicy(Policy{MaxAttempts: 3}),
				WithSleep(rec.sleep), WithLogger(quietLogger()))

			e.Extract(context.Background(), "tab-1")

			if got, want := att.detachTotal(), len(att.sessions); got != want {
				t.Errorf("detaches: got %d, want %d (one per attach)", got, want)
			}
		})
	}
}

func TestExtract_RetriesThenSucceeds(t *testing.T) {
	att := &fakeAttacher{make: func(n int) (*fakeSession, error) {
		if n < 3 {
			return missSession(), nil
		}
		return successSession(), nil
	}}
	rec := &sleepRecorder{}
	e := New(att, testConfig(),
		WithPolicy(Policy{MaxAttempts: 3}),
		WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if !res.Success {
		t.Fatalf("Extract: success=false, error=%q", res.Error)
	}
	if res.AttemptsUsed != 3 {
		t.Errorf("AttemptsUsed: got %d, want 3", res.AttemptsUsed)
	}
}

func TestExtract_Exhaustion(t *testing.T) {
	att := &fakeAttacher{make: func(n int) (*fakeSession, error) { return missSession(), nil }}
	rec := &sleepRecorder{}
	e := New(att, testConfig(),
		WithPolicy(Policy{MaxAttempts: 3, Backoff: 2 * time.Second}),
		WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if res.Success {
		t.Fatal("Extract: success=true, want failure")
	}
	if res.Error != "max retries exceeded" {
		t.Errorf("Error: got %q, want %q", res.Error, "max retries exceeded")
	}
	if res.AttemptsUsed != 3 {
		t.Errorf("AttemptsUsed: got %d, want 3", res.AttemptsUsed)
	}

	// Fixed backoff between attempts, none after the last.
	var backoffs []time.Duration
	for _, d := range rec.delays {
		if d == 2*time.Second {
			backoffs = append(backoffs, d)
		}
	}
	if len(backoffs) != 2 {
		t.Errorf("backoff sleeps: got %d, want 2 (maxAttempts-1)", len(backoffs))
	}
}

func TestExtract_AttachFailureRetries(t *testing.T) {
	att := &fakeAttacher{make: func(n int) (*fakeSession, error) {
		return nil, &AttachError{Target: "tab-1", Err: errBoom}
	}}
	rec := &sleepRecorder{}
	e := New(att, testConfig(),
		WithPolicy(Policy{MaxAttempts: 2}),
		WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if res.Success {
		t.Fatal("Extract: success=true, want failure")
	}
	if att.attaches != 2 {
		t.Errorf("attach calls: got %d, want 2", att.attaches)
	}
	if att.detachTotal() != 0 {
		t.Errorf("detaches: got %d, want 0 (no session was opened)", att.detachTotal())
	}
}

func TestExtract_PartialDataNotRetried(t *testing.T) {
	// Panel located but markup is empty: zero fields is still success.
	s := &fakeSession{
		search: map[string][]NodeID{"#panel": {5}},
		markup: map[NodeID]string{5: "<div></div>"},
	}
	att := &fakeAttacher{session: s}
	rec := &sleepRecorder{}
	e := New(att, testConfig(), WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if !res.Success {
		t.Fatalf("Extract: success=false, error=%q", res.Error)
	}
	if res.AttemptsUsed != 1 {
		t.Errorf("AttemptsUsed: got %d, want 1 (partial data must not retry)", res.AttemptsUsed)
	}
	if len(res.Fields) != 0 {
		t.Errorf("Fields: got %d entries, want 0", len(res.Fields))
	}
}

type countingTelemetry struct {
	records []AttemptRecord
}

func (c *countingTelemetry) RecordAttempt(ctx context.Context, rec AttemptRecord) {
	c.records = append(c.records, rec)
}

type panickyTelemetry struct{}

func (panickyTelemetry) RecordAttempt(ctx context.Context, rec AttemptRecord) {
	panic("telemetry down")
}

func TestExtract_TelemetryPerAttempt(t *testing.T) {
	att := &fakeAttacher{make: func(n int) (*fakeSession, error) { return missSession(), nil }}
	tel := &countingTelemetry{}
	rec := &sleepRecorder{}
	e := New(att, testConfig(),
		WithPolicy(Policy{MaxAttempts: 3}),
		WithTelemetry(tel), WithSleep(rec.sleep), WithLogger(quietLogger()))

	e.Extract(context.Background(), "tab-1")

	if len(tel.records) != 3 {
		t.Fatalf("telemetry records: got %d, want 3", len(tel.records))
	}
	for i, r := range tel.records {
		if r.ErrorClass != "locator_not_found" {
			t.Errorf("record %d: error class %q, want locator_not_found", i, r.ErrorClass)
		}
		if r.Attempt != i+1 {
			t.Errorf("record %d: attempt %d, want %d", i, r.Attempt, i+1)
		}
	}
}

func TestExtract_TelemetryFailureIgnored(t *testing.T) {
	att := &fakeAttacher{session: successSession()}
	rec := &sleepRecorder{}
	e := New(att, testConfig(),
		WithTelemetry(panickyTelemetry{}),
		WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	if !res.Success {
		t.Fatalf("Extract: telemetry failure leaked into result: %q", res.Error)
	}
}

func TestExtract_EndToEndFieldValues(t *testing.T) {
	att := &fakeAttacher{session: successSession()}
	rec := &sleepRecorder{}
	e := New(att, testConfig(), WithSleep(rec.sleep), WithLogger(quietLogger()))

	res := e.Extract(context.Background(), "tab-1")

	checks := []struct {
		field string
		want  float64
	}{
		{"sales_daily", 120},
		{"revenue_daily", 306.00},
		{"avg_price_daily", 2.55},
	}
	for _, c := range checks {
		got, ok := res.Fields.Number(c.field)
		if !ok {
			t.Errorf("%s: absent, want %v", c.field, c.want)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %v, want %v", c.field, got, c.want)
		}
	}
	if got := res.Fields.Text("category"); got != "Electronics" {
		t.Errorf("category: got %q, want Electronics", got)
	}
}

func TestExtract_CancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	att := &fakeAttacher{make: func(n int) (*fakeSession, error) { return missSession(), nil }}
	e := New(att, testConfig(),
		WithPolicy(Policy{MaxAttempts: 3}),
		WithLogger(quietLogger()))

	res := e.Extract(ctx, "tab-1")

	if res.Success {
		t.Fatal("Extract: success=true under cancelled context")
	}
	if res.AttemptsUsed >= 3 && !strings.Contains(res.Error, "max retries") {
		t.Errorf("expected early stop, got attempts=%d error=%q", res.AttemptsUsed, res.Error)
	}
	if got, want := att.detachTotal(), len(att.sessions); got != want {
		t.Errorf("detaches: got %d, want %d", got, want)
	}
}
