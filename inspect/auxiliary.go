// CLAUDE:SUMMARY Best-effort auxiliary probes — keyword-filtered web storage, known IndexedDB samples, recent resource-timing slice; every probe individually guarded.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

// AuxiliarySignal is one informational finding from a side channel. Never
// required for success and never surfaced as the attempt's error.
type AuxiliarySignal struct {
	Source string `json:"source"` // "storage" | "indexed_store" | "network"
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
}

// AuxiliaryConfig controls the side-channel probes.
type AuxiliaryConfig struct {
	// StorageKeywords filter local/session storage keys.
	StorageKeywords []string
	// DatabaseNames are the IndexedDB databases worth sampling.
	DatabaseNames []string
	// NetworkKeywords filter resource-timing entry URLs.
	NetworkKeywords []string
	// TruncateValues bounds stored values. Default 200.
	TruncateValues int
	// SampleRecords bounds records read per object store. Default 5.
	SampleRecords int
	// NetworkSlice bounds resource-timing entries. Default 10.
	NetworkSlice int
}

func (c *AuxiliaryConfig) defaults() {
	if len(c.StorageKeywords) == 0 {
		c.StorageKeywords = []string{"goods", "sku", "price", "shop", "sales", "mall"}
	}
	if len(c.DatabaseNames) == 0 {
		c.DatabaseNames = []string{"goods_cache", "mall_analytics", "seller_stats"}
	}
	if len(c.NetworkKeywords) == 0 {
		c.NetworkKeywords = []string{"goods", "sku", "mall", "analytics", "sales"}
	}
	if c.TruncateValues <= 0 {
		c.TruncateValues = 200
	}
	if c.SampleRecords <= 0 {
		c.SampleRecords = 5
	}
	if c.NetworkSlice <= 0 {
		c.NetworkSlice = 10
	}
}

// collectAuxiliary runs the side-channel probes. Each probe is guarded on
// its own: one failing probe becomes an informational signal and never
// blocks the others.
func collectAuxiliary(ctx context.Context, s Session, cfg AuxiliaryConfig, logger *slog.Logger) []AuxiliarySignal {
	cfg.defaults()

	probes := []struct {
		name string
		run  func() ([]AuxiliarySignal, error)
	}{
		{"storage", func() ([]AuxiliarySignal, error) { return probeStorage(ctx, s, cfg) }},
		{"indexed_store", func() ([]AuxiliarySignal, error) { return probeIndexedDB(ctx, s, cfg) }},
		{"network", func() ([]AuxiliarySignal, error) { return probeResourceTiming(ctx, s, cfg) }},
	}

	var out []AuxiliarySignal
	for _, p := range probes {
		signals, err := p.run()
		if err != nil {
			logger.Debug("inspect: auxiliary probe failed", "probe", p.name, "error", err)
			out = append(out, AuxiliarySignal{Source: p.name, Key: "probe_error", Value: err.Error()})
			continue
		}
		out = append(out, signals...)
	}
	return out
}

func probeStorage(ctx context.Context, s Session, cfg AuxiliaryConfig) ([]AuxiliarySignal, error) {
	kw, _ := json.Marshal(cfg.StorageKeywords)
	expr := fmt.Sprintf(`(() => {
		const kw = %s, max = %d, out = [];
		const scan = (store, src) => {
			for (let i = 0; i < store.length; i++) {
				const k = store.key(i);
				if (!kw.some(w => k.toLowerCase().includes(w))) continue;
				let v = store.getItem(k) || "";
				if (v.length > max) v = v.slice(0, max);
				out.push({key: src + ":" + k, value: v});
			}
		};
		try { scan(localStorage, "local"); } catch (e) {}
		try { scan(sessionStorage, "session"); } catch (e) {}
		return out;
	})()`, kw, cfg.TruncateValues)

	return evalSignals(ctx, s, expr, "storage")
}

func probeIndexedDB(ctx context.Context, s Session, cfg AuxiliaryConfig) ([]AuxiliarySignal, error) {
	names, _ := json.Marshal(cfg.DatabaseNames)
	expr := fmt.Sprintf(`(async () => {
		const names = %s, limit = %d, max = %d, out = [];
		for (const name of names) {
			try {
				const db = await new Promise((resolve, reject) => {
					const req = indexedDB.open(name);
					req.onsuccess = () => resolve(req.result);
					req.onerror = () => reject(req.error);
					// Opening a database that does not exist would create
					// it; abort the upgrade instead.
					req.onupgradeneeded = () => { req.transaction.abort(); reject(new Error("absent")); };
				});
				for (const storeName of Array.from(db.objectStoreNames)) {
					try {
						const rows = await new Promise((resolve, reject) => {
							const tx = db.transaction(storeName, "readonly");
							const req = tx.objectStore(storeName).getAll(null, limit);
							req.onsuccess = () => resolve(req.result);
							req.onerror = () => reject(req.error);
						});
						let v = JSON.stringify(rows);
						if (v.length > max) v = v.slice(0, max);
						out.push({key: name + "/" + storeName, value: v});
					} catch (e) {}
				}
				db.close();
			} catch (e) {}
		}
		return out;
	})()`, names, cfg.SampleRecords, cfg.TruncateValues)

	return evalSignals(ctx, s, expr, "indexed_store")
}

func probeResourceTiming(ctx context.Context, s Session, cfg AuxiliaryConfig) ([]AuxiliarySignal, error) {
	kw, _ := json.Marshal(cfg.NetworkKeywords)
	expr := fmt.Sprintf(`(() => {
		const kw = %s;
		return performance.getEntriesByType("resource")
			.filter(e => kw.some(w => e.name.includes(w)))
			.slice(-%d)
			.map(e => ({key: e.name, value: Math.round(e.duration) + "ms"}));
	})()`, kw, cfg.NetworkSlice)

	return evalSignals(ctx, s, expr, "network")
}

func evalSignals(ctx context.Context, s Session, expr, source string) ([]AuxiliarySignal, error) {
	raw, err := s.EvalJSON(ctx, expr)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode %s probe: %w", source, err)
	}
	out := make([]AuxiliarySignal, 0, len(rows))
	for _, r := range rows {
		out = append(out, AuxiliarySignal{Source: source, Key: r.Key, Value: r.Value})
	}
	return out, nil
}
