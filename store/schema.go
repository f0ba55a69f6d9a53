package store

// Schema contains the complete DDL for the skuprobe tables.
const Schema = `
-- Products: one row per goods ID, latest known state
CREATE TABLE IF NOT EXISTS products (
    goods_id    TEXT PRIMARY KEY,
    page_url    TEXT NOT NULL,
    title       TEXT NOT NULL DEFAULT '',
    price       REAL,
    currency    TEXT NOT NULL DEFAULT '',
    category    TEXT NOT NULL DEFAULT '',
    shop_name   TEXT NOT NULL DEFAULT '',
    images      TEXT NOT NULL DEFAULT '[]',
    fields      TEXT NOT NULL DEFAULT '{}',
    samples     TEXT NOT NULL DEFAULT '[]',
    auxiliary   TEXT NOT NULL DEFAULT '[]',
    first_seen  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_updated ON products(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_products_shop ON products(shop_name) WHERE shop_name != '';

-- Price history: one row per observed price change
CREATE TABLE IF NOT EXISTS price_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    goods_id    TEXT NOT NULL,
    price       REAL NOT NULL,
    currency    TEXT NOT NULL DEFAULT '',
    recorded_at INTEGER NOT NULL,
    FOREIGN KEY (goods_id) REFERENCES products(goods_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_history_goods ON price_history(goods_id, recorded_at DESC);

-- Attempt log: one row per extraction attempt for diagnostics
CREATE TABLE IF NOT EXISTS attempt_log (
    id           TEXT PRIMARY KEY,
    goods_id     TEXT NOT NULL DEFAULT '',
    page_url     TEXT NOT NULL,
    attempt      INTEGER NOT NULL,
    strategy     TEXT NOT NULL DEFAULT '',
    success      INTEGER NOT NULL DEFAULT 0,
    error_class  TEXT NOT NULL DEFAULT '',
    field_count  INTEGER NOT NULL DEFAULT 0,
    sample_count INTEGER NOT NULL DEFAULT 0,
    elapsed_ms   INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_goods ON attempt_log(goods_id);
CREATE INDEX IF NOT EXISTS idx_attempts_time ON attempt_log(created_at DESC);
`
