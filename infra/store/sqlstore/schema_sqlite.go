package sqlstore

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS products (
    code        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS colors (
    code        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS product_details (
    id                INTEGER PRIMARY KEY,
    product_code      TEXT NOT NULL REFERENCES products(code) ON DELETE CASCADE,
    intermediate_code TEXT,
    description       TEXT NOT NULL DEFAULT '',
    color_code        TEXT REFERENCES colors(code) ON DELETE SET NULL
);
CREATE INDEX IF NOT EXISTS idx_product_details_product ON product_details(product_code);

CREATE TABLE IF NOT EXISTS vessels (
    id                 TEXT PRIMARY KEY,
    number             INTEGER NOT NULL DEFAULT 0,
    type               TEXT,
    height             REAL,
    diameter           REAL,
    base               REAL,
    plannable_capacity REAL,
    total_capacity     REAL,
    tare               REAL
);

CREATE TABLE IF NOT EXISTS stations (
    id       TEXT PRIMARY KEY,
    location TEXT
);

CREATE TABLE IF NOT EXISTS compatibility (
    id                  INTEGER PRIMARY KEY,
    vessel_id           TEXT NOT NULL REFERENCES vessels(id) ON DELETE CASCADE,
    station_id          TEXT NOT NULL,
    color_code          TEXT NOT NULL,
    number              INTEGER NOT NULL DEFAULT 0,
    total_capacity      REAL,
    ratio               REAL,
    diameter_flag       TEXT,
    min_dispersion_base REAL,
    plannable_capacity  REAL,
    station_label       TEXT,
    validation          REAL
);
CREATE INDEX IF NOT EXISTS idx_compatibility_color ON compatibility(color_code);
CREATE INDEX IF NOT EXISTS idx_compatibility_vessel ON compatibility(vessel_id);

CREATE TABLE IF NOT EXISTS production_orders (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    label             TEXT NOT NULL DEFAULT '',
    product_code      TEXT NOT NULL,
    lot_size          REAL,
    produced_quantity REAL,
    vessel_id         TEXT REFERENCES vessels(id) ON DELETE SET NULL,
    station           TEXT,
    start_at          INTEGER,
    end_at            INTEGER,
    total_duration    REAL,
    pasting           REAL,
    milling           REAL,
    emulsion          REAL,
    completion        REAL,
    tinting           REAL,
    packaging         REAL,
    parent_id         INTEGER REFERENCES production_orders(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_production_orders_parent ON production_orders(parent_id);

CREATE TABLE IF NOT EXISTS occupancy (
    id        INTEGER PRIMARY KEY AUTOINCREMENT,
    vessel_id TEXT NOT NULL REFERENCES vessels(id) ON DELETE CASCADE,
    start_at  INTEGER,
    end_at    INTEGER,
    status    TEXT NOT NULL DEFAULT 'available',
    order_id  INTEGER UNIQUE REFERENCES production_orders(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_occupancy_vessel ON occupancy(vessel_id);

CREATE TABLE IF NOT EXISTS order_extras (
    order_id INTEGER PRIMARY KEY REFERENCES production_orders(id) ON DELETE CASCADE,
    payload  TEXT NOT NULL DEFAULT '{}'
);
`
