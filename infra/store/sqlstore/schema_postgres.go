package sqlstore

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS products (
    code        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS colors (
    code        TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS product_details (
    id                BIGINT PRIMARY KEY,
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
    height             DOUBLE PRECISION,
    diameter           DOUBLE PRECISION,
    base               DOUBLE PRECISION,
    plannable_capacity DOUBLE PRECISION,
    total_capacity     DOUBLE PRECISION,
    tare               DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS stations (
    id       TEXT PRIMARY KEY,
    location TEXT
);

CREATE TABLE IF NOT EXISTS compatibility (
    id                  BIGINT PRIMARY KEY,
    vessel_id           TEXT NOT NULL REFERENCES vessels(id) ON DELETE CASCADE,
    station_id          TEXT NOT NULL,
    color_code          TEXT NOT NULL,
    number              INTEGER NOT NULL DEFAULT 0,
    total_capacity      DOUBLE PRECISION,
    ratio               DOUBLE PRECISION,
    diameter_flag       TEXT,
    min_dispersion_base DOUBLE PRECISION,
    plannable_capacity  DOUBLE PRECISION,
    station_label       TEXT,
    validation          DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS idx_compatibility_color ON compatibility(color_code);
CREATE INDEX IF NOT EXISTS idx_compatibility_vessel ON compatibility(vessel_id);

CREATE TABLE IF NOT EXISTS production_orders (
    id                BIGSERIAL PRIMARY KEY,
    label             TEXT NOT NULL DEFAULT '',
    product_code      TEXT NOT NULL,
    lot_size          DOUBLE PRECISION,
    produced_quantity DOUBLE PRECISION,
    vessel_id         TEXT REFERENCES vessels(id) ON DELETE SET NULL,
    station           TEXT,
    start_at          BIGINT,
    end_at            BIGINT,
    total_duration    DOUBLE PRECISION,
    pasting           DOUBLE PRECISION,
    milling           DOUBLE PRECISION,
    emulsion          DOUBLE PRECISION,
    completion        DOUBLE PRECISION,
    tinting           DOUBLE PRECISION,
    packaging         DOUBLE PRECISION,
    parent_id         BIGINT REFERENCES production_orders(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_production_orders_parent ON production_orders(parent_id);

CREATE TABLE IF NOT EXISTS occupancy (
    id        BIGSERIAL PRIMARY KEY,
    vessel_id TEXT NOT NULL REFERENCES vessels(id) ON DELETE CASCADE,
    start_at  BIGINT,
    end_at    BIGINT,
    status    TEXT NOT NULL DEFAULT 'available',
    order_id  BIGINT UNIQUE REFERENCES production_orders(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_occupancy_vessel ON occupancy(vessel_id);

CREATE TABLE IF NOT EXISTS order_extras (
    order_id BIGINT PRIMARY KEY REFERENCES production_orders(id) ON DELETE CASCADE,
    payload  JSONB NOT NULL DEFAULT '{}'::jsonb
);
`
