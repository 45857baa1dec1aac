// Package warehouse defines the star schema DDL and loads built tables into
// PostgreSQL inside a single transaction.
package warehouse

// Star table names in dependency order: dimensions first, the fact last.
const (
	TableDates       = "dim_dates"
	TableGeolocation = "dim_geolocation"
	TableCustomers   = "dim_customers"
	TableSellers     = "dim_sellers"
	TableProducts    = "dim_products"
	TableFacts       = "fact_orders"
)

// TableNames lists every star table in load order.
var TableNames = []string{
	TableDates, TableGeolocation, TableCustomers, TableSellers, TableProducts, TableFacts,
}

// SchemaSQL drops and recreates every star table. It is executed verbatim
// at the start of each load.
const SchemaSQL = `
DROP TABLE IF EXISTS fact_orders CASCADE;
DROP TABLE IF EXISTS dim_products CASCADE;
DROP TABLE IF EXISTS dim_sellers CASCADE;
DROP TABLE IF EXISTS dim_customers CASCADE;
DROP TABLE IF EXISTS dim_geolocation CASCADE;
DROP TABLE IF EXISTS dim_dates CASCADE;

-- Calendar days referenced by any order timestamp
CREATE TABLE dim_dates (
    date_key     INTEGER PRIMARY KEY CHECK (date_key > 0),
    full_date    DATE NOT NULL UNIQUE,
    year         INTEGER NOT NULL,
    quarter      SMALLINT NOT NULL CHECK (quarter BETWEEN 1 AND 4),
    month        SMALLINT NOT NULL CHECK (month BETWEEN 1 AND 12),
    day          SMALLINT NOT NULL CHECK (day BETWEEN 1 AND 31),
    day_of_week  SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
    day_name     VARCHAR(10) NOT NULL,
    is_weekend   SMALLINT NOT NULL CHECK (is_weekend IN (0, 1))
);

-- One row per zip-code prefix
CREATE TABLE dim_geolocation (
    geo_key          INTEGER PRIMARY KEY CHECK (geo_key > 0),
    zip_code_prefix  TEXT NOT NULL UNIQUE,
    lat              DOUBLE PRECISION,
    lng              DOUBLE PRECISION,
    city             TEXT,
    state            TEXT
);

CREATE TABLE dim_customers (
    customer_key        INTEGER PRIMARY KEY CHECK (customer_key > 0),
    customer_id         TEXT NOT NULL UNIQUE,
    customer_unique_id  TEXT,
    geo_key             INTEGER REFERENCES dim_geolocation(geo_key),
    city                TEXT,
    state               TEXT
);

CREATE TABLE dim_sellers (
    seller_key  INTEGER PRIMARY KEY CHECK (seller_key > 0),
    seller_id   TEXT NOT NULL UNIQUE,
    geo_key     INTEGER REFERENCES dim_geolocation(geo_key),
    city        TEXT,
    state       TEXT
);

CREATE TABLE dim_products (
    product_key       INTEGER PRIMARY KEY CHECK (product_key > 0),
    product_id        TEXT NOT NULL UNIQUE,
    category_name_pt  TEXT NOT NULL,
    category_name_en  TEXT NOT NULL,
    weight_g          DOUBLE PRECISION,
    length_cm         DOUBLE PRECISION,
    height_cm         DOUBLE PRECISION,
    width_cm          DOUBLE PRECISION,
    photos_qty        DOUBLE PRECISION
);

-- Grain: one row per order line item
CREATE TABLE fact_orders (
    fact_key             BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    order_id             TEXT NOT NULL,
    order_item_id        INTEGER NOT NULL,
    date_key             INTEGER REFERENCES dim_dates(date_key),
    customer_key         INTEGER REFERENCES dim_customers(customer_key),
    seller_key           INTEGER REFERENCES dim_sellers(seller_key),
    product_key          INTEGER REFERENCES dim_products(product_key),
    customer_geo_key     INTEGER REFERENCES dim_geolocation(geo_key),
    seller_geo_key       INTEGER REFERENCES dim_geolocation(geo_key),
    order_status         TEXT,
    price                DOUBLE PRECISION NOT NULL CHECK (price >= 0),
    freight_value        DOUBLE PRECISION NOT NULL CHECK (freight_value >= 0),
    order_payment_total  DOUBLE PRECISION CHECK (order_payment_total >= 0),
    payment_type         TEXT,
    review_score         SMALLINT CHECK (review_score BETWEEN 1 AND 5),
    delivery_days        DOUBLE PRECISION,
    estimated_days       DOUBLE PRECISION,
    delivery_delta_days  DOUBLE PRECISION,
    UNIQUE (order_id, order_item_id)
);

CREATE INDEX idx_fact_orders_date ON fact_orders (date_key);
CREATE INDEX idx_fact_orders_customer ON fact_orders (customer_key);
CREATE INDEX idx_fact_orders_seller ON fact_orders (seller_key);
CREATE INDEX idx_fact_orders_product ON fact_orders (product_key);
`

// DropSchemaSQL removes every star table.
const DropSchemaSQL = `
DROP TABLE IF EXISTS fact_orders CASCADE;
DROP TABLE IF EXISTS dim_products CASCADE;
DROP TABLE IF EXISTS dim_sellers CASCADE;
DROP TABLE IF EXISTS dim_customers CASCADE;
DROP TABLE IF EXISTS dim_geolocation CASCADE;
DROP TABLE IF EXISTS dim_dates CASCADE;
`
