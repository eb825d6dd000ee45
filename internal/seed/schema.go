package seed

import (
	"context"
	"database/sql"
)

// schema is the full store layout. The tool-server core assumes these
// tables exist; only the seed collaborator creates them.
const schema = `
CREATE TABLE IF NOT EXISTS locations (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	store_code       TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	region           TEXT NOT NULL,
	avg_daily_volume REAL NOT NULL CHECK(avg_daily_volume >= 0),
	pickup_frequency INTEGER NOT NULL CHECK(pickup_frequency BETWEEN 1 AND 5),
	risk_tier        TEXT NOT NULL CHECK(risk_tier IN ('high', 'medium', 'low')),
	smart_safe       INTEGER NOT NULL DEFAULT 0,
	latitude         REAL,
	longitude        REAL
);
CREATE INDEX IF NOT EXISTS idx_locations_region ON locations(region);

CREATE TABLE IF NOT EXISTS carriers (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	name                     TEXT NOT NULL,
	base_pickup_cost         REAL NOT NULL,
	per_mile_cost            REAL NOT NULL,
	overtime_rate_multiplier REAL NOT NULL DEFAULT 1.5,
	max_daily_stops          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS pickup_schedules (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id    INTEGER NOT NULL REFERENCES locations(id),
	carrier_id     INTEGER NOT NULL REFERENCES carriers(id),
	day_of_week    INTEGER NOT NULL CHECK(day_of_week BETWEEN 0 AND 6),
	scheduled_time TEXT NOT NULL,
	route_sequence INTEGER NOT NULL DEFAULT 0,
	active         INTEGER NOT NULL DEFAULT 1
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_schedule_location_day
	ON pickup_schedules(location_id, day_of_week) WHERE active = 1;

CREATE TABLE IF NOT EXISTS deposits (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	location_id  INTEGER NOT NULL REFERENCES locations(id),
	deposit_date TEXT NOT NULL,
	deposit_time TEXT NOT NULL,
	amount       REAL NOT NULL CHECK(amount >= 0),
	day_of_week  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_deposits_location_date ON deposits(location_id, deposit_date);

CREATE TABLE IF NOT EXISTS scheduled_pickups (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	schedule_id    INTEGER REFERENCES pickup_schedules(id),
	location_id    INTEGER NOT NULL REFERENCES locations(id),
	scheduled_date TEXT NOT NULL,
	scheduled_time TEXT NOT NULL,
	actual_time    TEXT,
	status         TEXT NOT NULL CHECK(status IN ('completed', 'missed', 'late')),
	base_cost      REAL NOT NULL DEFAULT 0,
	fuel_surcharge REAL NOT NULL DEFAULT 0,
	overtime_cost  REAL NOT NULL DEFAULT 0,
	insurance_cost REAL NOT NULL DEFAULT 0,
	total_cost     REAL NOT NULL DEFAULT 0,
	cash_collected REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pickups_location_date ON scheduled_pickups(location_id, scheduled_date);

CREATE TABLE IF NOT EXISTS carrier_invoices (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	carrier_id    INTEGER NOT NULL REFERENCES carriers(id),
	month         TEXT NOT NULL,
	total_stops   INTEGER NOT NULL,
	cost_per_stop REAL NOT NULL,
	total_amount  REAL NOT NULL
);
`

// CreateSchema applies the store layout. Safe to call on an existing
// database; every statement is IF NOT EXISTS.
func CreateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
