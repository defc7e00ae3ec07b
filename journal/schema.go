// journal/schema.go
package journal

// Decimals are stored as TEXT so no precision is lost to REAL.
const Schema = `
CREATE TABLE IF NOT EXISTS realizations (
	id TEXT PRIMARY KEY,
	instrument TEXT NOT NULL,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	side TEXT NOT NULL,
	leg_id INTEGER NOT NULL DEFAULT 0,
	volume TEXT NOT NULL,
	entry_price TEXT NOT NULL,
	exit_price TEXT NOT NULL,
	commission TEXT NOT NULL,
	realized TEXT NOT NULL,
	time DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_realizations_time ON realizations(time);
CREATE INDEX IF NOT EXISTS idx_realizations_instrument ON realizations(instrument, seq);

CREATE TABLE IF NOT EXISTS snapshots (
	time DATETIME NOT NULL,
	instrument TEXT NOT NULL,
	seq INTEGER NOT NULL,
	net_volume TEXT NOT NULL,
	average_price TEXT NOT NULL,
	gains TEXT NOT NULL,
	losses TEXT NOT NULL,
	commission TEXT NOT NULL,
	open_legs INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_time ON snapshots(time);
`
