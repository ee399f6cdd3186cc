package sqlite

// Table names follow the catalog the tagger was first run against.
const schema = `
CREATE TABLE IF NOT EXISTS food_info (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS food_tag (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    inserted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS food_info_tag (
    food_id TEXT NOT NULL REFERENCES food_info(id) ON DELETE CASCADE,
    tag_id INTEGER NOT NULL REFERENCES food_tag(id) ON DELETE CASCADE,
    PRIMARY KEY (food_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_food_info_tag_tag ON food_info_tag(tag_id);

CREATE TABLE IF NOT EXISTS tagging_prompt (
    slot INTEGER PRIMARY KEY CHECK (slot = 1),
    text TEXT NOT NULL,
    version INTEGER NOT NULL,
    score REAL NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
