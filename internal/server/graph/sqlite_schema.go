package graph

// SQLite schema DDL constants

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    label TEXT NOT NULL,
    name TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(label, name)
)`

const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    from_id INTEGER NOT NULL REFERENCES nodes(id),
    kind TEXT NOT NULL,
    to_id INTEGER NOT NULL REFERENCES nodes(id),
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(from_id, kind, to_id)
)`

// Index definitions
const indexNodesName = `CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name)`
const indexEdgesTo = `CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id)`

// SQLite pragmas
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaEdges,
		indexNodesName,
		indexEdgesTo,
	}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
	}
}
