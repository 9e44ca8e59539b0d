package sqlite

// Schema is the complete SQLite schema for the Nexus memory store.
// All statements are idempotent (IF NOT EXISTS) so the schema can be applied
// on every open.
const Schema = `
CREATE TABLE IF NOT EXISTS memory_events (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	session_id TEXT,
	event_type TEXT NOT NULL,
	channel TEXT,
	sender_id TEXT,
	content TEXT NOT NULL,
	summary TEXT,
	importance REAL NOT NULL DEFAULT 0.5,
	embedding BLOB,
	consolidated_at TIMESTAMP,
	expires_at TIMESTAMP,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_instance_created
	ON memory_events(instance_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_expires
	ON memory_events(expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_events_unconsolidated
	ON memory_events(instance_id, created_at) WHERE consolidated_at IS NULL;

-- Full-text index over event content for the lexical search fallback.
-- Kept in sync with memory_events via the triggers below.
CREATE VIRTUAL TABLE IF NOT EXISTS memory_events_fts USING fts5(
	content,
	summary,
	content='memory_events',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS memory_events_fts_insert
AFTER INSERT ON memory_events BEGIN
	INSERT INTO memory_events_fts(rowid, content, summary)
	VALUES (new.rowid, new.content, COALESCE(new.summary, ''));
END;

CREATE TRIGGER IF NOT EXISTS memory_events_fts_delete
AFTER DELETE ON memory_events BEGIN
	INSERT INTO memory_events_fts(memory_events_fts, rowid, content, summary)
	VALUES ('delete', old.rowid, old.content, COALESCE(old.summary, ''));
END;

CREATE TRIGGER IF NOT EXISTS memory_events_fts_update
AFTER UPDATE OF content, summary ON memory_events BEGIN
	INSERT INTO memory_events_fts(memory_events_fts, rowid, content, summary)
	VALUES ('delete', old.rowid, old.content, COALESCE(old.summary, ''));
	INSERT INTO memory_events_fts(rowid, content, summary)
	VALUES (new.rowid, new.content, COALESCE(new.summary, ''));
END;

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	aliases TEXT,
	summary TEXT,
	importance REAL NOT NULL DEFAULT 0.5,
	interaction_count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMP,
	embedding BLOB,
	metadata TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(instance_id, name)
);

CREATE INDEX IF NOT EXISTS idx_entities_instance_top
	ON entities(instance_id, interaction_count DESC, last_seen DESC);

CREATE TABLE IF NOT EXISTS entity_relationships (
	id TEXT PRIMARY KEY,
	entity_a_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	entity_b_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
	relationship_type TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.8,
	notes TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(entity_a_id, entity_b_id, relationship_type)
);

CREATE INDEX IF NOT EXISTS idx_relationships_a ON entity_relationships(entity_a_id);
CREATE INDEX IF NOT EXISTS idx_relationships_b ON entity_relationships(entity_b_id);

CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	session_id TEXT,
	channel TEXT,
	sender_id TEXT,
	decision TEXT NOT NULL,
	reasoning TEXT NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.7,
	entities_involved TEXT,
	documents_used TEXT,
	memories_used TEXT,
	model_used TEXT,
	tokens_used INTEGER,
	context_snapshot TEXT,
	outcome TEXT,
	outcome_at TIMESTAMP,
	embedding BLOB,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_decisions_instance_created
	ON decisions(instance_id, created_at DESC);

-- Knowledge-base documents are ingested and chunked by an external pipeline.
-- This store only ever reads them; the tables exist so a single-file
-- deployment can hold everything in one database.
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	title TEXT,
	status TEXT NOT NULL DEFAULT 'READY',
	size_bytes INTEGER NOT NULL DEFAULT 0,
	content TEXT,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_instance
	ON documents(instance_id, created_at DESC);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	instance_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_instance ON document_chunks(instance_id);

CREATE VIRTUAL TABLE IF NOT EXISTS document_chunks_fts USING fts5(
	content,
	content='document_chunks',
	content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS document_chunks_fts_insert
AFTER INSERT ON document_chunks BEGIN
	INSERT INTO document_chunks_fts(rowid, content)
	VALUES (new.rowid, new.content);
END;

CREATE TRIGGER IF NOT EXISTS document_chunks_fts_delete
AFTER DELETE ON document_chunks BEGIN
	INSERT INTO document_chunks_fts(document_chunks_fts, rowid, content)
	VALUES ('delete', old.rowid, old.content);
END;

CREATE TABLE IF NOT EXISTS memory_configs (
	instance_id TEXT PRIMARY KEY,
	tier TEXT NOT NULL DEFAULT 'STANDARD',
	enabled INTEGER NOT NULL DEFAULT 1,
	api_key TEXT NOT NULL,
	digest_content TEXT,
	last_digest_at TIMESTAMP,
	last_mined_at TIMESTAMP,
	last_consolidated_at TIMESTAMP,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
