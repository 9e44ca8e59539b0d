package postgres

// Schema is the base PostgreSQL schema. All statements are idempotent so the
// schema can be applied on every open. Embedding columns live in
// MigrationPgvector and are only applied when the extension is present.
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
	consolidated_at TIMESTAMPTZ,
	expires_at TIMESTAMPTZ,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_events_instance_created
	ON memory_events(instance_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_events_expires
	ON memory_events(expires_at) WHERE expires_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_events_unconsolidated
	ON memory_events(instance_id, created_at) WHERE consolidated_at IS NULL;

-- Generated tsvector column for the lexical search fallback.
ALTER TABLE memory_events ADD COLUMN IF NOT EXISTS content_tsv tsvector
	GENERATED ALWAYS AS (
		to_tsvector('english', content || ' ' || COALESCE(summary, ''))
	) STORED;
CREATE INDEX IF NOT EXISTS idx_events_tsv ON memory_events USING GIN(content_tsv);

CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	type TEXT NOT NULL,
	name TEXT NOT NULL,
	aliases JSONB,
	summary TEXT,
	importance REAL NOT NULL DEFAULT 0.5,
	interaction_count INTEGER NOT NULL DEFAULT 1,
	last_seen TIMESTAMPTZ,
	metadata JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
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
	reasoning JSONB NOT NULL,
	confidence REAL NOT NULL DEFAULT 0.7,
	entities_involved JSONB,
	documents_used JSONB,
	memories_used JSONB,
	model_used TEXT,
	tokens_used INTEGER,
	context_snapshot JSONB,
	outcome TEXT,
	outcome_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_decisions_instance_created
	ON decisions(instance_id, created_at DESC);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	instance_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	title TEXT,
	status TEXT NOT NULL DEFAULT 'READY',
	size_bytes BIGINT NOT NULL DEFAULT 0,
	content TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_documents_instance
	ON documents(instance_id, created_at DESC);

CREATE TABLE IF NOT EXISTS document_chunks (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	instance_id TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	content TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chunks_instance ON document_chunks(instance_id);

ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS content_tsv tsvector
	GENERATED ALWAYS AS (to_tsvector('english', content)) STORED;
CREATE INDEX IF NOT EXISTS idx_chunks_tsv ON document_chunks USING GIN(content_tsv);

CREATE TABLE IF NOT EXISTS memory_configs (
	instance_id TEXT PRIMARY KEY,
	tier TEXT NOT NULL DEFAULT 'STANDARD',
	enabled BOOLEAN NOT NULL DEFAULT TRUE,
	api_key TEXT NOT NULL,
	digest_content TEXT,
	last_digest_at TIMESTAMPTZ,
	last_mined_at TIMESTAMPTZ,
	last_consolidated_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// MigrationPgvector adds embedding columns and ANN indexes. Applied only when
// the vector extension is installed.
const MigrationPgvector = `
ALTER TABLE memory_events ADD COLUMN IF NOT EXISTS embedding vector(1536);
ALTER TABLE entities ADD COLUMN IF NOT EXISTS embedding vector(1536);
ALTER TABLE decisions ADD COLUMN IF NOT EXISTS embedding vector(1536);
ALTER TABLE document_chunks ADD COLUMN IF NOT EXISTS embedding vector(1536);

CREATE INDEX IF NOT EXISTS idx_events_embedding
	ON memory_events USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
CREATE INDEX IF NOT EXISTS idx_chunks_embedding
	ON document_chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
