package migrations

import (
	"fmt"
	"log"

	"github.com/toolscout/toolscout/internal/db"
	"github.com/toolscout/toolscout/internal/model"
	"gorm.io/gorm"
)

// embeddingIndexName is the IVF-flat cosine index over tools.embedding.
const embeddingIndexName = "idx_tools_embedding"

// ivfFlatLists is the pgvector list count for the ANN index.
const ivfFlatLists = 100

// Migrate brings the schema up to date and reconciles the embedding
// column and index with the configured dimension. The dimension
// argument is the single source of truth: a column created with a
// different dimension is rebuilt (dropping all stored embeddings, which
// then regenerate on demand via reindex or discovery).
func Migrate(conn *gorm.DB, embeddingDimension int) error {
	if embeddingDimension < 1 {
		return fmt.Errorf("invalid embedding dimension: %d", embeddingDimension)
	}

	if err := conn.AutoMigrate(
		&model.Tool{},
		&model.ToolExecution{},
	); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}

	if db.IsPostgres(conn) {
		return migrateVectorColumnPostgres(conn, embeddingDimension)
	}
	return migrateEmbeddingColumnSQLite(conn)
}

// migrateVectorColumnPostgres installs the pgvector extension and
// makes tools.embedding a vector column of exactly the configured
// dimension, with an IVF-flat cosine index.
func migrateVectorColumnPostgres(conn *gorm.DB, dimension int) error {
	if err := conn.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("failed to create the pgvector extension: %w", err)
	}

	current, err := currentEmbeddingDimension(conn)
	if err != nil {
		return err
	}

	switch {
	case current == nil:
		if err := conn.Exec(
			fmt.Sprintf("ALTER TABLE tools ADD COLUMN embedding vector(%d)", dimension),
		).Error; err != nil {
			return fmt.Errorf("failed to add the embedding column: %w", err)
		}

	case *current != dimension:
		// Dimension change: drop the index, clear the old vectors
		// (they cannot be cast across dimensions), retype the column,
		// then rebuild the index below.
		log.Printf("[migrations] embedding dimension changed from %d to %d, clearing stored embeddings\n",
			*current, dimension)
		if err := conn.Exec("DROP INDEX IF EXISTS " + embeddingIndexName).Error; err != nil {
			return fmt.Errorf("failed to drop the embedding index: %w", err)
		}
		if err := conn.Exec("UPDATE tools SET embedding = NULL").Error; err != nil {
			return fmt.Errorf("failed to clear stored embeddings: %w", err)
		}
		if err := conn.Exec(
			fmt.Sprintf("ALTER TABLE tools ALTER COLUMN embedding TYPE vector(%d)", dimension),
		).Error; err != nil {
			return fmt.Errorf("failed to change the embedding column dimension: %w", err)
		}
	}

	if err := conn.Exec(fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON tools USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d)",
		embeddingIndexName, ivfFlatLists,
	)).Error; err != nil {
		return fmt.Errorf("failed to create the embedding index: %w", err)
	}

	return nil
}

// currentEmbeddingDimension returns the dimension of the existing
// embedding column, or nil when the column does not exist. pgvector
// stores the dimension as the column's type modifier; a bare "vector"
// column without one reports -1 and gets retyped like any mismatch.
func currentEmbeddingDimension(conn *gorm.DB) (*int, error) {
	var typmod *int
	err := conn.Raw(
		"SELECT atttypmod FROM pg_attribute WHERE attrelid = 'tools'::regclass AND attname = 'embedding' AND NOT attisdropped",
	).Scan(&typmod).Error
	if err != nil {
		return nil, fmt.Errorf("failed to inspect the embedding column: %w", err)
	}
	return typmod, nil
}

// migrateEmbeddingColumnSQLite adds a plain text embedding column so
// the model round-trips on SQLite. There is no vector index: SQLite
// deployments run lexical-only search.
func migrateEmbeddingColumnSQLite(conn *gorm.DB) error {
	var count int64
	err := conn.Raw(
		"SELECT COUNT(*) FROM pragma_table_info('tools') WHERE name = 'embedding'",
	).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("failed to inspect the embedding column: %w", err)
	}
	if count == 0 {
		if err := conn.Exec("ALTER TABLE tools ADD COLUMN embedding text").Error; err != nil {
			return fmt.Errorf("failed to add the embedding column: %w", err)
		}
	}
	return nil
}
