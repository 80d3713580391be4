// services/finance-service/internal/store/postgres/artifact_store.postgres.go

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/IvanGarzon/lfm-admin-sub002/services/finance-service/internal/document"
)

type ArtifactStore struct {
	db *sql.DB
}

func NewArtifactStore(db *sql.DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

const artifactColumns = `id, owner_document_id, kind, content_hash, blob_key, blob_location, byte_size, created_at`

func (store *ArtifactStore) LatestArtifact(ctx context.Context, owner uuid.UUID, kind document.Kind) (*document.Artifact, error) {
	var a document.Artifact
	err := conn(ctx, store.db).QueryRowContext(ctx, `
		SELECT `+artifactColumns+`
		FROM document_artifacts
		WHERE owner_document_id = $1 AND kind = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, owner, kind,
	).Scan(&a.ID, &a.OwnerDocumentID, &a.Kind, &a.ContentHash, &a.BlobKey, &a.BlobLocation, &a.ByteSize, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest artifact: %w", mapError(err))
	}
	return &a, nil
}

// InsertArtifact only ever appends; older rows stay as the audit trail.
func (store *ArtifactStore) InsertArtifact(ctx context.Context, a *document.Artifact) error {
	_, err := conn(ctx, store.db).ExecContext(ctx, `
		INSERT INTO document_artifacts (`+artifactColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.OwnerDocumentID, a.Kind, a.ContentHash, a.BlobKey, a.BlobLocation, a.ByteSize, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert artifact: %w", mapError(err))
	}
	return nil
}

func (store *ArtifactStore) ListArtifacts(ctx context.Context, owner uuid.UUID, kind document.Kind) ([]document.Artifact, error) {
	rows, err := conn(ctx, store.db).QueryContext(ctx, `
		SELECT `+artifactColumns+`
		FROM document_artifacts
		WHERE owner_document_id = $1 AND kind = $2
		ORDER BY created_at DESC, id DESC`, owner, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list artifacts: %w", mapError(err))
	}
	defer rows.Close()

	var out []document.Artifact
	for rows.Next() {
		var a document.Artifact
		if err := rows.Scan(&a.ID, &a.OwnerDocumentID, &a.Kind, &a.ContentHash, &a.BlobKey, &a.BlobLocation, &a.ByteSize, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
