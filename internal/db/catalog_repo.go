package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"pricebook/internal/types"
)

// CatalogVersionRepo stores published catalog definitions. Each row holds the
// raw definition body exactly as published so the catalog can be rebuilt
// from the table alone.
type CatalogVersionRepo struct {
	db     DBTX
	logger *slog.Logger
}

// NewCatalogVersionRepo creates a CatalogVersionRepo.
func NewCatalogVersionRepo(db DBTX, logger *slog.Logger) *CatalogVersionRepo {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogVersionRepo{db: db, logger: logger}
}

// Checksum returns the hex SHA-256 of a definition body.
func Checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Insert stores a new version. A second version of the same catalog with the
// same effective date is rejected with a conflict error.
func (r *CatalogVersionRepo) Insert(ctx context.Context, rec *types.CatalogVersionRecord, body []byte) error {
	if rec.Checksum == "" {
		rec.Checksum = Checksum(body)
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO catalog_versions (catalog_name, effective_date, source_key, checksum, body)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (catalog_name, effective_date) DO NOTHING
		 RETURNING id, published_at`,
		rec.CatalogName,
		rec.EffectiveDate,
		rec.SourceKey,
		rec.Checksum,
		body,
	).Scan(&rec.ID, &rec.PublishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return types.NewAppErrorWithDetails(types.ErrCodeConflictCatalogExists,
			fmt.Sprintf("catalog %s already has a version effective %s",
				rec.CatalogName, rec.EffectiveDate.Format("2006-01-02T15:04:05Z07:00")),
			nil, map[string]any{"catalog_name": rec.CatalogName, "effective_date": rec.EffectiveDate})
	}
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to insert catalog version", err)
	}
	r.logger.InfoContext(ctx, "catalog version stored",
		slog.Int64("id", rec.ID),
		slog.String("catalog_name", rec.CatalogName),
		slog.Time("effective_date", rec.EffectiveDate),
	)
	return nil
}

// List returns the metadata of every stored version, oldest first.
func (r *CatalogVersionRepo) List(ctx context.Context) ([]types.CatalogVersionRecord, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, catalog_name, effective_date, source_key, checksum, published_at
		 FROM catalog_versions
		 ORDER BY effective_date ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list catalog versions", err)
	}
	defer rows.Close()

	var out []types.CatalogVersionRecord
	for rows.Next() {
		var rec types.CatalogVersionRecord
		if err := rows.Scan(&rec.ID, &rec.CatalogName, &rec.EffectiveDate, &rec.SourceKey, &rec.Checksum, &rec.PublishedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan catalog version", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating catalog versions", err)
	}
	return out, nil
}

// ListDocuments returns every stored definition body, oldest first. It
// satisfies loader.DocumentStore.
func (r *CatalogVersionRepo) ListDocuments(ctx context.Context) ([]types.CatalogDocument, error) {
	rows, err := r.db.Query(ctx,
		`SELECT source_key, body
		 FROM catalog_versions
		 ORDER BY effective_date ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load catalog definitions", err)
	}
	defer rows.Close()

	var out []types.CatalogDocument
	for rows.Next() {
		var doc types.CatalogDocument
		if err := rows.Scan(&doc.Name, &doc.Body); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan catalog definition", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating catalog definitions", err)
	}
	return out, nil
}

// Delete removes one version. Removing a version that does not exist is a
// not-found error.
func (r *CatalogVersionRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM catalog_versions WHERE id = $1`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete catalog version", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundCatalogVersion,
			fmt.Sprintf("catalog version %d not found", id), nil)
	}
	return nil
}

// Ping checks connectivity with a trivial query.
func (r *CatalogVersionRepo) Ping(ctx context.Context) error {
	var one int
	if err := r.db.QueryRow(ctx, `SELECT 1`).Scan(&one); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "database ping failed", err)
	}
	return nil
}
