// Package publisher admits new catalog versions. A definition uploaded to the
// catalog bucket is parsed, validated together with every version already
// published, stored in Postgres and announced on the reload queue so that API
// instances swap it in.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"pricebook/internal/catalog"
	"pricebook/internal/db"
	"pricebook/internal/loader"
	"pricebook/internal/types"
)

// Fetcher downloads an uploaded definition.
type Fetcher interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// VersionStore persists published definitions.
type VersionStore interface {
	ListDocuments(ctx context.Context) ([]types.CatalogDocument, error)
	Insert(ctx context.Context, rec *types.CatalogVersionRecord, body []byte) error
}

// Notifier announces a stored version to API instances.
type Notifier interface {
	Publish(ctx context.Context, msg types.ReloadMessage) error
}

// MetricPublisher records the outcome of every admission.
type MetricPublisher interface {
	RecordPublish(ctx context.Context, catalogName string, err error)
}

// Config holds the publisher settings.
type Config struct {
	// Bucket is the only bucket events are accepted from.
	Bucket string
}

// Publisher admits uploaded catalog definitions.
type Publisher struct {
	Config   Config
	Log      *slog.Logger
	Source   Fetcher
	Store    VersionStore
	Notifier Notifier
	Metrics  MetricPublisher
}

// unknownCatalog labels metrics for definitions that could not be parsed.
const unknownCatalog = "unknown"

// Publish admits the definition stored under key. It returns the stored
// record, or nil when key is not a definition. Re-publishing a definition
// that is already stored with the same content only re-sends the
// notification.
func (p *Publisher) Publish(ctx context.Context, key string) (*types.CatalogVersionRecord, error) {
	if !loader.IsDefinitionName(key) {
		p.Log.InfoContext(ctx, "ignoring non-definition object", "key", key)
		return nil, nil
	}

	body, err := p.Source.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}

	snapshot, err := loader.Parse(types.CatalogDocument{Name: key, Body: body})
	if err != nil {
		p.reject(ctx, unknownCatalog, key, err)
		return nil, err
	}

	rec := &types.CatalogVersionRecord{
		CatalogName:   snapshot.Name,
		EffectiveDate: snapshot.EffectiveDate,
		SourceKey:     key,
		Checksum:      db.Checksum(body),
	}

	docs, err := p.Store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	if republished := slices.ContainsFunc(docs, func(d types.CatalogDocument) bool {
		return d.Name == key && db.Checksum(d.Body) == rec.Checksum
	}); republished {
		p.Log.InfoContext(ctx, "definition already stored, re-sending notification", "key", key)
		return rec, p.notify(ctx, rec)
	}

	if err := p.admit(ctx, snapshot, docs); err != nil {
		p.reject(ctx, snapshot.Name, key, err)
		return nil, err
	}

	if err := p.Store.Insert(ctx, rec, body); err != nil {
		if isRejection(err) {
			p.reject(ctx, snapshot.Name, key, err)
		}
		return nil, err
	}
	p.Metrics.RecordPublish(ctx, rec.CatalogName, nil)

	p.Log.InfoContext(ctx, "catalog version published",
		"catalog", rec.CatalogName,
		"effective_date", rec.EffectiveDate,
		"key", key,
		"id", rec.ID,
	)
	return rec, p.notify(ctx, rec)
}

// admit checks that snapshot fits the published history: same catalog name,
// a new effective date, and every version valid.
func (p *Publisher) admit(ctx context.Context, snapshot *catalog.StandaloneCatalog, docs []types.CatalogDocument) error {
	published, err := loader.ParseAll(ctx, docs)
	if err != nil {
		return err
	}

	vc := catalog.NewVersionedCatalog()
	for _, c := range published {
		if err := vc.Add(c); err != nil {
			return err
		}
	}
	if err := vc.Add(snapshot); err != nil {
		return err
	}
	return vc.Validate()
}

func (p *Publisher) notify(ctx context.Context, rec *types.CatalogVersionRecord) error {
	return p.Notifier.Publish(ctx, types.ReloadMessageFor(*rec))
}

func (p *Publisher) reject(ctx context.Context, catalogName, key string, err error) {
	p.Metrics.RecordPublish(ctx, catalogName, err)
	p.Log.WarnContext(ctx, "catalog definition rejected",
		"catalog", catalogName,
		"key", key,
		"error", err,
	)
}

// isRejection reports whether err is a verdict on the definition itself
// rather than an infrastructure failure. Rejections are not retried.
func isRejection(err error) bool {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		return false
	}
	status := appErr.HTTPStatus()
	return status >= 400 && status < 500
}
