package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"pricebook/internal/catalog"
	"pricebook/internal/types"
)

// maxParallelParse bounds concurrent definition parsing.
const maxParallelParse = 8

// Loader builds a VersionedCatalog from every definition in a Source.
type Loader struct {
	source  Source
	options []catalog.Option
	logger  *slog.Logger
}

// New creates a Loader. opts are applied to every VersionedCatalog it builds.
func New(source Source, logger *slog.Logger, opts ...catalog.Option) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{source: source, options: opts, logger: logger}
}

// Load fetches, parses and validates all definitions. Nothing is returned
// unless every version is valid and all versions share one catalog name.
func (l *Loader) Load(ctx context.Context) (*catalog.VersionedCatalog, error) {
	docs, err := l.source.Documents(ctx)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, types.NewAppError(types.ErrCodeValidationCatalogInvalid, "no catalog definitions found", nil)
	}

	snapshots, err := ParseAll(ctx, docs)
	if err != nil {
		l.logDefects(ctx, err)
		return nil, err
	}

	vc := catalog.NewVersionedCatalog(l.options...)
	for _, c := range snapshots {
		if err := vc.Add(c); err != nil {
			return nil, err
		}
	}
	l.logger.InfoContext(ctx, "catalog loaded",
		"catalog", vc.CatalogName(),
		"versions", vc.Len(),
		"effective_dates", effectiveDates(vc),
	)
	return vc, nil
}

// ParseAll parses docs concurrently. The result keeps the order of docs.
// Defects of every document are reported together; any other failure is
// returned as is.
func ParseAll(ctx context.Context, docs []types.CatalogDocument) ([]*catalog.StandaloneCatalog, error) {
	out := make([]*catalog.StandaloneCatalog, len(docs))
	failed := make([]error, len(docs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelParse)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c, err := Parse(doc)
			if err != nil {
				failed[i] = err
				return nil
			}
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var defects catalog.ValidationErrors
	for i, err := range failed {
		if err == nil {
			continue
		}
		var verrs catalog.ValidationErrors
		var appErr *types.AppError
		switch {
		case errors.As(err, &verrs):
			for _, v := range verrs {
				v.Document = docs[i].Name
				defects = append(defects, v)
			}
		case errors.As(err, &appErr) && appErr.Code.IsValidation():
			defects = append(defects, catalog.ValidationError{
				Document: docs[i].Name,
				Kind:     "document",
				Name:     docs[i].Name,
				Message:  appErr.Message,
			})
		default:
			return nil, err
		}
	}
	if err := defects.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Parse decompresses, decodes and builds one definition.
func Parse(doc types.CatalogDocument) (*catalog.StandaloneCatalog, error) {
	body, err := decompress(doc.Name, doc.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeValidationCatalogInvalid, err.Error(), err).
			WithDetails(map[string]any{"document": doc.Name})
	}
	def, err := DecodeBytes(body)
	if err != nil {
		return nil, withDocument(err, doc.Name)
	}
	c, err := Build(def)
	if err != nil {
		return nil, withDocument(err, doc.Name)
	}
	return c, nil
}

func withDocument(err error, name string) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		details := map[string]any{"document": name}
		for k, v := range appErr.Details {
			details[k] = v
		}
		return types.NewAppErrorWithDetails(appErr.Code,
			fmt.Sprintf("%s: %s", name, appErr.Message), appErr.Err, details)
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (l *Loader) logDefects(ctx context.Context, err error) {
	var verrs catalog.ValidationErrors
	if !errors.As(err, &verrs) {
		l.logger.WarnContext(ctx, "catalog load failed", "error", err)
		return
	}
	for _, v := range verrs {
		l.logger.WarnContext(ctx, "catalog defect",
			"document", v.Document,
			"kind", v.Kind,
			"name", v.Name,
			"message", v.Message,
		)
	}
}

func effectiveDates(vc *catalog.VersionedCatalog) []string {
	versions := vc.Versions()
	out := make([]string, len(versions))
	for i, c := range versions {
		out[i] = c.EffectiveDate.Format("2006-01-02")
	}
	return out
}
