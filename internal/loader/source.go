package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sony/gobreaker/v2"

	"pricebook/internal/types"
)

// Source yields every stored catalog definition.
type Source interface {
	Documents(ctx context.Context) ([]types.CatalogDocument, error)
}

// DirSource reads definitions from a local directory (non-recursive).
type DirSource struct {
	Dir string
}

func (s DirSource) Documents(ctx context.Context) ([]types.CatalogDocument, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStorage,
			fmt.Sprintf("failed to read catalog directory %s", s.Dir), err)
	}
	var docs []types.CatalogDocument
	for _, e := range entries {
		if e.IsDir() || !IsDefinitionName(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := os.ReadFile(filepath.Join(s.Dir, e.Name()))
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamStorage,
				fmt.Sprintf("failed to read catalog file %s", e.Name()), err)
		}
		docs = append(docs, types.CatalogDocument{Name: e.Name(), Body: body})
	}
	return docs, nil
}

// S3API is the subset of the S3 client the loader uses.
type S3API interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source reads every definition under Prefix in Bucket. Calls go through a
// circuit breaker so a struggling bucket fails reloads fast.
type S3Source struct {
	client  S3API
	bucket  string
	prefix  string
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *slog.Logger
}

// NewS3Source creates an S3Source.
func NewS3Source(client S3API, bucket, prefix string, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Source{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "catalog-s3",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 5
			},
		}),
	}
}

func (s *S3Source) Documents(ctx context.Context) ([]types.CatalogDocument, error) {
	var keys []string
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}
	for {
		out, err := s.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeUpstreamStorage,
				fmt.Sprintf("failed to list s3://%s/%s", s.bucket, s.prefix), err)
		}
		for _, obj := range out.Contents {
			if key := aws.ToString(obj.Key); IsDefinitionName(key) {
				keys = append(keys, key)
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	sort.Strings(keys)

	docs := make([]types.CatalogDocument, 0, len(keys))
	for _, key := range keys {
		body, err := s.Fetch(ctx, key)
		if err != nil {
			return nil, err
		}
		docs = append(docs, types.CatalogDocument{Name: key, Body: body})
	}
	s.logger.InfoContext(ctx, "fetched catalog definitions from s3", "bucket", s.bucket, "prefix", s.prefix, "count", len(docs))
	return docs, nil
}

// Fetch downloads one object.
func (s *S3Source) Fetch(ctx context.Context, key string) ([]byte, error) {
	body, err := s.breaker.Execute(func() ([]byte, error) {
		out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return nil, err
		}
		defer out.Body.Close()
		return io.ReadAll(out.Body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, types.NewAppError(types.ErrCodeUpstreamUnavailable,
				"circuit breaker is open; catalog bucket unavailable", err)
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamStorage,
			fmt.Sprintf("failed to fetch s3://%s/%s", s.bucket, key), err)
	}
	return body, nil
}

// DocumentStore is implemented by the catalog_versions repository.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]types.CatalogDocument, error)
}

// StoreSource adapts a DocumentStore to Source.
type StoreSource struct {
	Store DocumentStore
}

func (s StoreSource) Documents(ctx context.Context) ([]types.CatalogDocument, error) {
	return s.Store.ListDocuments(ctx)
}

// StaticSource serves a fixed set of documents.
type StaticSource []types.CatalogDocument

func (s StaticSource) Documents(context.Context) ([]types.CatalogDocument, error) {
	return s, nil
}
