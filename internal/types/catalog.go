package types

import "time"

// CatalogDocument is one serialized catalog version as held by a definition
// source. Name carries the file name or object key; a ".zst" suffix marks
// zstd-compressed content.
type CatalogDocument struct {
	Name string
	Body []byte
}

// CatalogVersionRecord is the stored metadata of a published catalog version.
type CatalogVersionRecord struct {
	ID            int64     `json:"id"`
	CatalogName   string    `json:"catalog_name"`
	EffectiveDate time.Time `json:"effective_date"`
	SourceKey     string    `json:"source_key"`
	Checksum      string    `json:"checksum"`
	PublishedAt   time.Time `json:"published_at"`
}
