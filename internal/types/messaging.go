package types

import "time"

// ReloadMessage is the SQS payload announcing that a catalog version was
// published. API instances reload their catalog when they receive one.
type ReloadMessage struct {
	MessageID     string    `json:"message_id"`
	CatalogName   string    `json:"catalog_name"`
	EffectiveDate time.Time `json:"effective_date"`
	SourceKey     string    `json:"source_key"`
	Checksum      string    `json:"checksum"`
	PublishedAt   time.Time `json:"published_at"`

	// Observability
	TraceID string `json:"trace_id"`
}

// ReloadMessageFor builds the notification for a stored version.
func ReloadMessageFor(rec CatalogVersionRecord) ReloadMessage {
	return ReloadMessage{
		CatalogName:   rec.CatalogName,
		EffectiveDate: rec.EffectiveDate,
		SourceKey:     rec.SourceKey,
		Checksum:      rec.Checksum,
		PublishedAt:   rec.PublishedAt,
	}
}
