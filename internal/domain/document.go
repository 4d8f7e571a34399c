package domain

import "time"

// TextKey is the reserved property name holding a document's body content.
// Metadata keys are disjoint from it by construction.
const TextKey = "text"

// Document is a unit of indexable content: body text plus flat string metadata
// (source, chunk_index, estimated_page, ...).
type Document struct {
	Text     string
	Metadata map[string]string
}

// NewDocument builds a document, dropping the reserved text key from metadata.
func NewDocument(text string, metadata map[string]string) Document {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if k == TextKey {
			continue
		}
		md[k] = v
	}
	return Document{Text: text, Metadata: md}
}

// Page is the per-page text extracted from a multi-page source document.
type Page struct {
	Number int
	Text   string
}

// SearchResult is a single hybrid-search hit. Distance is nil when the store
// did not report a similarity score.
type SearchResult struct {
	Text     string
	Metadata map[string]string
	Distance *float64
}

// StoredObject is a raw object listed from the index, including store-assigned
// identity and timestamps.
type StoredObject struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
	Distance *float64          `json:"distance,omitempty"`
	Created  *time.Time        `json:"created,omitempty"`
	Updated  *time.Time        `json:"updated,omitempty"`
}

// StoreSchema describes the index collection schema.
type StoreSchema struct {
	Name       string   `json:"name"`
	Vectorizer string   `json:"vectorizer"`
	Properties []string `json:"properties"`
}

// StoreStatus is a point-in-time store health report. Probe failures are
// captured independently so one failing probe does not hide the others.
type StoreStatus struct {
	Collection  string       `json:"collection"`
	Online      bool         `json:"online"`
	Message     string       `json:"message,omitempty"`
	Schema      *StoreSchema `json:"schema,omitempty"`
	SchemaError string       `json:"schema_error,omitempty"`
	ObjectCount *int         `json:"object_count,omitempty"`
	CountError  string       `json:"count_error,omitempty"`
}
