// Package vecstore abstracts the similarity-search store behind a small
// interface with two backends: a Qdrant REST client for production and an
// embedded SQLite store for local mode and tests.
package vecstore

import "context"

// Record is one stored vector with its text and payload.
type Record struct {
	ID      string
	Vector  []float32
	Content string
	Payload map[string]any
}

// Match is a query hit with its similarity score.
type Match struct {
	Record
	Score float64
}

// CollectionInfo describes the backing collection.
type CollectionInfo struct {
	Count      int    `json:"count"`
	VectorSize int    `json:"vector_size"`
	Distance   string `json:"distance"`
}

// SourceKey is the payload metadata key records are scoped by.
const SourceKey = "source"

// Filter restricts an operation to records from one source document.
// A nil Filter matches everything.
type Filter struct {
	Source string
}

// Store is the backend contract. Implementations are safe for concurrent
// use unless noted otherwise.
type Store interface {
	// Add upserts records and returns their ids. Records without an ID
	// get one assigned.
	Add(ctx context.Context, recs []Record) ([]string, error)

	// Query returns the k nearest records by cosine similarity.
	Query(ctx context.Context, vector []float32, k int, f *Filter) ([]Match, error)

	// Scroll returns up to limit records matching the filter, without
	// scoring. Vectors may be omitted.
	Scroll(ctx context.Context, limit int, f *Filter) ([]Record, error)

	// Delete removes all records matching the filter. A nil filter
	// clears the collection. Deleting nothing is not an error.
	Delete(ctx context.Context, f *Filter) error

	// Count returns the number of stored records.
	Count(ctx context.Context) (int, error)

	// Info describes the collection.
	Info(ctx context.Context) (CollectionInfo, error)

	Close() error
}
