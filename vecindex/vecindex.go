// Package vecindex is the retrieval-facing index layer: it embeds linked
// chunks, upserts them into a vecstore backend under their source document,
// and serves search and collection administration.
//
// Admin operations (delete, clear, list) swallow provider faults: they log
// a warning and return a zero value, so a flaky vector backend never takes
// down the callers that only need best-effort answers. Search and Add
// return errors normally.
package vecindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mverel/ragpipe/chunk"
	"github.com/mverel/ragpipe/embed"
	"github.com/mverel/ragpipe/vecstore"
)

// Scored is one search hit.
type Scored struct {
	Content  string         `json:"content"`
	Source   string         `json:"source"`
	Chunk    int            `json:"chunk"`
	Citation string         `json:"citation"`
	Score    float64        `json:"score"`
	Payload  map[string]any `json:"payload,omitempty"`
}

// IndexedChunk is one stored chunk returned by source-scoped listing.
type IndexedChunk struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Chunk   int            `json:"chunk"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Config configures the index manager.
type Config struct {
	// ScanLimit caps how many records source-scoped scans walk.
	// Default: 1000.
	ScanLimit int `yaml:"scan_limit"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.ScanLimit <= 0 {
		c.ScanLimit = 1000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager ties an embedder and a store together.
type Manager struct {
	store     vecstore.Store
	emb       embed.Embedder
	logger    *slog.Logger
	scanLimit int
}

func New(store vecstore.Store, emb embed.Embedder, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{
		store:     store,
		emb:       emb,
		logger:    cfg.Logger,
		scanLimit: cfg.ScanLimit,
	}
}

// Add embeds the chunks of one source document and upserts them. Returns
// the number of chunks stored.
func (m *Manager) Add(ctx context.Context, source string, chunks []chunk.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := m.emb.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}

	recs := make([]vecstore.Record, len(chunks))
	for i, c := range chunks {
		payload := map[string]any{
			vecstore.SourceKey: source,
			"chunk":            c.Index,
			"citation":         chunk.Citation(source, c.Index),
		}
		if len(c.Tables) > 0 {
			if data, err := json.Marshal(c.Tables); err == nil {
				payload["tables"] = string(data)
			}
		}
		if len(c.Images) > 0 {
			if data, err := json.Marshal(c.Images); err == nil {
				payload["images"] = string(data)
			}
		}
		recs[i] = vecstore.Record{
			Vector:  vecs[i],
			Content: c.Content,
			Payload: payload,
		}
	}

	ids, err := m.store.Add(ctx, recs)
	if err != nil {
		return 0, fmt.Errorf("upsert %d chunks for %q: %w", len(recs), source, err)
	}
	m.logger.Info("indexed document", "source", source, "chunks", len(ids))
	return len(ids), nil
}

// Update re-embeds new content for one stored record and upserts it under
// the same ID, replacing the stored payload. The record keeps its place in
// source-scoped listings as long as the payload carries the same source.
func (m *Manager) Update(ctx context.Context, id, content string, payload map[string]any) error {
	if id == "" {
		return fmt.Errorf("update: empty record id")
	}
	vec, err := m.emb.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed update: %w", err)
	}
	rec := vecstore.Record{ID: id, Vector: vec, Content: content, Payload: payload}
	if _, err := m.store.Add(ctx, []vecstore.Record{rec}); err != nil {
		return fmt.Errorf("update record %q: %w", id, err)
	}
	m.logger.Info("updated record", "id", id)
	return nil
}

// Search embeds the query and returns the top-k matches. k<=0 defaults
// to 5.
func (m *Manager) Search(ctx context.Context, query string, k int) ([]Scored, error) {
	if k <= 0 {
		k = 5
	}
	vec, err := m.emb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := m.store.Query(ctx, vec, k, nil)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	out := make([]Scored, 0, len(matches))
	for _, match := range matches {
		s := Scored{
			Content: match.Content,
			Score:   match.Score,
			Payload: match.Payload,
		}
		if v, ok := match.Payload[vecstore.SourceKey].(string); ok {
			s.Source = v
		}
		s.Chunk = payloadInt(match.Payload, "chunk")
		if v, ok := match.Payload["citation"].(string); ok {
			s.Citation = v
		} else {
			s.Citation = chunk.Citation(s.Source, s.Chunk)
		}
		out = append(out, s)
	}
	return out, nil
}

// SearchBySource lists the stored chunks of one source document, capped at
// the scan limit.
func (m *Manager) SearchBySource(ctx context.Context, source string) ([]IndexedChunk, error) {
	recs, err := m.store.Scroll(ctx, m.scanLimit, &vecstore.Filter{Source: source})
	if err != nil {
		return nil, fmt.Errorf("scroll source %q: %w", source, err)
	}
	out := make([]IndexedChunk, 0, len(recs))
	for _, r := range recs {
		out = append(out, IndexedChunk{
			ID:      r.ID,
			Content: r.Content,
			Chunk:   payloadInt(r.Payload, "chunk"),
			Payload: r.Payload,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Chunk < out[j].Chunk })
	return out, nil
}

// DeleteBySource removes all chunks of one source and returns how many
// were found beforehand. Deleting an absent source is a no-op returning 0.
// Provider faults are swallowed: warn log, 0.
func (m *Manager) DeleteBySource(ctx context.Context, source string) int {
	recs, err := m.store.Scroll(ctx, m.scanLimit, &vecstore.Filter{Source: source})
	if err != nil {
		m.logger.Warn("delete: scroll failed", "source", source, "error", err)
		return 0
	}
	if err := m.store.Delete(ctx, &vecstore.Filter{Source: source}); err != nil {
		m.logger.Warn("delete failed", "source", source, "error", err)
		return 0
	}
	if len(recs) > 0 {
		m.logger.Info("deleted document", "source", source, "chunks", len(recs))
	}
	return len(recs)
}

// Clear removes every record. Provider faults are swallowed: warn log,
// false.
func (m *Manager) Clear(ctx context.Context) bool {
	if err := m.store.Delete(ctx, nil); err != nil {
		m.logger.Warn("clear failed", "error", err)
		return false
	}
	m.logger.Info("collection cleared")
	return true
}

// ListSources returns the sorted unique source names present in the
// collection, capped at the scan limit. Provider faults are swallowed:
// warn log, empty list.
func (m *Manager) ListSources(ctx context.Context) []string {
	recs, err := m.store.Scroll(ctx, m.scanLimit, nil)
	if err != nil {
		m.logger.Warn("list sources failed", "error", err)
		return []string{}
	}
	seen := make(map[string]struct{})
	for _, r := range recs {
		if s, ok := r.Payload[vecstore.SourceKey].(string); ok && s != "" {
			seen[s] = struct{}{}
		}
	}
	sources := make([]string, 0, len(seen))
	for s := range seen {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// CollectionInfo describes the backing collection. Unlike the other admin
// operations, failures surface as errors.
func (m *Manager) CollectionInfo(ctx context.Context) (vecstore.CollectionInfo, error) {
	info, err := m.store.Info(ctx)
	if err != nil {
		return vecstore.CollectionInfo{}, fmt.Errorf("collection info: %w", err)
	}
	return info, nil
}

// payloadInt reads an int payload field that may round-trip as float64
// through JSON.
func payloadInt(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
