package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// QdrantConfig configures the Qdrant REST backend.
type QdrantConfig struct {
	URL        string        `yaml:"url"`
	APIKey     string        `yaml:"api_key"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Qdrant is a minimal REST client to a Qdrant server. Cosine distance;
// the collection is created on the first Add if it does not exist.
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu      sync.Mutex
	created bool
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "my_documents"
	}
	return &Qdrant{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

func (q *Qdrant) ensureCollection(ctx context.Context, dim int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.created {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	// Qdrant answers 200 for an existing collection with the same schema.
	if err := q.putJSON(ctx, fmt.Sprintf("%s/collections/%s", q.url, q.collection), body, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", q.collection, err)
	}
	q.created = true
	return nil
}

func (q *Qdrant) Add(ctx context.Context, recs []Record) ([]string, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	if err := q.ensureCollection(ctx, len(recs[0].Vector)); err != nil {
		return nil, err
	}

	ids := make([]string, len(recs))
	points := make([]map[string]any, len(recs))
	for i, r := range recs {
		id := r.ID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		points[i] = map[string]any{
			"id":     id,
			"vector": r.Vector,
			"payload": map[string]any{
				"content":  r.Content,
				"metadata": r.Payload,
			},
		}
	}
	body := map[string]any{"points": points}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", q.url, q.collection)
	if err := q.putJSON(ctx, url, body, nil); err != nil {
		return nil, fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return ids, nil
}

func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, f *Filter) ([]Match, error) {
	if k <= 0 {
		k = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if sel := filterSelector(f); sel != nil {
		req["filter"] = sel
	}
	var resp struct {
		Result []struct {
			ID      any            `json:"id"`
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", q.url, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		matches = append(matches, Match{
			Record: recordFromPayload(fmt.Sprint(r.ID), r.Payload),
			Score:  r.Score,
		})
	}
	return matches, nil
}

func (q *Qdrant) Scroll(ctx context.Context, limit int, f *Filter) ([]Record, error) {
	req := map[string]any{
		"limit":        limit,
		"with_payload": true,
	}
	if sel := filterSelector(f); sel != nil {
		req["filter"] = sel
	}
	var resp struct {
		Result struct {
			Points []struct {
				ID      any            `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/scroll", q.url, q.collection)
	if err := q.postJSON(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		recs = append(recs, recordFromPayload(fmt.Sprint(p.ID), p.Payload))
	}
	return recs, nil
}

func (q *Qdrant) Delete(ctx context.Context, f *Filter) error {
	sel := filterSelector(f)
	if sel == nil {
		// Empty must-clause matches every point.
		sel = map[string]any{"must": []any{}}
	}
	body := map[string]any{"filter": sel}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", q.url, q.collection)
	return q.postJSON(ctx, url, body, nil)
}

func (q *Qdrant) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", q.url, q.collection)
	if err := q.postJSON(ctx, url, map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *Qdrant) Info(ctx context.Context) (CollectionInfo, error) {
	var resp struct {
		Result struct {
			PointsCount int `json:"points_count"`
			Config      struct {
				Params struct {
					Vectors struct {
						Size     int    `json:"size"`
						Distance string `json:"distance"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s", q.url, q.collection)
	if err := q.getJSON(ctx, url, &resp); err != nil {
		return CollectionInfo{}, err
	}
	return CollectionInfo{
		Count:      resp.Result.PointsCount,
		VectorSize: resp.Result.Config.Params.Vectors.Size,
		Distance:   resp.Result.Config.Params.Vectors.Distance,
	}, nil
}

func (q *Qdrant) Close() error { return nil }

func filterSelector(f *Filter) map[string]any {
	if f == nil {
		return nil
	}
	return map[string]any{
		"must": []any{
			map[string]any{
				"key":   "metadata." + SourceKey,
				"match": map[string]any{"value": f.Source},
			},
		},
	}
}

func recordFromPayload(id string, payload map[string]any) Record {
	r := Record{ID: id, Payload: map[string]any{}}
	if v, ok := payload["content"].(string); ok {
		r.Content = v
	}
	if m, ok := payload["metadata"].(map[string]any); ok {
		r.Payload = m
	}
	return r
}

func (q *Qdrant) putJSON(ctx context.Context, url string, body, out any) error {
	return q.doJSON(ctx, http.MethodPut, url, body, out)
}

func (q *Qdrant) postJSON(ctx context.Context, url string, body, out any) error {
	return q.doJSON(ctx, http.MethodPost, url, body, out)
}

func (q *Qdrant) getJSON(ctx context.Context, url string, out any) error {
	return q.doJSON(ctx, http.MethodGet, url, nil, out)
}

func (q *Qdrant) doJSON(ctx context.Context, method, url string, body, out any) error {
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
