package vecstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// fakeQdrant captures requests and serves canned responses for the REST
// endpoints the client touches.
type fakeQdrant struct {
	t        *testing.T
	requests []string // "METHOD path"
	upserted []map[string]any
}

func (f *fakeQdrant) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/my_documents":
			json.NewEncoder(w).Encode(map[string]any{"result": true, "status": "ok"})

		case r.Method == http.MethodPut && strings.HasSuffix(r.URL.Path, "/points"):
			var body struct {
				Points []map[string]any `json:"points"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			f.upserted = append(f.upserted, body.Points...)
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "acknowledged"}})

		case strings.HasSuffix(r.URL.Path, "/points/search"):
			json.NewEncoder(w).Encode(map[string]any{
				"result": []map[string]any{
					{
						"id":    "11111111-1111-1111-1111-111111111111",
						"score": 0.97,
						"payload": map[string]any{
							"content":  "matched chunk",
							"metadata": map[string]any{SourceKey: "doc1", "chunk": 2},
						},
					},
				},
			})

		case strings.HasSuffix(r.URL.Path, "/points/scroll"):
			var body map[string]any
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points": []map[string]any{
						{
							"id": "22222222-2222-2222-2222-222222222222",
							"payload": map[string]any{
								"content":  "scrolled chunk",
								"metadata": map[string]any{SourceKey: "doc1", "chunk": 0},
							},
						},
					},
				},
			})

		case strings.HasSuffix(r.URL.Path, "/points/delete"):
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"status": "acknowledged"}})

		case strings.HasSuffix(r.URL.Path, "/points/count"):
			json.NewEncoder(w).Encode(map[string]any{"result": map[string]any{"count": 7}})

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/collections/"):
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points_count": 7,
					"config": map[string]any{
						"params": map[string]any{
							"vectors": map[string]any{"size": 3, "distance": "Cosine"},
						},
					},
				},
			})

		default:
			http.NotFound(w, r)
		}
	})
}

func newTestQdrant(t *testing.T) (*Qdrant, *fakeQdrant) {
	t.Helper()
	fake := &fakeQdrant{t: t}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	return NewQdrant(QdrantConfig{URL: srv.URL, Collection: "my_documents"}), fake
}

func TestQdrant_AddCreatesCollectionOnce(t *testing.T) {
	q, fake := newTestQdrant(t)
	ctx := context.Background()

	recs := []Record{
		{Vector: []float32{1, 0, 0}, Content: "a", Payload: map[string]any{SourceKey: "doc1"}},
	}
	ids, err := q.Add(ctx, recs)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(ids) != 1 || ids[0] == "" {
		t.Errorf("ids: %v", ids)
	}
	if _, err := q.Add(ctx, recs); err != nil {
		t.Fatalf("second add: %v", err)
	}

	creates := 0
	for _, req := range fake.requests {
		if req == "PUT /collections/my_documents" {
			creates++
		}
	}
	if creates != 1 {
		t.Errorf("collection created %d times, want 1", creates)
	}
	if len(fake.upserted) != 2 {
		t.Errorf("upserted points: got %d, want 2", len(fake.upserted))
	}
	payload, ok := fake.upserted[0]["payload"].(map[string]any)
	if !ok {
		t.Fatalf("point payload: %v", fake.upserted[0])
	}
	if payload["content"] != "a" {
		t.Errorf("payload content: %v", payload)
	}
}

func TestQdrant_Query(t *testing.T) {
	q, _ := newTestQdrant(t)
	matches, err := q.Query(context.Background(), []float32{1, 0, 0}, 5, nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches: got %d", len(matches))
	}
	m := matches[0]
	if m.Score != 0.97 || m.Content != "matched chunk" {
		t.Errorf("match: %+v", m)
	}
	if m.Payload[SourceKey] != "doc1" {
		t.Errorf("metadata: %v", m.Payload)
	}
}

func TestQdrant_ScrollWithFilter(t *testing.T) {
	q, fake := newTestQdrant(t)
	recs, err := q.Scroll(context.Background(), 100, &Filter{Source: "doc1"})
	if err != nil {
		t.Fatalf("scroll: %v", err)
	}
	if len(recs) != 1 || recs[0].Content != "scrolled chunk" {
		t.Errorf("records: %+v", recs)
	}
	found := false
	for _, req := range fake.requests {
		if strings.Contains(req, "/points/scroll") {
			found = true
		}
	}
	if !found {
		t.Errorf("scroll endpoint not called: %v", fake.requests)
	}
}

func TestQdrant_DeleteCountInfo(t *testing.T) {
	q, _ := newTestQdrant(t)
	ctx := context.Background()

	if err := q.Delete(ctx, &Filter{Source: "doc1"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := q.Delete(ctx, nil); err != nil {
		t.Fatalf("clear: %v", err)
	}

	n, err := q.Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 7 {
		t.Errorf("count: got %d, want 7", n)
	}

	info, err := q.Info(ctx)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Count != 7 || info.VectorSize != 3 || info.Distance != "Cosine" {
		t.Errorf("info: %+v", info)
	}
}

func TestQdrant_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	q := NewQdrant(QdrantConfig{URL: srv.URL, Collection: "c"})
	if _, err := q.Add(context.Background(), []Record{{Vector: []float32{1}}}); err == nil {
		t.Fatal("expected error from failing server")
	}
	if _, err := q.Count(context.Background()); err == nil {
		t.Fatal("expected count error")
	}
}
