package ingest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mverel/ragpipe/embed"
	"github.com/mverel/ragpipe/vecindex"
	"github.com/mverel/ragpipe/vecstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := vecstore.NewSQLite(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return &Service{
		Pipeline: testPipeline(t),
		Index:    vecindex.New(store, embed.NewHashed(64), vecindex.Config{}),
	}
}

func TestIngestFile_SourceIsFilename(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	dir := t.TempDir()

	// Two documents sharing a stem must stay two distinct sources.
	txt := filepath.Join(dir, "notes.txt")
	md := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(txt, []byte(strings.Repeat("plain text notes about foxes. ", 20)), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(md, []byte("# Notes\n\nmarkdown notes about cats.\n"), 0644); err != nil {
		t.Fatal(err)
	}

	source, n, err := svc.IngestFile(ctx, txt)
	if err != nil {
		t.Fatalf("ingest txt: %v", err)
	}
	if source != "notes.txt" {
		t.Errorf("source: got %q, want notes.txt", source)
	}
	if n == 0 {
		t.Fatal("no chunks indexed for notes.txt")
	}
	if _, _, err := svc.IngestFile(ctx, md); err != nil {
		t.Fatalf("ingest md: %v", err)
	}

	sources := svc.Index.ListSources(ctx)
	if len(sources) != 2 || sources[0] != "notes.md" || sources[1] != "notes.txt" {
		t.Fatalf("sources: got %v, want [notes.md notes.txt]", sources)
	}

	recs, err := svc.Index.SearchBySource(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("search by source: %v", err)
	}
	if len(recs) != n {
		t.Errorf("notes.txt records: got %d, want %d", len(recs), n)
	}
	if cit, _ := recs[0].Payload["citation"].(string); !strings.Contains(cit, "source=notes.txt") {
		t.Errorf("citation should carry the filename: %q", cit)
	}

	// Deleting one source must not touch its stem sibling.
	if deleted := svc.Index.DeleteBySource(ctx, "notes.txt"); deleted != n {
		t.Errorf("deleted: got %d, want %d", deleted, n)
	}
	if sources := svc.Index.ListSources(ctx); len(sources) != 1 || sources[0] != "notes.md" {
		t.Errorf("sources after delete: got %v, want [notes.md]", sources)
	}
}

func TestIngestFile_MissingFile(t *testing.T) {
	svc := newTestService(t)
	if _, _, err := svc.IngestFile(context.Background(), filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
