// Entry point for the ragpipe document pipeline — ingest, search and
// collection administration from the command line, plus an MCP stdio server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mverel/ragpipe/ingest"
	"github.com/mverel/ragpipe/vecindex"
)

func main() {
	fs := flag.NewFlagSet("ragpipe", flag.ExitOnError)
	configPath := fs.String("config", "", "path to YAML config file")
	fs.Usage = printUsage
	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(1)
	}
	args := fs.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	// Logging.
	var lvl slog.Level
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	// Config.
	cfg := ingest.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = ingest.LoadConfig(*configPath)
		if err != nil {
			slog.Error("config", "error", err)
			os.Exit(1)
		}
	}
	cfg.Logger = logger

	// Signal context.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := cfg.NewStore()
	if err != nil {
		slog.Error("store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	pipeline := ingest.NewPipeline(cfg)
	index := vecindex.New(store, cfg.NewEmbedder(), vecindex.Config{
		ScanLimit: cfg.ScanLimit,
		Logger:    logger,
	})

	switch args[0] {
	case "ingest":
		cmdIngest(ctx, pipeline, index, args[1:])
	case "search":
		cmdSearch(ctx, index, args[1:])
	case "sources":
		cmdSources(ctx, index)
	case "delete":
		cmdDelete(ctx, index, args[1:])
	case "clear":
		cmdClear(ctx, index)
	case "info":
		cmdInfo(ctx, index)
	case "stats":
		cmdStats(pipeline)
	case "mcp":
		cmdMCP(ctx, pipeline, index)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `ragpipe — document ingestion and vector search

usage:
  ragpipe [-config file.yaml] ingest <files...>
  ragpipe [-config file.yaml] search <query> [top_k]
  ragpipe [-config file.yaml] sources
  ragpipe [-config file.yaml] delete <source>
  ragpipe [-config file.yaml] clear
  ragpipe [-config file.yaml] info
  ragpipe [-config file.yaml] stats
  ragpipe [-config file.yaml] mcp

ingest   Extracts, chunks and indexes each file (pdf, docx, txt, md).
search   Returns the most similar indexed chunks with citations.
sources  Lists indexed source documents.
delete   Removes all chunks of one source.
clear    Empties the collection.
info     Shows collection count, vector size and distance metric.
stats    Shows extraction statistics.
mcp      Serves the pipeline tools over MCP on stdio.
`)
}

func cmdIngest(ctx context.Context, p *ingest.Pipeline, index *vecindex.Manager, files []string) {
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "ingest requires at least one file")
		os.Exit(1)
	}
	failed := 0
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		chunks, err := p.LoadAndSplit(path, data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if len(chunks) == 0 {
			fmt.Fprintf(os.Stderr, "%s: no content extracted\n", path)
			failed++
			continue
		}
		source := filepath.Base(path)
		n, err := index.Add(ctx, source, chunks)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: index: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("%s: %d chunks indexed as %q\n", path, n, source)
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func cmdSearch(ctx context.Context, index *vecindex.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "search requires a query")
		os.Exit(1)
	}
	topK := 5
	if len(args) >= 2 {
		k, err := strconv.Atoi(args[1])
		if err != nil || k <= 0 {
			fmt.Fprintln(os.Stderr, "top_k must be a positive integer")
			os.Exit(1)
		}
		topK = k
	}
	results, err := index.Search(ctx, args[0], topK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "search failed: %v\n", err)
		os.Exit(1)
	}
	for i, r := range results {
		fmt.Printf("%d. %s  score=%.4f\n%s\n\n", i+1, r.Citation, r.Score, r.Content)
	}
	if len(results) == 0 {
		fmt.Println("no results")
	}
}

func cmdSources(ctx context.Context, index *vecindex.Manager) {
	sources := index.ListSources(ctx)
	for _, s := range sources {
		fmt.Println(s)
	}
	fmt.Fprintf(os.Stderr, "%d source(s)\n", len(sources))
}

func cmdDelete(ctx context.Context, index *vecindex.Manager, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "delete requires a source name")
		os.Exit(1)
	}
	n := index.DeleteBySource(ctx, args[0])
	fmt.Printf("deleted %d chunk(s) of %q\n", n, args[0])
}

func cmdClear(ctx context.Context, index *vecindex.Manager) {
	if index.Clear(ctx) {
		fmt.Println("collection cleared")
		return
	}
	fmt.Fprintln(os.Stderr, "clear failed")
	os.Exit(1)
}

func cmdInfo(ctx context.Context, index *vecindex.Manager) {
	info, err := index.CollectionInfo(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("count:       %d\n", info.Count)
	fmt.Printf("vector_size: %d\n", info.VectorSize)
	fmt.Printf("distance:    %s\n", info.Distance)
}

func cmdStats(p *ingest.Pipeline) {
	st := p.Stats
	fmt.Printf("files_processed: %d\n", st.FilesProcessed)
	fmt.Printf("succeeded:       %d\n", st.Succeeded)
	fmt.Printf("failed:          %d\n", st.Failed)
	fmt.Printf("success_rate:    %.1f%%\n", st.SuccessRate())
	for ft, n := range st.ByType {
		fmt.Printf("  %s: %d\n", ft, n)
	}
}

func cmdMCP(ctx context.Context, p *ingest.Pipeline, index *vecindex.Manager) {
	srv := mcp.NewServer(&mcp.Implementation{
		Name:    "ragpipe",
		Version: "1.0.0",
	}, nil)
	svc := &ingest.Service{Pipeline: p, Index: index}
	svc.RegisterMCP(srv)

	slog.Info("MCP stdio server starting")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		slog.Error("MCP server", "error", err)
		os.Exit(1)
	}
}
