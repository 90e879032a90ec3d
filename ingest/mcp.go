package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/mverel/ragpipe/vecindex"
	"github.com/mverel/ragpipe/vecstore"
)

// Service exposes the pipeline and index over MCP.
type Service struct {
	Pipeline *Pipeline
	Index    *vecindex.Manager
}

// IngestFile reads, chunks and indexes one document. The source identity is
// the file's base name with its extension, so files like notes.txt and
// notes.md stay separately listable and deletable.
func (s *Service) IngestFile(ctx context.Context, path string) (string, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read %s: %w", path, err)
	}
	chunks, err := s.Pipeline.LoadAndSplit(path, data)
	if err != nil {
		return "", 0, err
	}
	source := filepath.Base(path)
	n, err := s.Index.Add(ctx, source, chunks)
	if err != nil {
		return "", 0, err
	}
	return source, n, nil
}

// RegisterMCP registers all document tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerIngestTool(srv)
	s.registerSearchTool(srv)
	s.registerListSourcesTool(srv)
	s.registerDeleteSourceTool(srv)
	s.registerClearTool(srv)
	s.registerInfoTool(srv)
	s.registerStatsTool(srv)
}

// --- ingest_file ---

type ingestReq struct {
	Path string `json:"path" jsonschema:"path of the document file to ingest"`
}

type ingestResp struct {
	Source string `json:"source"`
	Chunks int    `json:"chunks"`
}

func (s *Service) registerIngestTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "ingest_file",
		Description: "Extract, chunk and index a document file (pdf, docx, txt, md).",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req ingestReq) (*mcp.CallToolResult, ingestResp, error) {
		source, n, err := s.IngestFile(ctx, req.Path)
		if err != nil {
			return nil, ingestResp{}, err
		}
		return nil, ingestResp{Source: source, Chunks: n}, nil
	})
}

// --- search ---

type searchReq struct {
	Query string `json:"query" jsonschema:"the search query"`
	TopK  int    `json:"top_k,omitempty" jsonschema:"number of results (default 5)"`
}

type searchResp struct {
	Results []vecindex.Scored `json:"results"`
	Count   int               `json:"count"`
}

func (s *Service) registerSearchTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed documents and return the most similar chunks with citations.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req searchReq) (*mcp.CallToolResult, searchResp, error) {
		results, err := s.Index.Search(ctx, req.Query, req.TopK)
		if err != nil {
			return nil, searchResp{}, err
		}
		return nil, searchResp{Results: results, Count: len(results)}, nil
	})
}

// --- list_sources ---

type listSourcesResp struct {
	Sources []string `json:"sources"`
	Count   int      `json:"count"`
}

func (s *Service) registerListSourcesTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "list_sources",
		Description: "List the source documents present in the collection.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, listSourcesResp, error) {
		sources := s.Index.ListSources(ctx)
		return nil, listSourcesResp{Sources: sources, Count: len(sources)}, nil
	})
}

// --- delete_source ---

type deleteSourceReq struct {
	Source string `json:"source" jsonschema:"source document name to delete"`
}

type deleteSourceResp struct {
	Deleted int `json:"deleted"`
}

func (s *Service) registerDeleteSourceTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "delete_source",
		Description: "Delete all indexed chunks of one source document. Deleting an absent source is a no-op.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, req deleteSourceReq) (*mcp.CallToolResult, deleteSourceResp, error) {
		return nil, deleteSourceResp{Deleted: s.Index.DeleteBySource(ctx, req.Source)}, nil
	})
}

// --- clear_collection ---

type clearResp struct {
	Cleared bool `json:"cleared"`
}

func (s *Service) registerClearTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "clear_collection",
		Description: "Remove every chunk from the collection.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, clearResp, error) {
		return nil, clearResp{Cleared: s.Index.Clear(ctx)}, nil
	})
}

// --- collection_info ---

func (s *Service) registerInfoTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "collection_info",
		Description: "Describe the collection: record count, vector size, distance metric.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, vecstore.CollectionInfo, error) {
		info, err := s.Index.CollectionInfo(ctx)
		if err != nil {
			return nil, vecstore.CollectionInfo{}, err
		}
		return nil, info, nil
	})
}

// --- router_stats ---

type statsResp struct {
	FilesProcessed int            `json:"files_processed"`
	Succeeded      int            `json:"succeeded"`
	Failed         int            `json:"failed"`
	SuccessRate    float64        `json:"success_rate"`
	ByType         map[string]int `json:"by_type"`
}

func (s *Service) registerStatsTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "router_stats",
		Description: "Report extraction statistics for this pipeline instance.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, statsResp, error) {
		st := s.Pipeline.Stats
		byType := make(map[string]int, len(st.ByType))
		for ft, n := range st.ByType {
			byType[string(ft)] = n
		}
		return nil, statsResp{
			FilesProcessed: st.FilesProcessed,
			Succeeded:      st.Succeeded,
			Failed:         st.Failed,
			SuccessRate:    st.SuccessRate(),
			ByType:         byType,
		}, nil
	})
}
