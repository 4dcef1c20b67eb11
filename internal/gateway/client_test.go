package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ragbench/internal/rag"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client, server
}

func TestApplySettingsSendsSnakeCaseAndReturnsEcho(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rag/settings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		for _, key := range []string{"llm_model", "top_k", "chunk_size", "chunk_overlap", "temperature", "max_tokens"} {
			if _, ok := body[key]; !ok {
				t.Errorf("request missing %s: %v", key, body)
			}
		}
		// Backend clamps top_k.
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"settings": map[string]any{
				"llm_model": "m", "top_k": 3, "chunk_size": 100,
				"chunk_overlap": 20, "temperature": 0.2, "max_tokens": 2048,
			},
		})
	}))

	confirmed, err := client.ApplySettings(context.Background(), rag.Settings{LLMModel: "m", TopK: 5})
	if err != nil {
		t.Fatalf("ApplySettings failed: %v", err)
	}
	if confirmed.TopK != 3 {
		t.Errorf("TopK = %d, want backend-clamped 3", confirmed.TopK)
	}
}

func TestApplySettingsBackendRejection(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "chunk_overlap exceeds chunk_size"})
	}))

	_, err := client.ApplySettings(context.Background(), rag.Settings{})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "chunk_overlap exceeds chunk_size") {
		t.Errorf("backend reason not surfaced: %v", err)
	}
}

func TestApplySettingsOKWithoutSettingsIsError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	if _, err := client.ApplySettings(context.Background(), rag.Settings{}); err == nil {
		t.Fatal("expected error for missing confirmed settings")
	}
}

func TestFetchStats(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/rag/stats" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"documentCount": 4, "chunkCount": 120})
	}))

	stats, err := client.FetchStats(context.Background())
	if err != nil {
		t.Fatalf("FetchStats failed: %v", err)
	}
	if stats.DocumentCount != 4 || stats.ChunkCount != 120 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if !stats.LastIndexedAt.IsZero() {
		t.Errorf("absent lastIndexedAt should decode to zero, got %v", stats.LastIndexedAt)
	}
}

func TestQuerySuccessAndURLResolution(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Question != "What is RAG?" {
			t.Errorf("unexpected question payload: %+v err=%v", body, err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"answer": "RAG stands for...",
			"sources": []map[string]any{
				{"rank": 1, "score": 0.92, "document_id": "doc1", "chunk_id": "c1",
					"content": "...", "document_url": "/files/doc1.pdf"},
				{"score": 0.80, "document_id": "doc2", "chunk_id": "c2", "content": "...",
					"document_url": "https://elsewhere.example/d.pdf"},
			},
		})
	}))

	result, err := client.Query(context.Background(), "What is RAG?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if result.Answer != "RAG stands for..." {
		t.Errorf("answer = %q", result.Answer)
	}
	if got, want := result.Sources[0].DocumentURL, server.URL+"/files/doc1.pdf"; got != want {
		t.Errorf("relative link not resolved: %q, want %q", got, want)
	}
	if result.Sources[1].DocumentURL != "https://elsewhere.example/d.pdf" {
		t.Errorf("absolute link rewritten: %q", result.Sources[1].DocumentURL)
	}
}

func TestQueryBackendErrorSurfacesDetail(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{"detail": "RAG store not initialized"})
	}))

	_, err := client.Query(context.Background(), "q")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "RAG store not initialized") {
		t.Errorf("detail not surfaced: %v", err)
	}
}

func TestQueryMalformedResponse(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))

	if _, err := client.Query(context.Background(), "q"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestQueryTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Query(context.Background(), "q"); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestUploadMultipart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 fake"), 0644); err != nil {
		t.Fatal(err)
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("process_images"); got != "true" {
			t.Errorf("process_images = %q", got)
		}
		files := r.MultipartForm.File["files"]
		if len(files) != 1 || files[0].Filename != "paper.pdf" {
			t.Errorf("unexpected files: %+v", files)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"uploaded_files":        1,
			"saved_to":              "/data/uploads",
			"documents":             []map[string]any{{"document_id": "paper", "filename": "paper.pdf", "pages": 3, "chunk_count": 12}},
			"total_chunks_in_store": 52,
		})
	}))

	result, err := client.Upload(context.Background(), []string{path}, true)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if result.UploadedFiles != 1 || result.TotalChunks != 52 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Documents) != 1 || result.Documents[0].Pages != 3 {
		t.Errorf("documents not decoded: %+v", result.Documents)
	}
}

func TestUploadMissingFile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the backend")
	}))
	if _, err := client.Upload(context.Background(), []string{"/no/such/file.pdf"}, false); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestResolveDocumentURL(t *testing.T) {
	client, err := NewClient("http://backend.example:8000", nil)
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct{ in, want string }{
		{"", ""},
		{"/files/a.pdf", "http://backend.example:8000/files/a.pdf"},
		{"files/a.pdf", "http://backend.example:8000/files/a.pdf"},
		{"https://other.example/a.pdf", "https://other.example/a.pdf"},
	}
	for _, tc := range cases {
		if got := client.ResolveDocumentURL(tc.in); got != tc.want {
			t.Errorf("ResolveDocumentURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
