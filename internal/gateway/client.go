// Package gateway implements the HTTP client for the RAG backend. It covers
// the four logical operations the workbench needs: apply-settings,
// fetch-stats, upload-documents, and submit-query.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/rag"
)

const defaultBaseURL = "http://127.0.0.1:8000"

// defaultTimeout bounds every backend call. The protocol defines no
// cancellation, so a stuck transport must not hang the client forever.
const defaultTimeout = 120 * time.Second

// Client talks to one RAG backend instance.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client (used by tests and by
// callers that need custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// NewClient creates a gateway client for the given base URL. An empty
// baseURL falls back to the local development backend.
func NewClient(baseURL string, logger *zap.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", baseURL, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the configured backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(path string) string {
	ref := &url.URL{Path: path}
	return c.baseURL.ResolveReference(ref).String()
}

// ResolveDocumentURL turns a backend-relative document link into an absolute
// URL against the backend origin. Absolute links and unparseable values pass
// through unchanged.
func (c *Client) ResolveDocumentURL(link string) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	if ref.IsAbs() {
		return link
	}
	return c.baseURL.ResolveReference(ref).String()
}

// applySettingsResponse mirrors the backend's settings envelope.
type applySettingsResponse struct {
	OK       bool          `json:"ok"`
	Settings *rag.Settings `json:"settings"`
	Error    string        `json:"error"`
}

// ApplySettings sends the full draft and returns the backend's confirmed
// copy. The returned Settings is the backend echo, which may differ from the
// draft when the backend normalizes or clamps fields.
func (c *Client) ApplySettings(ctx context.Context, draft rag.Settings) (rag.Settings, error) {
	var resp applySettingsResponse
	if err := c.postJSON(ctx, "/rag/settings", draft, &resp); err != nil {
		return rag.Settings{}, err
	}
	if !resp.OK {
		reason := resp.Error
		if reason == "" {
			reason = "backend rejected settings"
		}
		return rag.Settings{}, fmt.Errorf("apply settings: %s", reason)
	}
	if resp.Settings == nil {
		return rag.Settings{}, fmt.Errorf("apply settings: response missing confirmed settings")
	}
	c.logger.Debug("settings applied",
		zap.String("model", resp.Settings.LLMModel),
		zap.Int("top_k", resp.Settings.TopK))
	return *resp.Settings, nil
}

// FetchStats returns the backend's current index snapshot. A missing
// lastIndexedAt decodes to the zero time; merging with previously known
// state is the aggregator's job, not the gateway's.
func (c *Client) FetchStats(ctx context.Context) (rag.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/rag/stats"), nil)
	if err != nil {
		return rag.Stats{}, fmt.Errorf("fetch stats: %w", err)
	}
	var stats rag.Stats
	if err := c.do(req, &stats); err != nil {
		return rag.Stats{}, err
	}
	return stats, nil
}

// RawDocument is one backend document record from an upload response. The
// backend is loose about which identifying keys it fills in, so all
// candidates are decoded and the mapping layer picks the first usable one.
type RawDocument struct {
	DocumentID string `json:"document_id"`
	ID         string `json:"id"`
	SafeName   string `json:"safe_name"`
	Filename   string `json:"filename"`
	FileName   string `json:"file_name"`
	Pages      int    `json:"pages"`
	ChunkCount int    `json:"chunk_count"`
}

// UploadResult is the backend's summary of one upload request.
type UploadResult struct {
	UploadedFiles int           `json:"uploaded_files"`
	SavedTo       string        `json:"saved_to"`
	Documents     []RawDocument `json:"documents"`
	TotalChunks   int           `json:"total_chunks_in_store"`
}

// Upload sends the named files as one multipart request. processImages asks
// the backend to caption embedded images during indexing (slow).
func (c *Client) Upload(ctx context.Context, paths []string, processImages bool) (UploadResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, p := range paths {
		if err := attachFile(writer, p); err != nil {
			return UploadResult{}, err
		}
	}
	if err := writer.WriteField("process_images", strconv.FormatBool(processImages)); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/rag/upload"), &body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("upload: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var result UploadResult
	if err := c.do(req, &result); err != nil {
		return UploadResult{}, err
	}
	c.logger.Info("upload accepted",
		zap.Int("files", result.UploadedFiles),
		zap.Int("total_chunks", result.TotalChunks))
	return result, nil
}

func attachFile(writer *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("upload: open %s: %w", path, err)
	}
	defer f.Close()
	part, err := writer.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("upload: read %s: %w", path, err)
	}
	return nil
}

// QuerySource is one evidence record in a query response, in wire shape.
type QuerySource struct {
	Rank          int     `json:"rank"`
	Score         float64 `json:"score"`
	DocumentID    string  `json:"document_id"`
	ChunkID       string  `json:"chunk_id"`
	ChunkIndex    *int    `json:"chunk_index"`
	PageID        *int    `json:"page_id"`
	Content       string  `json:"content"`
	IsChildChunk  bool    `json:"is_child_chunk"`
	ParentBlockID string  `json:"parent_block_id"`
	DocumentURL   string  `json:"document_url"`
}

// QueryResult is the backend's answer plus its evidence sources, in the
// order the backend ranked them.
type QueryResult struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

// Query submits a question and returns the generated answer with sources.
// Relative document links are resolved against the backend origin before
// being returned.
func (c *Client) Query(ctx context.Context, question string) (QueryResult, error) {
	payload := struct {
		Question string `json:"question"`
	}{Question: question}

	start := time.Now()
	var result QueryResult
	if err := c.postJSON(ctx, "/rag/query", payload, &result); err != nil {
		return QueryResult{}, err
	}
	for i := range result.Sources {
		result.Sources[i].DocumentURL = c.ResolveDocumentURL(result.Sources[i].DocumentURL)
	}
	c.logger.Debug("query answered",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("sources", len(result.Sources)))
	return result, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do executes the request and decodes the JSON body into out. Non-2xx
// statuses and undecodable bodies are both reported as errors; the caller
// treats them identically to transport failures.
func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, errorDetail(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// errorDetail extracts the FastAPI-style {"detail": ...} message when
// present, falling back to a truncated raw body.
func errorDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(bytes.TrimSpace(body))
}
