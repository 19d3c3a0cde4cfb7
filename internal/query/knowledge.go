package query

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// KnowledgeClient adapts an external retrieval/completion backend to the
// Retriever and Completer ports over JSON HTTP. The per-call deadline is the
// caller's concern; the service runs it inside the answer window.
type KnowledgeClient struct {
	baseURL string
	client  *http.Client
}

// NewKnowledgeClient constructs the HTTP adapter.
func NewKnowledgeClient(baseURL string) *KnowledgeClient {
	return &KnowledgeClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type searchRequest struct {
	Query      string   `json:"query"`
	Namespaces []string `json:"namespaces"`
	TopK       int      `json:"top_k"`
}

type searchResponse struct {
	Documents []struct {
		ID        string  `json:"id"`
		Namespace string  `json:"namespace"`
		Title     string  `json:"title"`
		Content   string  `json:"content"`
		Score     float64 `json:"score"`
	} `json:"documents"`
}

// Search implements Retriever. The namespace list is forwarded verbatim; the
// backend's index partitions enforce the actual isolation.
func (c *KnowledgeClient) Search(ctx context.Context, question string, namespaces []string, topK int) ([]Document, error) {
	var resp searchResponse
	err := c.post(ctx, "/v1/search", searchRequest{
		Query:      question,
		Namespaces: namespaces,
		TopK:       topK,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("knowledge search: %w", err)
	}

	docs := make([]Document, 0, len(resp.Documents))
	for _, d := range resp.Documents {
		docs = append(docs, Document{
			ID:        d.ID,
			Namespace: d.Namespace,
			Title:     d.Title,
			Content:   d.Content,
			Score:     d.Score,
		})
	}
	return docs, nil
}

type completeRequest struct {
	Question  string   `json:"question"`
	Contexts  []string `json:"contexts"`
	MaxTokens int      `json:"max_tokens,omitempty"`
}

type completeResponse struct {
	Answer string `json:"answer"`
}

// Complete implements Completer.
func (c *KnowledgeClient) Complete(ctx context.Context, question string, docs []Document) (string, error) {
	contexts := make([]string, 0, len(docs))
	for _, d := range docs {
		contexts = append(contexts, d.Content)
	}

	var resp completeResponse
	err := c.post(ctx, "/v1/complete", completeRequest{
		Question: question,
		Contexts: contexts,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("knowledge completion: %w", err)
	}
	return resp.Answer, nil
}

func (c *KnowledgeClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
