package specter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/research-search/internal/core/domain"
	"github.com/kirillkom/research-search/internal/infrastructure/resilience"
)

const (
	DefaultTimeout = 15 * time.Second
	embedOperation = "embedding.embed"
)

// Client talks to the SPECTER2 embedding service.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type embedRequest struct {
	Query string `json:"query"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
	Dim       int       `json:"dim"`
	Error     string    `json:"error"`
}

// EmbedQuery returns the query vector. Every attempt, retries included, shares one deadline.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrEmbeddingService, embedOperation, errors.New("empty query"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vector, err := resilience.Call(ctx, c.executor, embedOperation, func(ctx context.Context) ([]float32, error) {
		var resp embedResponse
		if err := c.postJSON(ctx, "/embed", embedRequest{Query: text}, &resp); err != nil {
			return nil, err
		}
		return decodeEmbedding(resp)
	}, classifyEmbeddingError)
	if err != nil {
		return nil, wrapEmbeddingError(err)
	}
	return vector, nil
}

// Ping checks the service health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return newHTTPStatusError("health", resp)
	}
	return nil
}

func decodeEmbedding(resp embedResponse) ([]float32, error) {
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return nil, &ServiceError{Message: msg}
	}
	if len(resp.Embedding) == 0 {
		return nil, &ServiceError{Message: "empty embedding"}
	}
	if resp.Dim > 0 && resp.Dim != len(resp.Embedding) {
		return nil, &ServiceError{Message: fmt.Sprintf("dimension mismatch: dim=%d len=%d", resp.Dim, len(resp.Embedding))}
	}
	return resp.Embedding, nil
}
