package categorizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finze/internal/cache"
	"finze/internal/core"
	"finze/internal/storage"
)

// Per-operation timeouts. Health checks are short, OCR uploads long.
const (
	HealthTimeout      = 3 * time.Second
	CategorizeTimeout  = 10 * time.Second
	BatchTimeout       = 15 * time.Second
	CategoriesTimeout  = 5 * time.Second
	CorrectionTimeout  = 10 * time.Second
	OCRTimeout         = 30 * time.Second
	ReadTimeout        = 10 * time.Second
	defaultCacheSize   = 512
	defaultCacheTTL    = 30 * time.Minute
	maxErrorBodyLength = 512
)

// Client calls the categorization backend. Every call is preceded by a
// health check; categorization never fails and falls back to the keyword
// table instead.
type Client struct {
	httpClient *http.Client
	candidates []string
	cache      *cache.LRUCache[Result]

	mu   sync.Mutex
	base string
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Timeouts still come from the
// per-operation contexts.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithCache(size int, ttl time.Duration) Option {
	return func(c *Client) { c.cache = cache.NewLRUCache[Result](size, ttl) }
}

// NewClient takes base URLs in preference order, each including the API
// prefix (http://host:8001/api).
func NewClient(candidates []string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		cache:      cache.NewLRUCache[Result](defaultCacheSize, defaultCacheTTL),
	}
	for _, u := range candidates {
		u = strings.TrimRight(strings.TrimSpace(u), "/")
		if u != "" {
			c.candidates = append(c.candidates, u)
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the currently selected backend, empty when none is healthy.
func (c *Client) BaseURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// Discover checks every candidate concurrently and selects the first
// healthy one in preference order.
func (c *Client) Discover(ctx context.Context) (string, error) {
	healthy := make([]bool, len(c.candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, u := range c.candidates {
		g.Go(func() error {
			healthy[i] = c.checkHealth(gctx, u) == nil
			return nil
		})
	}
	_ = g.Wait()

	for i, ok := range healthy {
		if ok {
			c.mu.Lock()
			c.base = c.candidates[i]
			c.mu.Unlock()
			slog.InfoContext(ctx, "Selected categorization backend", "base_url", c.candidates[i])
			return c.candidates[i], nil
		}
	}

	c.mu.Lock()
	c.base = ""
	c.mu.Unlock()
	return "", ErrUnavailable
}

func (c *Client) checkHealth(ctx context.Context, base string) error {
	ctx, cancel := context.WithTimeout(ctx, HealthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

// ready runs the health check that guards every call, discovering a backend
// first when none is selected. A failed check clears the selection so the
// next call rediscovers.
func (c *Client) ready(ctx context.Context) (string, error) {
	base := c.BaseURL()
	if base == "" {
		return c.Discover(ctx)
	}
	if err := c.checkHealth(ctx, base); err != nil {
		slog.WarnContext(ctx, "Categorization backend health check failed", "base_url", base, "error", err)
		c.mu.Lock()
		if c.base == base {
			c.base = ""
		}
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return base, nil
}

// Healthy reports whether a backend answers its health check.
func (c *Client) Healthy(ctx context.Context) bool {
	_, err := c.ready(ctx)
	return err == nil
}

func (c *Client) do(ctx context.Context, timeout time.Duration, req *http.Request, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if len(body) > maxErrorBodyLength {
			body = body[:maxErrorBodyLength]
		}
		return fmt.Errorf("decode envelope (HTTP %d): %w: %s", resp.StatusCode, err, body)
	}
	if env.Status != StatusSuccess {
		msg := env.Error
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("backend error: %s", msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, timeout time.Duration, base, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ctx, timeout, req, out)
}

func (c *Client) getJSON(ctx context.Context, timeout time.Duration, base, path string, out any) error {
	req, err := http.NewRequest(http.MethodGet, base+path, nil)
	if err != nil {
		return err
	}
	return c.do(ctx, timeout, req, out)
}

func cacheKey(r Request) string {
	return r.UserID + "|" + strings.ToLower(strings.TrimSpace(r.Description))
}

// Categorize never returns an error; any failure yields the keyword result.
func (c *Client) Categorize(ctx context.Context, r Request) Result {
	key := cacheKey(r)
	if res, ok := c.cache.Get(key); ok {
		return res
	}

	base, err := c.ready(ctx)
	if err != nil {
		return KeywordCategorize(r.Description)
	}

	var res Result
	if err := c.postJSON(ctx, CategorizeTimeout, base, "/categorize", r, &res); err != nil || res.Category == "" {
		slog.WarnContext(ctx, "Remote categorization failed, using keywords", "error", err)
		return KeywordCategorize(r.Description)
	}
	if res.Description == "" {
		res.Description = r.Description
	}
	c.cache.Set(key, res)
	return res
}

// CategorizeBatch returns one result per request, in order.
func (c *Client) CategorizeBatch(ctx context.Context, userID string, reqs []Request) []Result {
	fallback := func() []Result {
		out := make([]Result, len(reqs))
		for i, r := range reqs {
			out[i] = KeywordCategorize(r.Description)
		}
		return out
	}

	base, err := c.ready(ctx)
	if err != nil {
		return fallback()
	}

	var res BatchResult
	err = c.postJSON(ctx, BatchTimeout, base, "/categorize-batch", BatchRequest{UserID: userID, Expenses: reqs}, &res)
	if err != nil || len(res.Results) != len(reqs) {
		slog.WarnContext(ctx, "Remote batch categorization failed, using keywords", "error", err, "results", len(res.Results))
		return fallback()
	}
	for i := range res.Results {
		if res.Results[i].Category == "" {
			res.Results[i] = KeywordCategorize(reqs[i].Description)
		}
	}
	return res.Results
}

// Categories falls back to the static list.
func (c *Client) Categories(ctx context.Context) []string {
	base, err := c.ready(ctx)
	if err == nil {
		var res CategoriesResult
		if err = c.getJSON(ctx, CategoriesTimeout, base, "/categories", &res); err == nil && len(res.Categories) > 0 {
			return res.Categories
		}
	}
	slog.WarnContext(ctx, "Using built-in categories", "error", err)
	return append([]string(nil), storage.DefaultCategories...)
}

// SubmitCorrection reports a user's category override. Cached results for
// that description are dropped either way.
func (c *Client) SubmitCorrection(ctx context.Context, corr CorrectionRequest) error {
	c.cache.Delete(cacheKey(Request{UserID: corr.UserID, Description: corr.Description}))

	base, err := c.ready(ctx)
	if err != nil {
		return err
	}
	return c.postJSON(ctx, CorrectionTimeout, base, "/correction", corr, nil)
}

// ScanReceipt uploads an image for OCR. There is no local OCR, so failures
// are returned as ErrUnavailable. Items without a category are categorized
// through Categorize.
func (c *Client) ScanReceipt(ctx context.Context, userID, filename string, image io.Reader) (Receipt, error) {
	base, err := c.ready(ctx)
	if err != nil {
		return Receipt{}, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if userID != "" {
		_ = mw.WriteField("userId", userID)
	}
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return Receipt{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return Receipt{}, fmt.Errorf("copy image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return Receipt{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, base+"/upload-receipt", &buf)
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var rec Receipt
	if err := c.do(ctx, OCRTimeout, req, &rec); err != nil {
		slog.WarnContext(ctx, "Receipt scan failed", "error", err)
		return Receipt{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	for i, item := range rec.Items {
		if item.Category != "" {
			continue
		}
		res := c.Categorize(ctx, Request{Description: item.Name, Amount: item.Amount, Merchant: rec.Merchant, UserID: userID})
		rec.Items[i].Category = res.Category
		rec.Items[i].Confidence = res.Confidence
	}
	return rec, nil
}

// SaveExpense stores a transaction on the backend and returns it as saved.
func (c *Client) SaveExpense(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	base, err := c.ready(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	var saved core.Transaction
	if err := c.postJSON(ctx, ReadTimeout, base, "/save-expense", tx, &saved); err != nil {
		return core.Transaction{}, err
	}
	return saved, nil
}

func (c *Client) Expenses(ctx context.Context, userID string) ([]core.Transaction, error) {
	base, err := c.ready(ctx)
	if err != nil {
		return nil, err
	}
	var res ExpensesResult
	if err := c.getJSON(ctx, ReadTimeout, base, "/expenses/"+userID, &res); err != nil {
		return nil, err
	}
	return res.Expenses, nil
}

func (c *Client) UserSummary(ctx context.Context, userID string) (core.Snapshot, error) {
	base, err := c.ready(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	var snap core.Snapshot
	if err := c.getJSON(ctx, ReadTimeout, base, "/user-summary/"+userID, &snap); err != nil {
		return core.Snapshot{}, err
	}
	return snap, nil
}

// IsUnavailable reports whether err means no backend could be reached.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
