// Package gemini categorizes expenses and reads receipts with a Gemini model.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finze/internal/categorizer"
	"finze/internal/core"
)

const DefaultModelName = "gemini-2.5-flash"

type Client struct {
	client *genai.Client
	model  string
}

// New creates a Gemini API client. An empty apiKey defers to the
// GOOGLE_API_KEY / Vertex environment variables read by the SDK.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Model() string { return c.model }

func (c *Client) generate(ctx context.Context, parts ...*genai.Part) (string, error) {
	contents := []*genai.Content{{Role: "user", Parts: parts}}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	raw := resp.Text()
	if raw == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return raw, nil
}

func categoryPrompt(description, merchant string, categories []string) string {
	var b strings.Builder
	b.WriteString("You categorize personal expenses.\n\n")
	b.WriteString("Allowed categories:\n")
	for _, c := range categories {
		b.WriteString("- " + c + "\n")
	}
	b.WriteString("\nExpense description: " + description + "\n")
	if merchant != "" {
		b.WriteString("Merchant: " + merchant + "\n")
	}
	b.WriteString("\nReturn ONLY a raw JSON object, no Markdown, of the form\n")
	b.WriteString(`{"category": "<one of the allowed categories>", "confidence": <number between 0 and 1>}` + "\n")
	return b.String()
}

// Categorize asks the model for one of categories. Answers outside the
// list are rejected so that callers can fall back.
func (c *Client) Categorize(ctx context.Context, description, merchant string, categories []string) (categorizer.Result, error) {
	raw, err := c.generate(ctx, &genai.Part{Text: categoryPrompt(description, merchant, categories)})
	if err != nil {
		return categorizer.Result{}, err
	}
	return parseCategory(raw, description, categories)
}

func parseCategory(raw, description string, categories []string) (categorizer.Result, error) {
	var out struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &out); err != nil {
		return categorizer.Result{}, fmt.Errorf("unmarshal model JSON: %w", err)
	}
	for _, c := range categories {
		if strings.EqualFold(c, strings.TrimSpace(out.Category)) {
			conf := out.Confidence
			if conf <= 0 || conf > 1 {
				conf = 0.8
			}
			return categorizer.Result{
				Description: description,
				Category:    c,
				Confidence:  conf,
				Source:      categorizer.SourceModel,
			}, nil
		}
	}
	return categorizer.Result{}, fmt.Errorf("model answered unknown category %q", out.Category)
}

const receiptPrompt = "You read shop and restaurant receipts.\n\n" +
	"Task:\n" +
	"- Extract the merchant, the purchase date and every line item of the attached receipt image.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n\n" +
	"The object must have these fields:\n" +
	"- \"merchant\": string\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\", or empty if not printed\n" +
	"- \"currency\": string (e.g. \"INR\")\n" +
	"- \"items\": array of {\"name\": string, \"amount\": number, \"quantity\": number, \"category\": string}\n" +
	"- \"subtotal\": number\n" +
	"- \"tax\": number\n" +
	"- \"total\": number\n\n" +
	"Amounts are numbers in major currency units; discount lines are negative.\n" +
	"Use one of these categories for each item, or an empty string if unsure:\n"

// ExtractReceipt runs OCR on a receipt image.
func (c *Client) ExtractReceipt(ctx context.Context, image []byte, mimeType string, categories []string) (categorizer.Receipt, error) {
	prompt := receiptPrompt + "- " + strings.Join(categories, "\n- ") + "\n\nReturn ONLY valid raw JSON.\n"
	raw, err := c.generate(ctx,
		&genai.Part{Text: prompt},
		&genai.Part{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
	)
	if err != nil {
		return categorizer.Receipt{}, err
	}
	return parseReceipt(raw)
}

func parseReceipt(raw string) (categorizer.Receipt, error) {
	var rec categorizer.Receipt
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &rec); err != nil {
		return categorizer.Receipt{}, fmt.Errorf("unmarshal receipt JSON: %w", err)
	}
	if rec.Items == nil {
		rec.Items = []categorizer.ReceiptItem{}
	}
	if rec.Total.Cents == 0 {
		for _, it := range rec.Items {
			rec.Total = rec.Total.Add(it.Amount)
		}
		rec.Total = rec.Total.Add(rec.Tax)
	}
	return rec, nil
}

const advicePrompt = "You are a personal finance assistant.\n\n" +
	"Below is a JSON summary of a user's spending. Amounts are in major currency units.\n" +
	"Its \"insights\" were already shown to the user.\n\n" +
	"Task:\n" +
	"- Write at most 3 short, specific and actionable insights that the existing ones do not cover.\n" +
	"- Return ONLY a raw JSON array, no Markdown, of objects of the form\n" +
	"  {\"title\": string, \"description\": string, \"priority\": \"low\"|\"medium\"|\"high\", \"type\": string, \"actionRequired\": boolean}\n" +
	"- Return [] when there is nothing to add.\n\n" +
	"Summary:\n"

// Advise asks the model for insights beyond the ones already in analysis.
func (c *Client) Advise(ctx context.Context, analysis core.SpendingAnalysis) ([]core.Insight, error) {
	summary, err := json.Marshal(analysis)
	if err != nil {
		return nil, fmt.Errorf("encode analysis: %w", err)
	}
	raw, err := c.generate(ctx, &genai.Part{Text: advicePrompt + string(summary) + "\n"})
	if err != nil {
		return nil, err
	}
	return parseInsights(raw)
}

// parseInsights accepts a bare array or an object wrapping it in "insights".
func parseInsights(raw string) ([]core.Insight, error) {
	cleaned := cleanModelJSON(raw)
	var list []core.Insight
	if err := json.Unmarshal([]byte(cleaned), &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Insights []core.Insight `json:"insights"`
	}
	if err := json.Unmarshal([]byte(cleaned), &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal insights JSON: %w", err)
	}
	return wrapped.Insights, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object or array.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return s
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	if end := strings.LastIndex(s, closer); end > start {
		s = s[start : end+1]
	}
	return strings.TrimSpace(s)
}
