// Package categorizer talks to the remote categorization/OCR backend and
// carries the keyword table used when that backend cannot be reached.
package categorizer

import (
	"encoding/json"
	"errors"

	"finze/internal/core"
)

// ErrUnavailable is returned by operations that have no local fallback
// (receipt OCR, remote reads) when no healthy backend is reachable.
var ErrUnavailable = errors.New("categorization backend unavailable")

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope wraps every backend response.
type Envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Source tells where a category came from.
type Source string

const (
	SourceCorrection Source = "correction"
	SourceModel      Source = "model"
	SourceKeyword    Source = "keyword"
)

type Request struct {
	Description string     `json:"description"`
	Amount      core.Money `json:"amount,omitempty"`
	Merchant    string     `json:"merchant,omitempty"`
	UserID      string     `json:"userId,omitempty"`
}

type Result struct {
	Description string  `json:"description,omitempty"`
	Category    string  `json:"category"`
	Confidence  float64 `json:"confidence"`
	Source      Source  `json:"source"`
}

type BatchRequest struct {
	UserID   string    `json:"userId,omitempty"`
	Expenses []Request `json:"expenses"`
}

type BatchResult struct {
	Results []Result `json:"results"`
}

type CategoriesResult struct {
	Categories []string `json:"categories"`
}

type CorrectionRequest struct {
	UserID            string `json:"userId"`
	Description       string `json:"description"`
	OriginalCategory  string `json:"originalCategory"`
	CorrectedCategory string `json:"correctedCategory"`
}

type ReceiptItem struct {
	Name       string     `json:"name"`
	Amount     core.Money `json:"amount"`
	Quantity   float64    `json:"quantity,omitempty"`
	Category   string     `json:"category,omitempty"`
	Confidence float64    `json:"confidence,omitempty"`
}

// Receipt is the structured result of OCR on a receipt image.
type Receipt struct {
	Merchant   string        `json:"merchant"`
	Date       string        `json:"date,omitempty"`
	Items      []ReceiptItem `json:"items"`
	Subtotal   core.Money    `json:"subtotal"`
	Tax        core.Money    `json:"tax"`
	Total      core.Money    `json:"total"`
	Currency   string        `json:"currency,omitempty"`
	ArchiveURI string        `json:"archiveUri,omitempty"`
}

type ExpensesResult struct {
	UserID   string             `json:"userId"`
	Count    int                `json:"count"`
	Expenses []core.Transaction `json:"expenses"`
}

// ServiceStatus is one dependency as reported by the health endpoint.
type ServiceStatus struct {
	Status string `json:"status"` // healthy|unavailable
	Detail string `json:"detail,omitempty"`
}

type Health struct {
	Status   string                   `json:"status"`
	Services map[string]ServiceStatus `json:"services"`
}
