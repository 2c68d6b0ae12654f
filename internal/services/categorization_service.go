package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"finze/internal/categorizer"
	"finze/internal/core"
	"finze/internal/storage"
)

// MaxBatchSize caps one categorize-batch call.
const MaxBatchSize = 100

const batchWorkers = 4

// ErrOCRUnavailable is returned by ScanReceipt when no model is configured.
var ErrOCRUnavailable = errors.New("receipt OCR is not configured")

// Model categorizes text and reads receipt images.
type Model interface {
	Categorize(ctx context.Context, description, merchant string, categories []string) (categorizer.Result, error)
	ExtractReceipt(ctx context.Context, image []byte, mimeType string, categories []string) (categorizer.Receipt, error)
}

// CategorizationService picks a category for a description. A user's own
// corrections win, then the model when one is configured, then the keyword
// table.
type CategorizationService struct {
	finance *FinanceService
	model   Model
}

// NewCategorizationService accepts a nil model, in which case only
// corrections and keywords are used and receipt OCR is unavailable.
func NewCategorizationService(finance *FinanceService, model Model) *CategorizationService {
	return &CategorizationService{finance: finance, model: model}
}

func (s *CategorizationService) ModelEnabled() bool {
	return s.model != nil
}

func (s *CategorizationService) categories(ctx context.Context) []string {
	cats, err := s.finance.Categories(ctx)
	if err != nil || len(cats) == 0 {
		slog.WarnContext(ctx, "Falling back to default categories", "error", err)
		return append([]string(nil), storage.DefaultCategories...)
	}
	return cats
}

// Categorize never fails for a non-empty description.
func (s *CategorizationService) Categorize(ctx context.Context, r categorizer.Request) (categorizer.Result, error) {
	desc := strings.TrimSpace(r.Description)
	if desc == "" {
		return categorizer.Result{}, invalid(core.ErrEmptyDescription)
	}
	return s.categorize(ctx, r.UserID, desc, strings.TrimSpace(r.Merchant), nil), nil
}

func (s *CategorizationService) categorize(ctx context.Context, userID, desc, merchant string, cats []string) categorizer.Result {
	if cat, ok := s.finance.LearnedCategory(ctx, userID, desc); ok {
		return categorizer.Result{
			Description: desc,
			Category:    cat,
			Confidence:  1.0,
			Source:      categorizer.SourceCorrection,
		}
	}

	if s.model != nil {
		if cats == nil {
			cats = s.categories(ctx)
		}
		res, err := s.model.Categorize(ctx, desc, merchant, cats)
		if err == nil {
			return res
		}
		slog.WarnContext(ctx, "Model categorization failed, using keywords", "error", err)
	}

	return categorizer.KeywordCategorize(desc)
}

// CategorizeBatch answers in request order. Items run concurrently against
// the model.
func (s *CategorizationService) CategorizeBatch(ctx context.Context, userID string, reqs []categorizer.Request) ([]categorizer.Result, error) {
	if len(reqs) == 0 {
		return nil, invalid(errors.New("no expenses to categorize"))
	}
	if len(reqs) > MaxBatchSize {
		return nil, invalid(fmt.Errorf("at most %d expenses per batch", MaxBatchSize))
	}
	for i, r := range reqs {
		if strings.TrimSpace(r.Description) == "" {
			return nil, invalid(fmt.Errorf("expense %d: %w", i, core.ErrEmptyDescription))
		}
	}

	var cats []string
	if s.model != nil {
		cats = s.categories(ctx)
	}

	results := make([]categorizer.Result, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)
	for i, r := range reqs {
		uid := r.UserID
		if uid == "" {
			uid = userID
		}
		g.Go(func() error {
			results[i] = s.categorize(gctx, uid, strings.TrimSpace(r.Description), strings.TrimSpace(r.Merchant), cats)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// ScanReceipt extracts a receipt with the model and fills in categories the
// model left empty.
func (s *CategorizationService) ScanReceipt(ctx context.Context, userID string, image []byte, mimeType string) (categorizer.Receipt, error) {
	if s.model == nil {
		return categorizer.Receipt{}, ErrOCRUnavailable
	}

	cats := s.categories(ctx)
	rec, err := s.model.ExtractReceipt(ctx, image, mimeType, cats)
	if err != nil {
		return categorizer.Receipt{}, fmt.Errorf("extract receipt: %w", err)
	}

	for i, item := range rec.Items {
		if item.Category != "" && containsFold(cats, item.Category) {
			if rec.Items[i].Confidence == 0 {
				rec.Items[i].Confidence = 0.8
			}
			continue
		}
		if strings.TrimSpace(item.Name) == "" {
			rec.Items[i].Category = categorizer.FallbackCategory
			rec.Items[i].Confidence = categorizer.FallbackConfidence
			continue
		}
		res := s.categorize(ctx, userID, strings.TrimSpace(item.Name), rec.Merchant, cats)
		rec.Items[i].Category = res.Category
		rec.Items[i].Confidence = res.Confidence
	}
	return rec, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
