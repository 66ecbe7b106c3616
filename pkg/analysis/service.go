// Package analysis fills in receipt fields from a vision model. Analysis
// failures never propagate: the receipt is marked failed and stays editable.
package analysis

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/menta2k/claimprint/pkg/client"
	"github.com/menta2k/claimprint/pkg/processing"
	"github.com/menta2k/claimprint/pkg/types"
)

// FailedMerchant is shown in place of the merchant when analysis fails
const FailedMerchant = "Error analyzing"

// PendingMerchant is shown while analysis is in progress
const PendingMerchant = "Analyzing..."

var errNoImage = errors.New("receipt has no image")

// Service annotates receipts using a VisionClient
type Service struct {
	client    client.VisionClient
	processor *processing.Processor
	logger    *log.Logger

	// Long side of the image sent to the model, in pixels
	MaxDim int
	// JPEG quality of the image sent to the model
	Quality int
}

// New creates a Service. A nil logger discards output.
func New(c client.VisionClient, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Service{
		client:    c,
		processor: processing.NewProcessor(),
		logger:    logger,
		MaxDim:    1024,
		Quality:   85,
	}
}

// Annotate analyzes r's display image and writes the result into r. On
// success amount, merchant, date and category are replaced and the status
// becomes ready. On failure the status becomes failed, the merchant reads
// FailedMerchant and the other fields keep their placeholder values.
func (s *Service) Annotate(ctx context.Context, r *types.Receipt, categories []string) {
	start := time.Now()
	fields, err := s.analyze(ctx, r, categories)
	if err != nil {
		s.logger.Warn("receipt analysis failed", "id", r.ID, "err", err)
		r.Merchant = FailedMerchant
		r.Status = types.StatusFailed
		return
	}

	r.Amount = fields.Amount
	r.Merchant = fields.Merchant
	r.Date = fields.Date
	r.Category = client.MatchCategory(fields.SuggestedCategory, categories)
	r.Status = types.StatusReady

	s.logger.Debug("receipt analyzed",
		"id", r.ID,
		"merchant", r.Merchant,
		"amount", r.Amount,
		"category", r.Category,
		"took", time.Since(start).Round(time.Millisecond),
	)
}

// AnnotateAll annotates each receipt in turn and returns how many failed.
// One receipt's failure does not affect the others.
func (s *Service) AnnotateAll(ctx context.Context, receipts []*types.Receipt, categories []string) int {
	failed := 0
	for i, r := range receipts {
		s.logger.Info("analyzing receipt", "n", i+1, "of", len(receipts), "id", r.ID)
		s.Annotate(ctx, r, categories)
		if r.Status == types.StatusFailed {
			failed++
		}
	}
	return failed
}

func (s *Service) analyze(ctx context.Context, r *types.Receipt, categories []string) (*types.ReceiptFields, error) {
	if s.client == nil {
		return nil, errors.New("no vision backend configured")
	}
	if !r.HasImage() {
		return nil, errNoImage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	imgB64, err := s.processor.PrepareBytesForModel(r.DisplayImage(), s.MaxDim, s.Quality)
	if err != nil {
		return nil, err
	}
	return s.client.AnalyzeReceipt(ctx, imgB64, categories)
}
