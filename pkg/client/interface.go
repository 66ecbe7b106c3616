package client

import (
	"context"

	"github.com/menta2k/claimprint/pkg/types"
)

// VisionClient extracts receipt fields from a base64-encoded image
type VisionClient interface {
	AnalyzeReceipt(ctx context.Context, imgB64 string, categories []string) (*types.ReceiptFields, error)
}
