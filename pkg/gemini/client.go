package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/menta2k/claimprint/pkg/client"
	"github.com/menta2k/claimprint/pkg/types"
)

// DefaultModel is used when no model name is configured
const DefaultModel = "gemini-2.5-flash"

// DefaultTimeout bounds a request when the caller's context has no deadline
const DefaultTimeout = 60 * time.Second

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client implements client.VisionClient using Google Gemini
type Client struct {
	client *genai.Client
	model  generator
}

// NewClient creates a Gemini client
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	model := gc.GenerativeModel(modelName)
	model.SetTemperature(0.1)

	return &Client{client: gc, model: model}, nil
}

// AnalyzeReceipt sends the JPEG receipt and the extraction prompt
func (g *Client) AnalyzeReceipt(ctx context.Context, imgB64 string, categories []string) (*types.ReceiptFields, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	// Accept data URLs as well as bare base64
	if i := strings.Index(imgB64, ","); i >= 0 && strings.HasPrefix(imgB64, "data:") {
		imgB64 = imgB64[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 image: %w", err)
	}

	// genai.ImageData takes the format suffix, not the MIME type
	resp, err := g.model.GenerateContent(ctx,
		genai.ImageData("jpeg", data),
		genai.Text(client.Prompt(categories)),
	)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return nil, client.ErrEmptyResponse
	}

	fields, err := client.ParseReceiptJSON(text)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}
	return fields, nil
}

// Close closes the Gemini client
func (g *Client) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String())
}
