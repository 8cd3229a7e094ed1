package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/shambasmart/marketplace/internal/httpclient"
	"github.com/shambasmart/marketplace/internal/metrics"
)

// ErrUnprocessable means the extraction service could not derive listing
// fields from the given description.
var ErrUnprocessable = errors.New("description could not be analyzed")

// Extraction is the structured listing draft produced from a free-text crop
// description.
type Extraction struct {
	CropName     string `json:"crop_name"`
	Quantity     int64  `json:"quantity"`
	QualityScore int    `json:"quality_score"`
	BasePrice    int64  `json:"base_price"`
	Confidence   string `json:"confidence"`
}

type extractRequest struct {
	Description string `json:"description"`
}

// Client calls the external AI extraction service that turns a farmer's
// free-text produce description into a listing draft. Calls are rate limited
// per user and retried through the shared executor.
type Client struct {
	exec    *httpclient.Executor
	baseURL string
	apiKey  string
	logger  *zap.Logger
}

func NewClient(exec *httpclient.Executor, baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		exec:    exec,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// ErrorHandler maps extraction service 4xx responses onto client errors. It
// is installed on the shared executor at wiring time.
func ErrorHandler(status int, body []byte) error {
	if status == http.StatusUnprocessableEntity {
		return ErrUnprocessable
	}
	return fmt.Errorf("extraction service returned %d: %s", status, string(body))
}

// ExtractListing submits the description and returns the structured draft.
// userID keys the rate limiter so one chatty user cannot starve the rest.
func (c *Client) ExtractListing(ctx context.Context, userID, description string) (*Extraction, error) {
	payload, err := json.Marshal(extractRequest{Description: description})
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var out Extraction
	if err := c.exec.DoJSON(ctx, req, userID, &out); err != nil {
		metrics.IncError("analysis", "extract_failed")
		return nil, err
	}

	c.logger.Debug("analysis.extracted",
		zap.String("user_id", userID),
		zap.String("crop_name", out.CropName),
		zap.Int64("quantity", out.Quantity))
	return &out, nil
}
