package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OCRSpaceClient calls the OCR.space parse API
type OCRSpaceClient struct {
	httpClient *resty.Client
	apiKey     string
	logger     *slog.Logger
}

type ocrSpaceResult struct {
	ParsedText   string `json:"ParsedText"`
	ErrorMessage string `json:"ErrorMessage"`
}

type ocrSpaceResponse struct {
	ParsedResults         []ocrSpaceResult `json:"ParsedResults"`
	OCRExitCode           int              `json:"OCRExitCode"`
	IsErroredOnProcessing bool             `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage  `json:"ErrorMessage"`
}

// NewOCRSpaceClient creates an OCR client for the given base URL
func NewOCRSpaceClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *OCRSpaceClient {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")

	return &OCRSpaceClient{
		httpClient: client,
		apiKey:     apiKey,
		logger:     logger,
	}
}

// Recognize uploads an image and returns the text of each parsed result
func (c *OCRSpaceClient) Recognize(ctx context.Context, data []byte, fileName, language string) ([]string, error) {
	var response ocrSpaceResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("apikey", c.apiKey).
		SetFileReader("file", fileName, bytes.NewReader(data)).
		SetFormData(map[string]string{
			"language":          language,
			"isOverlayRequired": "false",
			"scale":             "true",
		}).
		SetResult(&response).
		Post("/parse/image")
	if err != nil {
		return nil, fmt.Errorf("failed to call OCR API: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("❌ [OCR] OCR API returned error status", "status_code", resp.StatusCode())
		return nil, fmt.Errorf("OCR API returned status %d", resp.StatusCode())
	}

	if response.IsErroredOnProcessing {
		msg := decodeOCRMessage(response.ErrorMessage)
		c.logger.Warn("⚠️ [OCR] OCR processing error", "message", msg)
		return nil, fmt.Errorf("%w: %s", ErrOCRProcessing, msg)
	}

	blocks := make([]string, 0, len(response.ParsedResults))
	for _, result := range response.ParsedResults {
		blocks = append(blocks, result.ParsedText)
	}
	return blocks, nil
}

// decodeOCRMessage accepts the provider's error message as a string or a list of strings
func decodeOCRMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "unknown error"
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return single
	}
	return string(raw)
}

// OCR errors
var (
	ErrOCRProcessing = errors.New("OCR provider could not process the image")
)
