package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/raaihank/text-pseudonymizer/internal/entity"
	"github.com/raaihank/text-pseudonymizer/internal/logger"
)

// HTTP calls an external NER service. The service receives {"text": ...} and
// answers {"entities": [{"text", "label", "start", "end"}]} with code-point
// offsets.
type HTTP struct {
	endpoint string
	client   *http.Client
	logger   *logger.Logger
}

type recognizeRequest struct {
	Text string `json:"text"`
}

type recognizedEntity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type recognizeResponse struct {
	Entities []recognizedEntity `json:"entities"`
}

// NewHTTP creates a client for the NER service at endpoint
func NewHTTP(endpoint string, timeout time.Duration, log *logger.Logger) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   log.WithComponent("recognizer"),
	}
}

// Name returns the recognizer name
func (h *HTTP) Name() string { return "http" }

// Recognize sends text to the service and maps its labels to entity types
func (h *HTTP) Recognize(ctx context.Context, text string) ([]entity.Span, error) {
	body, err := json.Marshal(recognizeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("recognizer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("recognizer returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode recognizer response: %w", err)
	}

	spans := make([]entity.Span, 0, len(decoded.Entities))
	for _, e := range decoded.Entities {
		spans = append(spans, entity.Span{
			Start: e.Start,
			End:   e.End,
			Type:  entity.FromLabel(e.Label),
			Text:  e.Text,
		})
	}

	h.logger.Debug("Entities recognized",
		zap.Int("count", len(spans)),
		zap.Duration("duration", time.Since(start)),
	)

	return spans, nil
}
