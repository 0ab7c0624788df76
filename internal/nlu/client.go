// internal/nlu/client.go
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	commonhttp "quote-engine/internal/common/http"
	"quote-engine/internal/common/logger"
	"quote-engine/internal/models"
)

var (
	ErrClassifyFailed = errors.New("NLU_FAILED")
	ErrTimeout        = errors.New("NLU_TIMEOUT")
)

// Classifier is the orchestrator's only contract with the NLU capability:
// given the turn text and current slot state, return an intent and extracted
// slot candidates within a bounded timeout.
type Classifier interface {
	Classify(ctx context.Context, text string, currentSlots map[string]models.SlotValue) (*models.Classification, error)
}

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// Client calls the external NLU service over HTTP.
type Client struct {
	config *Config
	client *commonhttp.Client
	logger logger.Logger
}

func NewClient(config *Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		client: commonhttp.NewClient(config.Timeout),
		logger: log.WithFields(map[string]interface{}{"collaborator": "nlu"}),
	}
}

func (c *Client) Classify(ctx context.Context, text string, currentSlots map[string]models.SlotValue) (*models.Classification, error) {
	requestBody := map[string]interface{}{
		"text": text,
	}
	if len(currentSlots) > 0 {
		known := make(map[string]interface{}, len(currentSlots))
		for name, sv := range currentSlots {
			known[name] = sv.Value
		}
		requestBody["currentSlots"] = known
	}

	body, _ := json.Marshal(requestBody)

	var resp *http.Response
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff between attempts.
			backoff := time.Duration(100*(1<<(attempt-1))) * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ErrTimeout
			}
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.config.BaseURL+"/api/nlu/classify", bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrClassifyFailed, err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.config.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
		}

		resp, lastErr = c.client.Do(req)

		// A context expiry during the request is a timeout, not a retry.
		if ctx.Err() != nil ||
			errors.Is(lastErr, context.DeadlineExceeded) ||
			errors.Is(lastErr, context.Canceled) {
			return nil, ErrTimeout
		}

		if lastErr == nil {
			if resp.StatusCode == http.StatusOK {
				break
			}
			resp.Body.Close()
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			resp = nil
		}
	}

	if lastErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrClassifyFailed, lastErr)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no successful response after retries", ErrClassifyFailed)
	}
	defer resp.Body.Close()

	var classification models.Classification
	if err := json.NewDecoder(resp.Body).Decode(&classification); err != nil {
		return nil, fmt.Errorf("%w: decode error: %v", ErrClassifyFailed, err)
	}

	c.logger.Info("turn classified", map[string]interface{}{
		"intent":     classification.Intent,
		"confidence": classification.Confidence,
		"slotCount":  len(classification.Slots),
	})

	return &classification, nil
}
