// internal/questions/http.go
package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jason-s-yu/certarena/internal/models"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// HTTPClient asks the external question generator for a set. Network failures and 5xx responses
// are retried with exponential backoff; anything else fails immediately.
type HTTPClient struct {
	url     string
	client  *http.Client
	retries uint64
	base    time.Duration
	logger  *logrus.Logger
}

func NewHTTPClient(url string, timeout time.Duration, retries int, logger *logrus.Logger) *HTTPClient {
	if retries < 1 {
		retries = 1
	}
	return &HTTPClient{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		retries: uint64(retries - 1),
		base:    200 * time.Millisecond,
		logger:  logger,
	}
}

type fetchResponse struct {
	Questions []models.Question `json:"questions"`
}

func (c *HTTPClient) Fetch(ctx context.Context, req Request) ([]models.Question, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	var out []models.Question
	backoff := retry.WithMaxRetries(c.retries, retry.NewExponential(c.base))
	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		qs, err := c.once(ctx, body)
		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"attempt": attempt,
				"topic":   req.Topic,
			}).Warn("question fetch failed")
			return err
		}
		out = qs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out = Playable(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: generator returned no playable questions", ErrUnavailable)
	}
	if req.Count > 0 && len(out) > req.Count {
		out = out[:req.Count]
	}
	return out, nil
}

func (c *HTTPClient) once(ctx context.Context, body []byte) ([]models.Question, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, retry.RetryableError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, retry.RetryableError(fmt.Errorf("question service returned %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("question service returned %d", resp.StatusCode)
	}

	var fr fetchResponse
	if err := json.NewDecoder(resp.Body).Decode(&fr); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return fr.Questions, nil
}
