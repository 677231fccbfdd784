// Package captcha reads challenge images with an OpenAI-compatible vision
// model. The solver enforces a sliding per-minute call cap and retries only
// on upstream throttling; everything else fails the current solve cycle and
// lets the caller refresh the challenge.
package captcha

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/courtsync/internal/logging"
	"github.com/sethvargo/go-retry"
	"golang.org/x/time/rate"
)

var (
	// ErrRateLimited is returned when the per-minute vision call cap is
	// exhausted; the caller should skip this cycle, not wait.
	ErrRateLimited = errors.New("vision rate cap exhausted")

	// ErrUnparsable is returned when the model reply contains no digit run
	// of the expected length; the caller should refresh the challenge.
	ErrUnparsable = errors.New("unparsable vision reply")
)

const (
	defaultHTTPTimeout = 60 * time.Second
	maxUpstreamRetries = 3
)

// Config describes how to build a Solver.
type Config struct {
	Endpoint     string
	APIKey       string
	Model        string
	AnswerLength int
	PerMinuteCap int
	HTTPClient   *http.Client
}

// Solver turns a challenge image into a digit string.
type Solver struct {
	endpoint  string
	apiKey    string
	model     string
	answerLen int
	limiter   *rate.Limiter
	client    *http.Client
	logger    logging.Logger
}

func NewSolver(cfg Config, logger logging.Logger) *Solver {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &Solver{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		answerLen: cfg.AnswerLength,
		limiter:   rate.NewLimiter(rate.Limit(float64(cfg.PerMinuteCap)/60.0), cfg.PerMinuteCap),
		client:    client,
		logger:    logger,
	}
}

// errUpstreamThrottled marks a 429 from the vision backend as retryable.
type errUpstreamThrottled struct{ status string }

func (e *errUpstreamThrottled) Error() string { return "vision backend throttled: " + e.status }

// Solve reads the digits off a challenge image. It consumes one slot of the
// per-minute cap; when the cap is exhausted it returns ErrRateLimited
// without calling the backend.
func (s *Solver) Solve(ctx context.Context, image []byte) (string, error) {
	if !s.limiter.Allow() {
		return "", ErrRateLimited
	}

	var reply string
	backoff := retry.WithMaxRetries(maxUpstreamRetries, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		reply, err = s.chat(ctx, image)
		var throttled *errUpstreamThrottled
		if errors.As(err, &throttled) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return "", err
	}

	answer := extractDigits(reply, s.answerLen)
	if answer == "" {
		s.logger.Warn(ctx, "vision reply had no usable answer", "reply", reply)
		return "", ErrUnparsable
	}
	return answer, nil
}

func (s *Solver) chat(ctx context.Context, image []byte) (string, error) {
	instruction := fmt.Sprintf(
		"Read the %d digits shown in this image. Reply with the digits only, no other text.",
		s.answerLen)

	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instruction},
					{"type": "image_url", "image_url": map[string]string{
						"url": "data:image/png;base64," + base64.StdEncoding.EncodeToString(image),
					}},
				},
			},
		},
		"temperature": 0,
		"max_tokens":  20,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/chat/completions", bytes.NewReader(buf))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &errUpstreamThrottled{status: resp.Status}
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("vision API error: %s (%s)", resp.Status, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("vision API returned no choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// extractDigits returns the first run of exactly n digits in s, tolerating
// chatter around the answer ("The code is 483920."). Longer runs do not
// qualify; a 7-digit run is a misread, not a 6-digit answer plus noise.
func extractDigits(s string, n int) string {
	runStart := -1
	flush := func(end int) string {
		if runStart >= 0 && end-runStart == n {
			return s[runStart:end]
		}
		return ""
	}
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if runStart < 0 {
				runStart = i
			}
			continue
		}
		if got := flush(i); got != "" {
			return got
		}
		runStart = -1
	}
	return flush(len(s))
}
