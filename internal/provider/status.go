package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/tempscore-cli/internal/model"
)

// StatusClientOptions configures the validation status client.
type StatusClientOptions struct {
	BaseURL    string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec caps requests against the registry API. Registries
	// publish aggressive limits; default is 5 req/s.
	RatePerSec float64
}

// StatusClient refreshes target validation statuses from the registry
// API, so locally cached provider files can be scored against the
// registry's current review state.
type StatusClient struct {
	client  *http.Client
	limiter *rate.Limiter
	opts    StatusClientOptions
}

// NewStatusClient creates a StatusClient with the given options.
func NewStatusClient(opts StatusClientOptions) *StatusClient {
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tempscore-cli/1.0"
	}
	return &StatusClient{
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), int(opts.RatePerSec)),
		opts:    opts,
	}
}

// targetStatus is one row of the registry response.
type targetStatus struct {
	TargetID string `json:"target_id"`
	Status   string `json:"status"`
}

// Refresh overwrites the validation status of every target with the
// registry's current state. Companies unknown to the registry keep their
// file-provided statuses.
func (c *StatusClient) Refresh(ctx context.Context, data *Data) error {
	var refreshed, missing int
	for companyID, targets := range data.Targets {
		statuses, err := c.fetchCompany(ctx, companyID)
		if err != nil {
			return eris.Wrapf(err, "status: refresh company %s", companyID)
		}
		if statuses == nil {
			missing++
			continue
		}
		for i := range targets {
			if s, ok := statuses[targets[i].ID]; ok {
				targets[i].Status = model.ParseValidationStatus(s)
				refreshed++
			}
		}
	}

	zap.L().Info("status: registry refresh complete",
		zap.Int("targets_refreshed", refreshed),
		zap.Int("companies_unknown", missing),
	)
	return nil
}

// fetchCompany returns target statuses keyed by target ID, or nil when
// the registry has no record of the company.
func (c *StatusClient) fetchCompany(ctx context.Context, companyID string) (map[string]string, error) {
	url := fmt.Sprintf("%s/v1/companies/%s/targets", c.opts.BaseURL, companyID)

	var lastErr error
	for attempt := 0; attempt < c.opts.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			c.backoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return nil, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = eris.Errorf("http %d from %s", resp.StatusCode, url)
			zap.L().Warn("status: registry error, retrying",
				zap.String("company_id", companyID),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt+1),
			)
			c.backoff(ctx, attempt)
			continue
		case resp.StatusCode != http.StatusOK:
			_ = resp.Body.Close()
			return nil, eris.Errorf("status: unexpected status %d from %s", resp.StatusCode, url)
		}

		var rows []targetStatus
		err = json.NewDecoder(resp.Body).Decode(&rows)
		_ = resp.Body.Close()
		if err != nil {
			return nil, eris.Wrap(err, "status: decode response")
		}

		out := make(map[string]string, len(rows))
		for _, row := range rows {
			out[row.TargetID] = row.Status
		}
		return out, nil
	}

	return nil, eris.Wrap(lastErr, "all retries exhausted")
}

func (c *StatusClient) backoff(ctx context.Context, attempt int) {
	d := time.Duration(1<<attempt) * 500 * time.Millisecond
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
