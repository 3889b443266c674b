// Package vtom drives jobs of the Vtom scheduler through its REST API.
package vtom

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/ptgott/e2ekit/logging"
)

// Job statuses understood by the API.
const (
	StatusRunning  = "Running"
	StatusFinished = "Finished"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 20
	commentPrefix       = "wdio-test"
)

var errNotFinished = errors.New("job not finished")

// Client calls a Vtom API with an API key. TLS certificates are not verified:
// schedulers of test environments run with self-signed certificates.
type Client struct {
	baseURL      string
	apiKey       string
	http         *retryablehttp.Client
	pollInterval time.Duration
	maxPolls     uint
}

// Option customizes a Client.
type Option func(*Client)

// WithPollInterval sets the pause between two status checks.
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

// WithMaxPolls sets how many times the status is checked before giving up.
func WithMaxPolls(n uint) Option {
	return func(c *Client) { c.maxPolls = n }
}

// WithRetryMax sets how many times a failing HTTP call is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// NewClient returns a client for the API rooted at baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	rc.HTTPClient.Transport = tr
	rc.Logger = logging.KeyValueLogger{Component: "vtom"}

	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		http:         rc,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type action struct {
	Comment string `json:"comment"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

type jobStatus struct {
	Status string `json:"status"`
}

func (c *Client) jobURL(env, app, job string) string {
	return fmt.Sprintf("%s/%s/applications/%s/jobs/%s",
		c.baseURL, url.PathEscape(env), url.PathEscape(app), url.PathEscape(job))
}

func (c *Client) do(ctx context.Context, method, u string, body any, into any) error {
	var raw any
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		raw = b
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, raw)
	if err != nil {
		return err
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s returned %s: %s", method, u, resp.Status, bytes.TrimSpace(msg))
	}
	if into == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(into)
}

// ChangeStatus posts a ChangeStatus action for the job.
func (c *Client) ChangeStatus(ctx context.Context, env, app, job, status string) error {
	a := action{
		Comment: fmt.Sprintf("%s: ChangeStatus('%s')", commentPrefix, status),
		Type:    "ChangeStatus",
		Status:  status,
	}
	return c.do(ctx, http.MethodPost, c.jobURL(env, app, job)+"/action", a, nil)
}

// Status returns the current status of the job.
func (c *Client) Status(ctx context.Context, env, app, job string) (string, error) {
	var s jobStatus
	if err := c.do(ctx, http.MethodGet, c.jobURL(env, app, job)+"/status", nil, &s); err != nil {
		return "", err
	}
	return s.Status, nil
}

// RunJob stops the job, starts it again and waits for it to finish. It
// returns false when the job is still not finished after the last check.
// Failures are logged and returned as "vtom error".
func (c *Client) RunJob(ctx context.Context, env, app, job string) (bool, error) {
	ok, err := c.runJob(ctx, env, app, job)
	if err != nil {
		logging.DetailError(err)
		return false, fmt.Errorf("vtom error: %w", err)
	}
	return ok, nil
}

func (c *Client) runJob(ctx context.Context, env, app, job string) (bool, error) {
	log.Debug().Str("job", job).Msg("stopping vtom job")
	if err := c.ChangeStatus(ctx, env, app, job, StatusFinished); err != nil {
		return false, err
	}
	log.Debug().Str("job", job).Msg("running vtom job")
	if err := c.ChangeStatus(ctx, env, app, job, StatusRunning); err != nil {
		return false, err
	}

	polls := uint(0)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		polls++
		s, err := c.Status(ctx, env, app, job)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		if s != StatusFinished {
			log.Debug().Str("job", job).Str("status", s).Uint("check", polls).Msg("vtom job not finished yet")
			return struct{}{}, errNotFinished
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(c.pollInterval)),
		backoff.WithMaxTries(c.maxPolls),
		backoff.WithMaxElapsedTime(0),
	)

	switch {
	case err == nil:
		log.Info().Str("job", job).Msg("vtom job finished")
		return true, nil
	case errors.Is(err, errNotFinished):
		return false, nil
	default:
		return false, err
	}
}
