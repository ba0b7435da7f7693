package license

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ali-hajj/youware-source-code/internal/util"
)

const (
	// DefaultEndpoint is the production license check URL.
	DefaultEndpoint = "https://backend.youware.com/api/licenses/check"
	// DefaultTimeout bounds the single request made per verification.
	DefaultTimeout = 5 * time.Second

	maxResponseBytes = 1 << 20
)

// Config drives checker behaviour.
type Config struct {
	// Endpoint defaults to DefaultEndpoint.
	Endpoint string
	// Timeout defaults to DefaultTimeout. It is applied to HTTPClient when
	// that client has no timeout of its own.
	Timeout time.Duration
	// HTTPClient is optional; it is copied, never modified.
	HTTPClient *http.Client
	// Now is the clock compared against expiry dates.
	Now func() time.Time
	// Output receives the confirmation line on success. Nil keeps the checker silent.
	Output io.Writer
	Logger logrus.FieldLogger
}

// Checker verifies serials against a remote license server.
type Checker struct {
	httpClient *http.Client
	endpoint   string
	now        func() time.Time
	out        io.Writer
	log        logrus.FieldLogger
}

// NewChecker constructs a Checker, filling unset config fields with defaults.
func NewChecker(cfg Config) *Checker {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	} else if httpClient.Timeout == 0 {
		clone := *httpClient
		clone.Timeout = timeout
		httpClient = &clone
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Checker{
		httpClient: httpClient,
		endpoint:   endpoint,
		now:        now,
		out:        cfg.Output,
		log:        logger,
	}
}

// Endpoint returns the URL the checker posts to.
func (c *Checker) Endpoint() string {
	return c.endpoint
}

// Verify sends serial to the license server and accepts it only when the
// server reports it valid and its expiry date has not passed.
func (c *Checker) Verify(ctx context.Context, serial string) (Verdict, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return Verdict{}, newError(ErrEmptySerial, "", nil)
	}

	timer := util.StartTimer()
	body, err := c.post(ctx, serial)
	fields := logrus.Fields{
		"endpoint":   c.endpoint,
		"elapsed_ms": timer.ElapsedMs(),
	}
	if err != nil {
		c.log.WithError(err).WithFields(fields).Debug("license request failed")
		return Verdict{}, newError(ErrNetwork, fmt.Sprintf("%s: %v", ErrNetwork.Error(), err), err)
	}
	c.log.WithFields(fields).Debug("license server responded")

	resp, err := decodeResponse(body)
	if err != nil {
		return Verdict{}, newError(ErrInvalidJSON, "", err)
	}

	if !resp.Valid {
		return Verdict{}, newError(ErrRejected, fmt.Sprintf("%s: %s", ErrRejected.Error(), resp.RejectReason()), nil)
	}

	if resp.Expiry == "" {
		return Verdict{}, newError(ErrMissingExpiry, "", nil)
	}

	expiresAt, err := ParseExpiry(resp.Expiry)
	if err != nil {
		return Verdict{}, newError(ErrInvalidExpiry, fmt.Sprintf("%s: %s", ErrInvalidExpiry.Error(), resp.Expiry), err)
	}

	if Expired(c.now(), expiresAt) {
		return Verdict{}, newError(ErrExpired, fmt.Sprintf("serial expired on %s", resp.Expiry), nil)
	}

	verdict := Verdict{
		Serial:    serial,
		Plan:      resp.Plan,
		User:      resp.User,
		Expiry:    resp.Expiry,
		ExpiresAt: expiresAt,
	}
	c.log.WithFields(logrus.Fields{
		"serial": serial,
		"plan":   orNA(resp.Plan),
		"expiry": resp.Expiry,
	}).Info("license accepted")

	if c.out != nil {
		if _, err := fmt.Fprintln(c.out, verdict.String()); err != nil {
			c.log.WithError(err).Warn("write license confirmation")
		}
	}
	return verdict, nil
}

// post performs the request. The status code is not interpreted: the
// server reports rejections as 4xx responses with a JSON body.
func (c *Checker) post(ctx context.Context, serial string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload, err := json.Marshal(checkRequest{Serial: serial})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}

type checkRequest struct {
	Serial string `json:"serial"`
}
