// Package gateway issues HTTP calls to the task service through the
// session guard and normalizes every result into an Outcome.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Authorizer decorates a request with credentials, or refuses it.
type Authorizer interface {
	Authorize(req *http.Request) error
}

// Client is a thin HTTP client for the task service REST API. It never
// retries; task mutations are not idempotent at the remote.
type Client struct {
	baseURL    string
	auth       Authorizer
	httpClient *http.Client
	log        *logrus.Logger
}

// New creates a gateway rooted at baseURL (e.g. http://localhost:8080).
// timeout bounds each call; zero means no client-side limit.
func New(baseURL string, auth Authorizer, timeout time.Duration, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		auth:    auth,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// WithHTTPClient replaces the underlying HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the root URL requests are issued against.
func (c *Client) BaseURL() string { return c.baseURL }

// Send issues an authenticated call. body, when non-nil, is encoded as
// JSON. out, when non-nil, receives the decoded 2xx body.
func (c *Client) Send(ctx context.Context, method, path string, body, out any) Outcome {
	return c.do(ctx, method, path, body, out, true)
}

// SendAnonymous issues a call without consulting the session guard. It is
// only used for session bootstrap (login).
func (c *Client) SendAnonymous(ctx context.Context, method, path string, body, out any) Outcome {
	return c.do(ctx, method, path, body, out, false)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	out any,
	guarded bool,
) Outcome {
	requestID := uuid.NewString()
	entry := c.log.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"request_id": requestID,
	})

	var bodyReader io.Reader
	if body != nil {
		data, err := sonic.ConfigStd.Marshal(body)
		if err != nil {
			// A body we cannot encode never reaches the network.
			entry.WithError(err).Error("encoding request body")
			return Outcome{
				Kind:      NetworkFailure,
				Cause:     fmt.Errorf("marshaling request body: %w", err),
				RequestID: requestID,
			}
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return Outcome{
			Kind:      NetworkFailure,
			Cause:     fmt.Errorf("creating request: %w", err),
			RequestID: requestID,
		}
	}
	req.Header.Set("X-Request-ID", requestID)

	if guarded {
		if err := c.auth.Authorize(req); err != nil {
			entry.Debug("request not dispatched: reauthentication required")
			return Outcome{Kind: Unauthenticated, Cause: err, RequestID: requestID}
		}
	} else {
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		entry.WithError(err).Warn("request failed")
		return Outcome{
			Kind:      NetworkFailure,
			Cause:     fmt.Errorf("executing request %s %s: %w", method, path, err),
			RequestID: requestID,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		entry.WithError(err).Warn("reading response body")
		return Outcome{
			Kind:       NetworkFailure,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("reading response body: %w", err),
			RequestID:  requestID,
		}
	}

	entry = entry.WithFields(logrus.Fields{
		"status":      resp.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	outcome := c.classify(resp.StatusCode, respBody, out)
	outcome.RequestID = requestID

	switch {
	case resp.StatusCode == http.StatusForbidden:
		entry.Warn("access denied (403): credential possibly expired")
	case outcome.Fault():
		entry.WithField("message", outcome.Message).Error("remote fault")
	case outcome.Rejected():
		entry.WithField("message", outcome.Message).Warn("remote rejected request")
	default:
		entry.WithField("outcome", outcome.Kind.String()).Debug("request completed")
	}

	return outcome
}

// classify turns a received response into an Outcome. out may be nil.
func (c *Client) classify(status int, body []byte, out any) Outcome {
	text := strings.TrimSpace(string(body))

	if status < 200 || status >= 300 {
		return Outcome{Kind: Failure, StatusCode: status, Message: failureMessage(body, text)}
	}

	if status == http.StatusNoContent || text == "" {
		return Outcome{Kind: EmptySuccess, StatusCode: status}
	}

	target := out
	if target == nil {
		var discard any
		target = &discard
	}
	if err := sonic.ConfigStd.Unmarshal(body, target); err != nil {
		return Outcome{Kind: RawSuccess, StatusCode: status, Message: text}
	}
	return Outcome{Kind: DecodedSuccess, StatusCode: status}
}

// failureMessage unwraps {"error": "..."} and {"message": "..."} bodies;
// anything else is returned as text.
func failureMessage(body []byte, text string) string {
	var wrapped struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := sonic.ConfigStd.Unmarshal(body, &wrapped); err != nil {
		return text
	}
	switch {
	case wrapped.Error != "":
		return wrapped.Error
	case wrapped.Message != "":
		return wrapped.Message
	}
	return text
}

// IsTimeout reports whether a network outcome was caused by a deadline.
func IsTimeout(o Outcome) bool {
	if o.Kind != NetworkFailure || o.Cause == nil {
		return false
	}
	if errors.Is(o.Cause, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(o.Cause, &te) && te.Timeout()
}
