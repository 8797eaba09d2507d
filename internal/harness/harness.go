package harness

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/labctl/internal/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// Outcome kinds, also used as metric labels.
const (
	KindSuccess     = "success"
	KindRequest     = "request_error"
	KindExpectation = "expectation_error"
	KindDecode      = "decode_error"
	KindTransport   = "transport_error"
	KindBuild       = "build_error"
)

// Outcome is the single result of running one check.
type Outcome struct {
	Name       string
	Label      string
	URL        string
	RequestID  string
	StatusCode int
	Body       json.RawMessage
	Duration   time.Duration
	Kind       string
	Err        error
}

func (o Outcome) OK() bool {
	return o.Err == nil
}

// Option customizes a Harness.
type Option func(*Harness)

// WithHTTPClient replaces the default client. Its timeout is left untouched.
func WithHTTPClient(client *http.Client) Option {
	return func(h *Harness) {
		h.client = client
	}
}

// WithOutput directs operator-facing progress lines to w.
func WithOutput(w io.Writer) Option {
	return func(h *Harness) {
		h.out = w
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// Harness runs checks against one base URL.
type Harness struct {
	base   *url.URL
	client *http.Client
	out    io.Writer
	logger zerolog.Logger
}

func New(cfg Config, opts ...Option) (*Harness, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must be http or https", ErrInvalidURL, raw)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("%w: %q missing host", ErrInvalidURL, raw)
	}

	h := &Harness{
		base:   base,
		client: &http.Client{Timeout: cfg.Timeout},
		out:    io.Discard,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Endpoint resolves a check path against the base URL.
func (h *Harness) Endpoint(path string) string {
	return h.base.JoinPath(path).String()
}

// Run executes checks in order. Every check runs regardless of earlier
// outcomes, and exactly one outcome is returned per check.
func (h *Harness) Run(ctx context.Context, checks []Check) ([]Outcome, error) {
	if len(checks) == 0 {
		return nil, ErrNoChecks
	}
	outcomes := make([]Outcome, 0, len(checks))
	for i, check := range checks {
		if i > 0 {
			fmt.Fprintln(h.out)
		}
		fmt.Fprintf(h.out, "Testing %s Endpoint...\n", check.DisplayLabel())
		outcome := h.Verify(ctx, check)
		writeOutcome(h.out, outcome)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// Verify sends one check and classifies the result. It never panics or
// returns an error of its own: failures live on the Outcome.
func (h *Harness) Verify(ctx context.Context, check Check) Outcome {
	outcome := Outcome{
		Name:      check.Name,
		Label:     check.DisplayLabel(),
		URL:       h.Endpoint(check.Path),
		RequestID: uuid.NewString(),
	}
	start := time.Now()
	status, body, kind, err := h.exchange(ctx, check, outcome.URL, outcome.RequestID)
	outcome.StatusCode = status
	outcome.Body = body
	outcome.Kind = kind
	outcome.Err = err
	outcome.Duration = time.Since(start)
	observability.RecordCheck(outcome.Name, outcome.Kind, outcome.StatusCode, outcome.Duration)

	event := h.logger.Info()
	if err != nil {
		event = h.logger.Error().Err(err)
	}
	event.
		Str("check", outcome.Name).
		Str("url", outcome.URL).
		Str("request_id", outcome.RequestID).
		Int("status", outcome.StatusCode).
		Str("outcome", outcome.Kind).
		Dur("duration", outcome.Duration).
		Msg("harness.check")
	return outcome
}

func (h *Harness) exchange(ctx context.Context, check Check, endpoint, requestID string) (int, json.RawMessage, string, error) {
	if err := check.Validate(); err != nil {
		return 0, nil, KindBuild, err
	}
	contentType, payload, err := encodeMultipart(check)
	if err != nil {
		return 0, nil, KindBuild, err
	}

	req, err := http.NewRequestWithContext(ctx, check.method(), endpoint, payload)
	if err != nil {
		return 0, nil, KindBuild, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set(observability.RequestIDHeader, requestID)

	resp, err := h.client.Do(req)
	if err != nil {
		return 0, nil, KindTransport, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, KindTransport, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, KindRequest, &RequestError{StatusCode: resp.StatusCode, Body: snippet(body)}
	}
	if !json.Valid(body) {
		return resp.StatusCode, nil, KindDecode, fmt.Errorf("decode response: invalid json body=%q", snippet(body))
	}
	if missing := missingPaths(body, check.Expect); len(missing) > 0 {
		return resp.StatusCode, body, KindExpectation, &ExpectationError{Missing: missing}
	}
	return resp.StatusCode, body, KindSuccess, nil
}

func missingPaths(body []byte, paths []string) []string {
	var missing []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		if !gjson.GetBytes(body, path).Exists() {
			missing = append(missing, path)
		}
	}
	return missing
}

func writeOutcome(w io.Writer, o Outcome) {
	if o.Err != nil {
		fmt.Fprintf(w, "Error: %v\n", o.Err)
		return
	}
	fmt.Fprintf(w, "Success! %s Response:\n", o.Label)
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, o.Body, "", "  "); err != nil {
		fmt.Fprintf(w, "%s\n", o.Body)
		return
	}
	fmt.Fprintf(w, "%s\n", pretty.Bytes())
}

// WriteSummary prints a one-line tally of the run.
func WriteSummary(w io.Writer, outcomes []Outcome) {
	passed := 0
	var failed []string
	for _, o := range outcomes {
		if o.OK() {
			passed++
			continue
		}
		failed = append(failed, o.Name)
	}
	fmt.Fprintf(w, "\nSummary: %d passed, %d failed", passed, len(failed))
	if len(failed) > 0 {
		fmt.Fprintf(w, " (%s)", strings.Join(failed, ", "))
	}
	fmt.Fprintln(w)
}

// IsRequestError reports the HTTP status when err is a RequestError.
func IsRequestError(err error) (int, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode, true
	}
	return 0, false
}
