// Package httpstream sources events from a line-delimited JSON HTTP stream
// and resolves labels through a batched lookup endpoint. It can optionally
// manage server-side filter rules before the stream opens.
package httpstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"labelstream/internal/logger"
	"labelstream/pkg/models"
)

// Rule is one server-side filter rule.
type Rule struct {
	Value string `json:"value"`
	Tag   string `json:"tag,omitempty"`
}

// Config configures the HTTP connector.
type Config struct {
	// StreamURL serves the unbounded event stream, one JSON object per
	// line. LookupURL resolves labels for a comma-joined ids parameter and
	// answers with a JSON object mapping id to label.
	StreamURL string
	LookupURL string

	// RulesURL, when set, is the rule management endpoint: existing rules
	// are deleted and Rules installed before the stream opens.
	RulesURL string
	Rules    []Rule

	// Headers are attached to every request (typically Authorization).
	Headers map[string]string

	// Timeout bounds lookup and rule requests. The stream request itself
	// has no deadline.
	Timeout time.Duration
}

// Connector implements the source connector over HTTP.
type Connector struct {
	cfg     Config
	lookup  *http.Client
	stream  *http.Client
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// maxLineSize bounds a single streamed event payload.
const maxLineSize = 1 << 20

// New creates an HTTP connector. The event stream is opened lazily on the
// first Next call.
func New(cfg Config) (*Connector, error) {
	if cfg.StreamURL == "" {
		return nil, fmt.Errorf("stream URL is empty")
	}
	if cfg.LookupURL == "" {
		return nil, fmt.Errorf("lookup URL is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Connector{
		cfg:    cfg,
		lookup: &http.Client{Timeout: timeout},
		stream: &http.Client{},
	}, nil
}

// SetupRules replaces the server-side filter rules with the configured
// set. It is a no-op when no rules endpoint is configured.
func (c *Connector) SetupRules(ctx context.Context) error {
	if c.cfg.RulesURL == "" {
		return nil
	}

	existing, err := c.getRules(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		if err := c.deleteRules(ctx, existing); err != nil {
			return err
		}
	}
	if len(c.cfg.Rules) == 0 {
		return nil
	}
	return c.addRules(ctx)
}

type ruleListResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Connector) getRules(ctx context.Context) ([]string, error) {
	body, status, err := c.do(ctx, http.MethodGet, c.cfg.RulesURL, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("cannot get rules (HTTP %d): %s", status, body)
	}

	var parsed ruleListResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("malformed rule list: %w", err)
	}
	ids := make([]string, 0, len(parsed.Data))
	for _, r := range parsed.Data {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (c *Connector) deleteRules(ctx context.Context, ids []string) error {
	payload := map[string]interface{}{"delete": map[string]interface{}{"ids": ids}}
	body, status, err := c.do(ctx, http.MethodPost, c.cfg.RulesURL, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("cannot delete rules (HTTP %d): %s", status, body)
	}
	logger.Debugf("Deleted %d stream rules", len(ids))
	return nil
}

func (c *Connector) addRules(ctx context.Context) error {
	payload := map[string]interface{}{"add": c.cfg.Rules}
	body, status, err := c.do(ctx, http.MethodPost, c.cfg.RulesURL, payload)
	if err != nil {
		return err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return fmt.Errorf("cannot add rules (HTTP %d): %s", status, body)
	}
	logger.Infof("Installed %d stream rules", len(c.cfg.Rules))
	return nil
}

// Next returns the next event from the stream, opening it on first use.
// Blank keep-alive lines are skipped; a cleanly closed stream ends with
// io.EOF.
func (c *Connector) Next(ctx context.Context) (models.Features, error) {
	if c.scanner == nil {
		if err := c.open(ctx); err != nil {
			return nil, err
		}
	}

	for c.scanner.Scan() {
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var x models.Features
		if err := json.Unmarshal(line, &x); err != nil {
			return nil, fmt.Errorf("malformed stream event: %w", err)
		}
		return x, nil
	}
	if err := c.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, io.EOF
}

func (c *Connector) open(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.StreamURL, nil)
	if err != nil {
		return err
	}
	c.applyHeaders(req)

	resp, err := c.stream.Do(req)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
		resp.Body.Close()
		return fmt.Errorf("cannot open stream (HTTP %d): %s", resp.StatusCode, body)
	}

	c.body = resp.Body
	c.scanner = bufio.NewScanner(resp.Body)
	c.scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	logger.Infof("Event stream opened: %s", c.cfg.StreamURL)
	return nil
}

// FetchLabels asks the lookup endpoint for a batch of ids. The response is
// a JSON object mapping id to label; absent ids have no label available.
func (c *Connector) FetchLabels(ctx context.Context, ids []string) (map[string]interface{}, error) {
	if len(ids) == 0 {
		return map[string]interface{}{}, nil
	}

	u, err := url.Parse(c.cfg.LookupURL)
	if err != nil {
		return nil, fmt.Errorf("lookup URL: %w", err)
	}
	q := u.Query()
	q.Set("ids", strings.Join(ids, ","))
	u.RawQuery = q.Encode()

	body, status, err := c.do(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("cannot fetch labels (HTTP %d): %s", status, body)
	}

	var labels map[string]interface{}
	if err := json.Unmarshal(body, &labels); err != nil {
		return nil, fmt.Errorf("malformed label response: %w", err)
	}
	return labels, nil
}

func (c *Connector) do(ctx context.Context, method, rawURL string, payload interface{}) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.applyHeaders(req)

	resp, err := c.lookup.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLineSize))
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (c *Connector) applyHeaders(req *http.Request) {
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}
}

// Close closes the open stream, if any.
func (c *Connector) Close() error {
	if c.body != nil {
		return c.body.Close()
	}
	return nil
}
