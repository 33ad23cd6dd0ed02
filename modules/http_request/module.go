// Package http_request provides the http_request task kind: a single HTTP
// call with a status check and optional extraction of JSON fields into
// build properties.
package http_request

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"github.com/vk/buildgrid/internal/ctxlog"
	"github.com/vk/buildgrid/internal/registry"
	"github.com/vk/buildgrid/internal/session"
	"github.com/xhit/go-str2duration/v2"
)

const defaultTimeout = 30 * time.Second

// Module implements the registry.Module interface for this package.
type Module struct {
	// Client is shared by every request the module makes. Nil means a
	// client with default settings.
	Client *resty.Client
	once   sync.Once
}

// Input defines the arguments for the http_request task.
type Input struct {
	URL     string            `hcl:"url"`
	Method  string            `hcl:"method,optional"`
	Headers map[string]string `hcl:"headers,optional"`
	Body    string            `hcl:"body,optional"`
	Timeout string            `hcl:"timeout,optional"`
	// ExpectStatus lists accepted status codes. Empty means any 2xx.
	ExpectStatus []int `hcl:"expect_status,optional"`
	// Extract maps property names to gjson paths evaluated on the response.
	Extract map[string]string `hcl:"extract,optional"`
	// ResponseProperty, when set, receives the raw response body.
	ResponseProperty string `hcl:"response_property,optional"`
}

func (m *Module) client() *resty.Client {
	m.once.Do(func() {
		if m.Client == nil {
			m.Client = resty.New()
		}
	})
	return m.Client
}

// Run performs the request described by input.
func (m *Module) Run(ctx context.Context, sess *session.Session, input *Input) error {
	method := strings.ToUpper(input.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := defaultTimeout
	if input.Timeout != "" {
		d, err := str2duration.ParseDuration(input.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		timeout = d
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := ctxlog.FromContext(ctx).With("method", method, "url", input.URL)
	logger.Info("Making HTTP request.")

	req := m.client().R().SetContext(ctx).SetHeaders(input.Headers)
	if input.Body != "" {
		req.SetBody(input.Body)
	}
	resp, err := req.Execute(method, input.URL)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	logger.Info("Received HTTP response.", "status", resp.StatusCode(), "duration", resp.Time())

	if !statusAccepted(resp.StatusCode(), input.ExpectStatus) {
		return fmt.Errorf("unexpected status %s from %s %s", resp.Status(), method, input.URL)
	}

	body := resp.Body()
	if input.ResponseProperty != "" {
		sess.Props.Put(input.ResponseProperty, string(body))
	}
	if len(input.Extract) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return fmt.Errorf("response from %s is not valid JSON", input.URL)
	}

	names := make([]string, 0, len(input.Extract))
	for name := range input.Extract {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := input.Extract[name]
		result := gjson.GetBytes(body, path)
		if !result.Exists() {
			return fmt.Errorf("path '%s' not found in response from %s", path, input.URL)
		}
		sess.Props.Put(name, result.Value())
	}
	logger.Debug("Extracted response fields.", "properties", names)
	return nil
}

func statusAccepted(code int, expected []int) bool {
	if len(expected) == 0 {
		return code >= 200 && code < 300
	}
	for _, c := range expected {
		if c == code {
			return true
		}
	}
	return false
}

// Register registers the handler with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTask("http_request", registry.Handler("Performs an HTTP request.", m.Run))
}
