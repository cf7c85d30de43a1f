package octane

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"octane-sdk/internal/config"
	"octane-sdk/internal/logging"
	"octane-sdk/internal/ratelimit"
	"octane-sdk/internal/redact"
)

//go:embed routes.yaml
var defaultRouteDocument []byte

// Client is a route-table driven client for one shared space / workspace
// pair. Operations are addressed by namespace and name against the
// compiled route registry, validated, then dispatched over a cookie-based
// session.
type Client struct {
	baseURL     string
	sharedSpace int64
	workspace   int64
	headers     map[string]string
	auth        config.AuthConfig

	httpClient *http.Client
	logger     *slog.Logger
	redactor   *redact.Redactor
	limiter    *ratelimit.Limiter
	routes     *RouteDefinition

	reauth        singleflight.Group
	mu            sync.Mutex
	authenticated bool
}

// Option customizes client construction.
type Option func(*Client) error

// WithLogger replaces the discard logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithRouteDocument compiles the client's registry from the given
// document instead of the embedded default or the configured file.
func WithRouteDocument(data []byte) Option {
	return func(c *Client) error {
		routes, err := ParseRoutes(data)
		if err != nil {
			return err
		}
		c.routes = routes
		return nil
	}
}

// WithHTTPClient replaces the underlying HTTP client. The replacement
// must carry a cookie jar or the session will not survive sign-in.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.httpClient = hc
		}
		return nil
	}
}

// New builds a client from a validated configuration. The route registry
// comes from, in order of preference: a WithRouteDocument option, the
// configured routes_file, or the embedded default document.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, configErrorf("configuration is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigError{Message: err.Error()}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("octane: cookie jar: %w", err)
	}
	transport := http.DefaultTransport
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, configErrorf("invalid proxy %q: %v", cfg.Proxy, err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	c := &Client{
		baseURL:     cfg.BaseURL(),
		sharedSpace: cfg.SharedSpace,
		workspace:   cfg.Workspace,
		headers:     cfg.Headers,
		auth:        cfg.Auth,
		httpClient: &http.Client{
			Jar:       jar,
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
		logger:   logging.Discard(),
		redactor: redact.New(cfg.Secrets()...),
	}
	if rl := cfg.RateLimit; rl != nil {
		c.limiter = ratelimit.New(rl.RequestsPerMinute, rl.RequestsPerHour)
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.routes == nil {
		doc := defaultRouteDocument
		if cfg.RoutesFile != "" {
			doc, err = os.ReadFile(cfg.RoutesFile)
			if err != nil {
				return nil, configErrorf("read routes file %s: %v", cfg.RoutesFile, err)
			}
		}
		c.routes, err = ParseRoutes(doc)
		if err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Execute runs one named operation: validate the parameters against the
// route's schema, build the request, send it through the session with
// the 401 retry flow, and reshape the response envelope.
func (c *Client) Execute(ctx context.Context, namespace, operation string, params any) (*Result, error) {
	route, ok := c.routes.Lookup(namespace, operation)
	if !ok {
		return nil, configErrorf("unknown operation %s.%s", namespace, operation)
	}
	if !c.isAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	sanitized, err := ParseParams(params, route.Params)
	if err != nil {
		return nil, err
	}
	call := route.clone()
	req, err := c.buildRequest(call, sanitized)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("executing operation",
		"namespace", namespace, "operation", operation,
		"method", req.method, "url", c.redactor.Redact(req.url))

	resp, body, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	accept := call.Accept
	if accept == "" {
		accept = "application/json"
	}
	return reshapeResponse(req.method, accept, resp, body), nil
}

// Namespaces lists the entity namespaces of the compiled registry.
func (c *Client) Namespaces() []string {
	return c.routes.Namespaces()
}

// Operations lists the operations compiled under a namespace.
func (c *Client) Operations(namespace string) []string {
	return c.routes.Operations(namespace)
}

// Describe returns the compiled route for inspection.
func (c *Client) Describe(namespace, operation string) (*Route, bool) {
	route, ok := c.routes.Lookup(namespace, operation)
	if !ok {
		return nil, false
	}
	return route.clone(), true
}
