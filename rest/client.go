package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"octane-sdk/internal/config"
	"octane-sdk/query"
)

// Client is the URL-builder façade: generic CRUD over any entity
// collection, with request shaping expressed through ListOptions instead
// of a route table.
type Client struct {
	handler *RequestHandler

	// The builder is single-use: each call shapes it, builds, and the
	// build resets it. The mutex keeps one in-flight request as its
	// exclusive owner.
	buildMu sync.Mutex
	builder *URLBuilder
}

// ListOptions shapes a collection request.
type ListOptions struct {
	Limit       int
	Offset      int
	HasOffset   bool
	Fields      []string
	OrderBy     []string
	Query       *query.Query
	QueryString string
}

// ListResult is an unwrapped {total_count, data} collection response.
type ListResult struct {
	TotalCount int64
	Data       []any
}

// NewClient builds a REST client from a validated configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	handler, err := NewRequestHandler(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		handler: handler,
		builder: NewURLBuilder(cfg.SharedSpace, cfg.Workspace),
	}, nil
}

// SignIn establishes the session.
func (c *Client) SignIn(ctx context.Context) error {
	return c.handler.SignIn(ctx)
}

// SignOut ends the session.
func (c *Client) SignOut(ctx context.Context) error {
	return c.handler.SignOut(ctx)
}

// GetAll lists a collection, unwrapping the {total_count, data} envelope.
func (c *Client) GetAll(ctx context.Context, entity string, opts ListOptions) (*ListResult, error) {
	c.buildMu.Lock()
	b := c.builder.Entity(entity)
	if opts.QueryString != "" {
		b.QueryString(opts.QueryString)
	}
	if len(opts.Fields) > 0 {
		b.Fields(opts.Fields...)
	}
	if opts.Limit > 0 {
		b.Limit(opts.Limit)
	}
	if opts.HasOffset {
		b.Offset(opts.Offset)
	}
	if opts.Query != nil {
		b.Query(opts.Query)
	}
	if len(opts.OrderBy) > 0 {
		b.OrderBy(opts.OrderBy...)
	}
	path, err := b.Build()
	c.buildMu.Unlock()
	if err != nil {
		return nil, err
	}

	body, err := c.handler.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	var envelope struct {
		TotalCount int64 `json:"total_count"`
		Data       []any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("rest: decode list response: %w", err)
	}
	return &ListResult{TotalCount: envelope.TotalCount, Data: envelope.Data}, nil
}

// Get fetches one entity by id.
func (c *Client) Get(ctx context.Context, entity string, id any, fields ...string) (map[string]any, error) {
	c.buildMu.Lock()
	b := c.builder.Entity(entity).At(id)
	if len(fields) > 0 {
		b.Fields(fields...)
	}
	path, err := b.Build()
	c.buildMu.Unlock()
	if err != nil {
		return nil, err
	}
	body, err := c.handler.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// Create posts one entity, unwrapping the singleton {data:[one]} response.
func (c *Client) Create(ctx context.Context, entity string, fields map[string]any) (map[string]any, error) {
	c.buildMu.Lock()
	path, err := c.builder.Entity(entity).Build()
	c.buildMu.Unlock()
	if err != nil {
		return nil, err
	}
	body, err := c.handler.Post(ctx, path, map[string]any{"data": []any{fields}})
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) == 1 {
		return envelope.Data[0], nil
	}
	return decodeObject(body)
}

// Update puts changed fields onto one entity by id.
func (c *Client) Update(ctx context.Context, entity string, id any, fields map[string]any) (map[string]any, error) {
	c.buildMu.Lock()
	path, err := c.builder.Entity(entity).At(id).Build()
	c.buildMu.Unlock()
	if err != nil {
		return nil, err
	}
	body, err := c.handler.Put(ctx, path, fields)
	if err != nil {
		return nil, err
	}
	return decodeObject(body)
}

// Delete removes one entity by id.
func (c *Client) Delete(ctx context.Context, entity string, id any) error {
	c.buildMu.Lock()
	path, err := c.builder.Entity(entity).At(id).Build()
	c.buildMu.Unlock()
	if err != nil {
		return err
	}
	_, err = c.handler.Delete(ctx, path)
	return err
}

func decodeObject(body []byte) (map[string]any, error) {
	if len(body) == 0 {
		return nil, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("rest: decode response: %w", err)
	}
	return obj, nil
}
