package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"octane-sdk/internal/config"
	"octane-sdk/internal/logging"
	"octane-sdk/internal/redact"
	"octane-sdk/octane"
)

// RequestHandler owns the session: the cookie jar, the credential pair,
// and the mutex-guarded re-authentication gate. One handler serves all
// requests of one client instance.
type RequestHandler struct {
	baseURL    string
	auth       config.AuthConfig
	httpClient *http.Client
	logger     *slog.Logger
	redactor   *redact.Redactor

	mu         sync.Mutex
	signedIn   bool
	reauthBusy bool
	reauthDone chan struct{}
	reauthErr  error
}

// NewRequestHandler builds a handler from a validated configuration.
func NewRequestHandler(cfg *config.Config, logger *slog.Logger) (*RequestHandler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rest: configuration is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rest: config: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("rest: cookie jar: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &RequestHandler{
		baseURL: cfg.BaseURL(),
		auth:    cfg.Auth,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger:   logger,
		redactor: redact.New(cfg.Secrets()...),
	}, nil
}

// SignIn posts the configured credential pair to the sign-in endpoint and
// keeps the session cookie for subsequent requests.
func (h *RequestHandler) SignIn(ctx context.Context) error {
	if !h.auth.HasCredentials() {
		return fmt.Errorf("rest: no credentials configured for sign-in")
	}
	payload := map[string]string{}
	if h.auth.Username != "" {
		payload["user"] = h.auth.Username
		payload["password"] = h.auth.Password
	} else {
		payload["client_id"] = h.auth.ClientID
		payload["client_secret"] = h.auth.ClientSecret
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("rest: encode credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/authentication/sign_in", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("rest: build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.setSignedIn(false)
		return fmt.Errorf("rest: sign-in request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		h.setSignedIn(false)
		return octane.NewStatusError(resp, respBody)
	}
	h.setSignedIn(true)
	return nil
}

// SignOut ends the session and drops all cookie state. The handler
// returns to the signed-out state even when the server call fails.
func (h *RequestHandler) SignOut(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/authentication/sign_out", nil)
	if err != nil {
		return fmt.Errorf("rest: build sign-out request: %w", err)
	}
	resp, doErr := h.httpClient.Do(req)

	h.setSignedIn(false)
	if jar, jarErr := cookiejar.New(nil); jarErr == nil {
		h.httpClient.Jar = jar
	}

	if doErr != nil {
		return fmt.Errorf("rest: sign-out request: %w", doErr)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return octane.NewStatusError(resp, respBody)
	}
	return nil
}

// Get issues a GET for the given server path.
func (h *RequestHandler) Get(ctx context.Context, path string) ([]byte, error) {
	return h.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON-encoded body.
func (h *RequestHandler) Post(ctx context.Context, path string, body any) ([]byte, error) {
	return h.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT with a JSON-encoded body.
func (h *RequestHandler) Put(ctx context.Context, path string, body any) ([]byte, error) {
	return h.do(ctx, http.MethodPut, path, body)
}

// Delete issues a DELETE for the given server path.
func (h *RequestHandler) Delete(ctx context.Context, path string) ([]byte, error) {
	return h.do(ctx, http.MethodDelete, path, nil)
}

// do sends one request through the session, applying the 401 contract:
// exactly one re-authentication, exactly one replay, second 401 terminal.
func (h *RequestHandler) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if !h.isSignedIn() {
		return nil, octane.ErrNotAuthenticated
	}
	var encoded []byte
	if body != nil {
		var err error
		if encoded, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("rest: encode body: %w", err)
		}
	}

	resp, respBody, err := h.sendOnce(ctx, method, path, encoded)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		h.logger.Debug("session rejected, re-authenticating once", "path", path)
		if reauthErr := h.reauthenticate(ctx); reauthErr != nil {
			h.setSignedIn(false)
			// The caller sees the original chain's 401, not the sign-in
			// failure.
			return nil, octane.NewStatusError(resp, respBody)
		}
		resp, respBody, err = h.sendOnce(ctx, method, path, encoded)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode >= 400 {
		return nil, octane.NewStatusError(resp, respBody)
	}
	return respBody, nil
}

func (h *RequestHandler) sendOnce(ctx context.Context, method, path string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	h.logger.Debug("sending request", "method", method, "path", h.redactor.Redact(path))
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("rest: request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("rest: read response: %w", err)
	}
	return resp, respBody, nil
}

// reauthenticate is the mutex-and-flag single-flight gate: the first 401
// runs the sign-in, concurrent 401s wait for that attempt's outcome
// instead of starting their own.
func (h *RequestHandler) reauthenticate(ctx context.Context) error {
	h.mu.Lock()
	if h.reauthBusy {
		done := h.reauthDone
		h.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		h.mu.Lock()
		err := h.reauthErr
		h.mu.Unlock()
		return err
	}
	h.reauthBusy = true
	h.reauthDone = make(chan struct{})
	h.mu.Unlock()

	err := h.SignIn(ctx)

	h.mu.Lock()
	h.reauthBusy = false
	h.reauthErr = err
	close(h.reauthDone)
	h.mu.Unlock()
	return err
}

func (h *RequestHandler) isSignedIn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.signedIn
}

func (h *RequestHandler) setSignedIn(v bool) {
	h.mu.Lock()
	h.signedIn = v
	h.mu.Unlock()
}
