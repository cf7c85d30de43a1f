package octane

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
)

const (
	signInPath  = "/authentication/sign_in"
	signOutPath = "/authentication/sign_out"
)

// Authenticate performs the sign-in handshake: it posts whichever
// credential pair is configured and keeps the session cookie in the
// client's jar for all subsequent requests.
func (c *Client) Authenticate(ctx context.Context) error {
	if !c.auth.HasCredentials() {
		return configErrorf("no credentials configured for sign-in")
	}

	payload := map[string]string{}
	if c.auth.Username != "" {
		payload["user"] = c.auth.Username
		payload["password"] = c.auth.Password
	} else {
		payload["client_id"] = c.auth.ClientID
		payload["client_secret"] = c.auth.ClientSecret
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("octane: encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signInPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("octane: build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("signing in", "url", c.baseURL+signInPath)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.setAuthenticated(false)
		return fmt.Errorf("octane: sign-in request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.setAuthenticated(false)
		return NewStatusError(resp, respBody)
	}
	c.setAuthenticated(true)
	c.logger.Debug("signed in")
	return nil
}

// SignOut ends the session and clears all session state. The client
// returns to the unauthenticated state even if the server call fails.
func (c *Client) SignOut(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+signOutPath, nil)
	if err != nil {
		return fmt.Errorf("octane: build sign-out request: %w", err)
	}
	resp, doErr := c.httpClient.Do(req)

	c.setAuthenticated(false)
	if jar, jarErr := cookiejar.New(nil); jarErr == nil {
		c.httpClient.Jar = jar
	}

	if doErr != nil {
		return fmt.Errorf("octane: sign-out request: %w", doErr)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return NewStatusError(resp, respBody)
	}
	return nil
}

// send issues a wire request and handles the 401 retry flow: exactly one
// re-authentication attempt per failing request chain, shared across
// concurrent callers through a single-flight group, then exactly one
// replay. A second consecutive 401 is terminal.
func (c *Client) send(ctx context.Context, req *wireRequest) (*http.Response, []byte, error) {
	resp, body, err := c.doOnce(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.logger.Debug("session rejected, re-authenticating once", "url", c.redactor.Redact(req.url))
		if _, reauthErr, _ := c.reauth.Do("reauthenticate", func() (any, error) {
			return nil, c.Authenticate(ctx)
		}); reauthErr != nil {
			c.setAuthenticated(false)
			// Surface the original chain's 401, not the re-auth failure.
			return nil, nil, NewStatusError(resp, body)
		}
		resp, body, err = c.doOnce(ctx, req)
		if err != nil {
			return nil, nil, err
		}
	}
	if resp.StatusCode >= 400 {
		return nil, nil, NewStatusError(resp, body)
	}
	return resp, body, nil
}

func (c *Client) doOnce(ctx context.Context, req *wireRequest) (*http.Response, []byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.method, req.url, bytes.NewReader(req.body))
	if err != nil {
		return nil, nil, fmt.Errorf("octane: build request: %w", err)
	}
	for name, vals := range req.header {
		for _, v := range vals {
			httpReq.Header.Add(name, v)
		}
	}
	c.logger.Debug("sending request", "method", req.method, "url", c.redactor.Redact(req.url))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, nil, fmt.Errorf("octane: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("octane: read response: %w", err)
	}
	c.logger.Debug("response received", "status", resp.StatusCode, "bytes", len(body))
	return resp, body, nil
}

func (c *Client) isAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *Client) setAuthenticated(v bool) {
	c.mu.Lock()
	c.authenticated = v
	c.mu.Unlock()
}
