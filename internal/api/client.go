package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"petal/internal/auth"
)

const (
	defaultHTTPTimeout = 60 * time.Second
	httpTimeoutEnvKey  = "PETAL_HTTP_TIMEOUT"
	pubkeyEnvKey       = "PETAL_PUBKEY"
	adminTokenEnvKey   = "PETAL_ADMIN_TOKEN"
)

// Client is a simple HTTP client for the petal blob API.
type Client struct {
	baseURL    string
	http       *http.Client
	pubkey     string
	adminToken string
	signer     auth.EventSigner
}

// NewClient creates a new API client. The requesting identity and admin
// token are read from the environment.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: httpTimeoutFromEnv()},
		pubkey:     strings.ToLower(strings.TrimSpace(os.Getenv(pubkeyEnvKey))),
		adminToken: strings.TrimSpace(os.Getenv(adminTokenEnvKey)),
		signer:     auth.StaticSigner{},
	}
}

// Ping checks whether the server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

// Upload streams a blob to the server and returns its descriptor.
func (c *Client) Upload(ctx context.Context, r io.Reader, size int64, mediaType string) (BlobDescriptor, error) {
	var descriptor BlobDescriptor

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/upload", r)
	if err != nil {
		return descriptor, err
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if mediaType != "" {
		req.Header.Set("Content-Type", mediaType)
	}
	if err := c.setAuthHeader(req); err != nil {
		return descriptor, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return descriptor, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return descriptor, decodeError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&descriptor)
	return descriptor, err
}

// List returns the descriptors of all blobs owned by pubkey.
func (c *Client) List(ctx context.Context, pubkey string) ([]BlobDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list/"+strings.ToLower(pubkey), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var descriptors []BlobDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&descriptors); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// Download streams a blob's bytes to w and returns its declared media type.
func (c *Client) Download(ctx context.Context, hash string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+hash, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

// Delete removes a blob the requesting identity owns.
func (c *Client) Delete(ctx context.Context, hash string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/"+hash, nil)
	if err != nil {
		return err
	}
	if err := c.setAuthHeader(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

// Prune asks the server to sweep expired blobs. Requires the admin token.
func (c *Client) Prune(ctx context.Context) (PruneResult, error) {
	var result PruneResult

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/admin/prune", nil)
	if err != nil {
		return result, err
	}
	if c.adminToken != "" {
		req.Header.Set("X-Admin-Token", c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return result, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return result, decodeError(resp)
	}
	err = json.NewDecoder(resp.Body).Decode(&result)
	return result, err
}

func (c *Client) setAuthHeader(req *http.Request) error {
	if c.pubkey == "" {
		return fmt.Errorf("no identity configured: set %s", pubkeyEnvKey)
	}
	ev := auth.NewEvent(c.pubkey, time.Now())
	if err := c.signer.Sign(ev); err != nil {
		return fmt.Errorf("sign authorization event: %w", err)
	}
	header, err := ev.Encode()
	if err != nil {
		return fmt.Errorf("encode authorization event: %w", err)
	}
	req.Header.Set("Authorization", header)
	return nil
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		if errResp.Code != "" {
			return fmt.Errorf("%s: %s", errResp.Code, errResp.Error)
		}
		return fmt.Errorf("%s", errResp.Error)
	}
	return fmt.Errorf("api error: %s", resp.Status)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
