// Package api is the HTTP client for the plantgate gateway.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/dmitrijs2005/plantgate/internal/common"
	"github.com/dmitrijs2005/plantgate/internal/cryptox"
)

const maxResponseBytes = 1 << 20

// Error is a non-2xx answer from the gateway.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

type IngestResult struct {
	Status string `json:"status"`
	ID     string `json:"id"`
	Size   int64  `json:"size"`
}

// Record is one stored upload as listed by the admin API.
type Record struct {
	ID        string          `json:"id"`
	DataType  string          `json:"data_type"`
	IPAddress string          `json:"ip_address"`
	Size      int64           `json:"size"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	BlobKey   string          `json:"blob_key,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Client struct {
	baseURL string
	http    *http.Client

	// retries bounds re-sends of idempotent requests after transport
	// errors or 5xx answers.
	retries    uint64
	newBackOff func() backoff.BackOff
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		retries: 3,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

type request struct {
	method string
	path   string
	header http.Header
	body   []byte
	retry  bool
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, bytes.NewReader(r.body))
		if err != nil {
			return backoff.Permanent(err)
		}
		for k, v := range r.header {
			req.Header[k] = v
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &Error{Status: resp.StatusCode, Message: gjson.GetBytes(data, "error").String()}
			if resp.StatusCode >= http.StatusInternalServerError {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	var retries uint64
	if r.retry {
		retries = c.retries
	}
	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), retries), ctx)
	return backoff.Retry(op, b)
}

func jsonRequest(method, path string, v any, retry bool) (request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return request{}, err
	}
	return request{
		method: method,
		path:   path,
		header: http.Header{"Content-Type": {"application/json"}},
		body:   body,
		retry:  retry,
	}, nil
}

func bearer(h http.Header, token string) http.Header {
	if h == nil {
		h = http.Header{}
	}
	h.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	return h
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// LoginPlant exchanges plant credentials for a session token.
func (c *Client) LoginPlant(ctx context.Context, email, password string) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/plant/login", map[string]string{"email": email, "password": password}, true)
	if err != nil {
		return "", err
	}
	var resp tokenResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// LoginAdmin exchanges admin credentials for an admin token.
func (c *Client) LoginAdmin(ctx context.Context, username, password string) (string, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, true)
	if err != nil {
		return "", err
	}
	var resp tokenResponse
	if err := c.do(ctx, req, &resp); err != nil {
		return "", err
	}
	return resp.AccessToken, nil
}

// PlantRecords lists a plant's newest records. It needs an admin token.
// A limit of zero leaves the page size to the server.
func (c *Client) PlantRecords(ctx context.Context, token, email string, limit int) ([]Record, error) {
	path := "/admin/plants/" + url.PathEscape(email) + "/records"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	var resp struct {
		Records []Record `json:"records"`
	}
	req := request{method: http.MethodGet, path: path, header: bearer(nil, token), retry: true}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// PublicKey fetches the gateway's PEM public key.
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/public-key", retry: true}, &resp); err != nil {
		return "", err
	}
	if _, err := cryptox.ParsePublicKeyPEM(resp.PublicKey); err != nil {
		return "", fmt.Errorf("server public key: %w", err)
	}
	return resp.PublicKey, nil
}

// Ingest uploads env as base64 JSON. Uploads are never retried.
func (c *Client) Ingest(ctx context.Context, token, email, dataType string, env *cryptox.Envelope) (*IngestResult, error) {
	encKey, iv, ciphertext := env.Encode()
	req, err := jsonRequest(http.MethodPost, "/api/ingest", map[string]string{
		"plant_email":   email,
		"data_type":     dataType,
		"encrypted_key": encKey,
		"iv":            iv,
		"ciphertext":    ciphertext,
	}, false)
	if err != nil {
		return nil, err
	}
	req.header = bearer(req.header, token)

	var res IngestResult
	if err := c.do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// IngestRaw uploads the ciphertext as the request body, with the wrapped
// key and nonce in headers.
func (c *Client) IngestRaw(ctx context.Context, token, email, dataType string, env *cryptox.Envelope) (*IngestResult, error) {
	encKey, iv, _ := env.Encode()
	h := http.Header{}
	h.Set("Content-Type", "application/octet-stream")
	h.Set("X-Plant-Email", email)
	h.Set("X-Data-Type", dataType)
	h.Set("X-Encrypted-Key", encKey)
	h.Set("X-IV", iv)

	req := request{
		method: http.MethodPost,
		path:   "/api/ingest/raw",
		header: bearer(h, token),
		body:   env.Ciphertext,
	}

	var res IngestResult
	if err := c.do(ctx, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Seal encrypts payload under the PEM public key.
func Seal(publicPEM string, payload []byte) (*cryptox.Envelope, error) {
	pub, err := cryptox.ParsePublicKeyPEM(publicPEM)
	if err != nil {
		return nil, err
	}
	env, err := cryptox.Seal(pub, payload)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return env, nil
}
