// Package neynar is a minimal client for the two Neynar endpoints the
// scheduler needs: signer lookup at sign-in and cast publishing.
package neynar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SignerApproved is the status of a signer allowed to write on behalf of its fid.
const SignerApproved = "approved"

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 4 << 10

// Signer is the subset of the signer object the bridge checks.
type Signer struct {
	SignerUUID string `json:"signer_uuid"`
	FID        uint64 `json:"fid"`
	Status     string `json:"status"`
}

// Embed attaches a URL, such as an image, to a cast.
type Embed struct {
	URL string `json:"url"`
}

// CastRequest is the body of POST /v2/farcaster/cast.
type CastRequest struct {
	SignerUUID string  `json:"signer_uuid"`
	Text       string  `json:"text"`
	Embeds     []Embed `json:"embeds,omitempty"`
}

// CastResult is what Neynar returns for a published cast.
type CastResult struct {
	Success bool `json:"success"`
	Cast    struct {
		Hash string `json:"hash"`
	} `json:"cast"`
}

// APIError is a non-2xx answer.  Body is truncated.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("neynar: %d %s", e.Status, e.Body)
}

// Client talks to the Neynar v2 API with an API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// LookupSigner fetches the signer identified by signerUUID.
func (c *Client) LookupSigner(ctx context.Context, signerUUID string) (Signer, error) {
	u := c.baseURL + "/v2/farcaster/signer?" + url.Values{"signer_uuid": {signerUUID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Signer{}, err
	}
	var s Signer
	if err := c.do(req, &s); err != nil {
		return Signer{}, err
	}
	return s, nil
}

// PublishCast posts text, and optional embeds, as the signer's user.
func (c *Client) PublishCast(ctx context.Context, cast CastRequest) (CastResult, error) {
	body, err := json.Marshal(cast)
	if err != nil {
		return CastResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/farcaster/cast", bytes.NewReader(body))
	if err != nil {
		return CastResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var res CastResult
	if err := c.do(req, &res); err != nil {
		return CastResult{}, err
	}
	return res, nil
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", req.URL.Path, err)
	}
	return nil
}
