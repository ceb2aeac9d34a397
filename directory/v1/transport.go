package v1

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

type Response struct {
	StatusCode int
	Data       []byte
}

// TokenSource returns the bearer token for one request.
type TokenSource func() (string, error)

// Transport handles low-level HTTP and authentication
type Transport struct {
	BaseURL    string
	Token      TokenSource
	HTTPClient *http.Client
}

func NewTransport(baseURL string, token TokenSource) *Transport {
	return &Transport{
		BaseURL:    baseURL,
		Token:      token,
		HTTPClient: &http.Client{},
	}
}

// helper: build full URL with query params
func (t *Transport) buildURL(path string, query map[string]string) (string, error) {
	u, err := url.Parse(t.BaseURL + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get sends a GET request. Non-2xx responses are returned with their status
// code and body, not as errors.
func (t *Transport) Get(ctx context.Context, path string, query map[string]string) (*Response, error) {
	fullURL, err := t.buildURL(path, query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if t.Token != nil {
		token, err := t.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to create bearer token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode, Data: data}, nil
}
