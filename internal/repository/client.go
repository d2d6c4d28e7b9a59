package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var ErrUnexpectedStatus = errors.New("unexpected status")

// apiResponse is the envelope both downstream services reply with.
type apiResponse[T any] struct {
	Data       T   `json:"data"`
	StatusCode int `json:"statusCode"`
}

type idsQuery struct {
	IDs any `json:"ids"`
}

type client struct {
	http    *http.Client
	baseURL string
	timeout time.Duration
}

// doJSON sends body as JSON and decodes the envelope's data into T.
// A nil out skips decoding.
func doJSON[T any](ctx context.Context, c client, method, path string, body any, out *T) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json.Marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("http.Do %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: %w: %d", method, path, ErrUnexpectedStatus, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var envelope apiResponse[T]
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	*out = envelope.Data

	return nil
}
