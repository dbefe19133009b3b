// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"resty.dev/v3"
)

// DefaultConnectTimeout bounds dialing and the TLS handshake. It never
// bounds the response body, which may stream for as long as the service
// keeps writing.
const DefaultConnectTimeout = 10 * time.Second

type requestStartKey struct{}

// NewRestyClient returns a resty client shared by the HTTP based
// transports. Requests are logged at debug level once headers arrive.
func NewRestyClient(name string, connectTimeout time.Duration) *resty.Client {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}

	client := resty.New()
	client.SetTransport(&http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	})
	client.AddRequestMiddleware(func(c *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), requestStartKey{}, time.Now()))
		return nil
	})
	client.AddResponseMiddleware(func(c *resty.Client, r *resty.Response) error {
		start, _ := r.Request.Context().Value(requestStartKey{}).(time.Time)
		log.Debug().
			Str("client", name).
			Int("status", r.StatusCode()).
			Str("url", r.Request.URL).
			Dur("latency", time.Since(start)).
			Msg("HTTP client request")
		return nil
	})
	return client
}

// errorFromResponse drains a bounded prefix of a non-2xx body into a
// transport error and closes it.
func errorFromResponse(resp *resty.Response) error {
	status := resp.StatusCode()
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return NewError(status, "unexpected status", nil)
	}
	defer resp.RawResponse.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.RawResponse.Body, 4096))
	msg := "unexpected status"
	if trimmed := strings.TrimSpace(string(body)); trimmed != "" {
		msg += ": " + trimmed
	}
	return NewError(status, msg, nil)
}

// PostStream issues a streaming POST and returns the raw body on a 2xx
// response. Every other outcome is a *Error.
func PostStream(ctx context.Context, client *resty.Client, url string, body any, accept string) (io.ReadCloser, error) {
	req := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept-Encoding", "identity").
		SetBody(body).
		SetDoNotParseResponse(true)
	if accept != "" {
		req.SetHeader("Accept", accept)
	}

	resp, err := req.Post(url)
	if err != nil {
		return nil, NewError(0, "request failed", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, errorFromResponse(resp)
	}
	if resp.RawResponse == nil || resp.RawResponse.Body == nil {
		return nil, NewError(resp.StatusCode(), "empty response body", nil)
	}
	return resp.RawResponse.Body, nil
}
