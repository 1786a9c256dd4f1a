// Package client is the runtime of generated client code.
//
// Generated code wraps every API definition in a struct whose methods
// build a call payload and pass it to Perform:
//
//	greeter := api.NewGreeter(client.BaseRequest{URL: "https://example.com/api"}, nil)
//	msg, err := greeter.Greet(ctx, "Ada")
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/broady/bridge/observability"
	"github.com/broady/bridge/wire"
)

// maxErrorBody bounds how much of a failed response is read.
const maxErrorBody = 64 << 10

// BaseRequest describes where and how calls are sent. Every call is a POST
// to URL carrying Header in addition to the API call headers.
type BaseRequest struct {
	URL    string
	Header http.Header
}

// Call is a generated call payload.
type Call interface {
	APIType() string
	APIMethod() string
}

// Client performs API calls over HTTP.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	observer   observability.CallObserver
}

// New returns a Client using http.DefaultClient.
func New() *Client {
	return &Client{
		httpClient: http.DefaultClient,
		observer:   observability.NoopCallObserver,
	}
}

// Shared is used by generated API structs created without a Client.
var Shared = New()

// WithHTTPClient sets the HTTP client calls are sent with.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	c.httpClient = hc
	return c
}

// WithLogger sets a custom logger for the client.
// If not set, slog.Default() will be used.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithObserver sets the receiver of call metrics.
func (c *Client) WithObserver(obs observability.CallObserver) *Client {
	if obs == nil {
		obs = observability.NoopCallObserver
	}
	c.observer = obs
	return c
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.Default()
	}
	return c.logger
}

// Error is a call that reached the server and failed there.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bridge: HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bridge: %s: %s", e.Code, e.Message)
}

// Perform sends call and decodes the result as R. A nil c uses Shared.
// Failures reported by the server are returned as *Error.
func Perform[R any](ctx context.Context, c *Client, base BaseRequest, call Call) (R, error) {
	if c == nil {
		c = Shared
	}
	apiType := call.APIType()
	start := time.Now()

	var out R
	result, err := c.perform(ctx, base, call, &out)
	c.observer.Call(apiType, result, time.Since(start))
	if err != nil {
		c.log().DebugContext(ctx, "API call failed",
			slog.String("api_type", apiType),
			slog.String("method", call.APIMethod()),
			slog.Any("error", err))
		var zero R
		return zero, err
	}
	return out, nil
}

func (c *Client) perform(ctx context.Context, base BaseRequest, call Call, out any) (observability.CallResult, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return observability.CallResultTransportError, fmt.Errorf("encode %s.%s: %w", call.APIType(), call.APIMethod(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.URL, bytes.NewReader(body))
	if err != nil {
		return observability.CallResultTransportError, fmt.Errorf("create request: %w", err)
	}
	for k, v := range base.Header {
		req.Header[k] = append([]string(nil), v...)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(wire.HeaderAPIType, call.APIType())
	req.Header.Set(wire.HeaderAPIMethod, call.APIMethod())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return observability.CallResultCanceled, err
		}
		return observability.CallResultTransportError, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return observability.CallResultRemoteError, remoteError(resp)
	}
	if resp.StatusCode == http.StatusNoContent {
		return observability.CallResultOK, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return observability.CallResultDecodeError, fmt.Errorf("decode result of %s.%s: %w", call.APIType(), call.APIMethod(), err)
	}
	return observability.CallResultOK, nil
}

func remoteError(resp *http.Response) *Error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &Error{StatusCode: resp.StatusCode}
	if body := wire.DecodeError(data); body != nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		apiErr.Details = body.Details
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
