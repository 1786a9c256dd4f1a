// Package testutil provides testing helpers for bridge routers and other
// HTTP handlers. It does not import the bridge runtime and can be used from
// any package.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/broady/bridge/wire"
)

// RequestBuilder helps construct test HTTP requests with fluent API.
type RequestBuilder struct {
	method  string
	path    string
	body    []byte
	headers map[string]string
}

// NewRequest creates a new request builder for a POST to "/".
func NewRequest() *RequestBuilder {
	return &RequestBuilder{
		method:  http.MethodPost,
		path:    "/",
		headers: make(map[string]string),
	}
}

// NewCall creates a request builder for a call of method on apiType.
func NewCall(apiType, method string) *RequestBuilder {
	return NewRequest().WithAPICall(apiType, method)
}

// GET sets the HTTP method to GET.
func (b *RequestBuilder) GET(path string) *RequestBuilder {
	b.method = http.MethodGet
	b.path = path
	return b
}

// POST sets the HTTP method to POST.
func (b *RequestBuilder) POST(path string) *RequestBuilder {
	b.method = http.MethodPost
	b.path = path
	return b
}

// WithAPICall sets the API-Type and API-Method headers.
func (b *RequestBuilder) WithAPICall(apiType, method string) *RequestBuilder {
	b.headers[wire.HeaderAPIType] = apiType
	b.headers[wire.HeaderAPIMethod] = method
	return b
}

// WithJSON sets the request body as JSON.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, _ := json.Marshal(v)
	b.body = data
	b.headers["Content-Type"] = "application/json"
	return b
}

// WithParams sets a JSON body keyed the way generated clients key
// parameters: by position, with the label appended for labeled ones.
// Labels are given in order; use "" for an unlabeled parameter.
func (b *RequestBuilder) WithParams(labels []string, values ...any) *RequestBuilder {
	payload := make(map[string]any, len(values))
	for i, v := range values {
		label := ""
		if i < len(labels) {
			label = labels[i]
		}
		payload[wire.CodingKey(i, label)] = v
	}
	return b.WithJSON(payload)
}

// WithForm sets the request body as a URL-encoded form.
func (b *RequestBuilder) WithForm(values url.Values) *RequestBuilder {
	b.body = []byte(values.Encode())
	b.headers["Content-Type"] = "application/x-www-form-urlencoded"
	return b
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader adds a header to the request.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// Build creates the HTTP request and ResponseRecorder.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	var req *http.Request
	if len(b.body) > 0 {
		req = httptest.NewRequest(b.method, b.path, bytes.NewReader(b.body))
	} else {
		req = httptest.NewRequest(b.method, b.path, nil)
	}
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req, httptest.NewRecorder()
}

// Serve builds the request and serves it to h.
func (b *RequestBuilder) Serve(h http.Handler) *httptest.ResponseRecorder {
	req, w := b.Build()
	h.ServeHTTP(w, req)
	return w
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	if w.Code != expectedStatus {
		t.Errorf("expected status %d, got %d\nBody: %s", expectedStatus, w.Code, w.Body.String())
	}
}

// AssertJSONResponse decodes the response body and compares it with expected value.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expected any) {
	t.Helper()

	contentType := w.Header().Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", contentType)
	}

	expectedJSON, _ := json.Marshal(expected)

	// Compare as JSON to ignore formatting differences
	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	json.Unmarshal(w.Body.Bytes(), &actualData)

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("response mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}

// AssertJSONError checks that the response carries an error envelope with
// the expected code, and returns the error.
func AssertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedCode string) *wire.ErrorBody {
	t.Helper()

	errBody := wire.DecodeError(w.Body.Bytes())
	if errBody == nil {
		t.Fatalf("expected error envelope\nBody: %s", w.Body.String())
	}
	if errBody.Code != expectedCode {
		t.Errorf("expected error code %s, got %s (message: %s)", expectedCode, errBody.Code, errBody.Message)
	}
	return errBody
}

// AssertHeader checks that a response header has the expected value.
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, expectedValue string) {
	t.Helper()
	actual := w.Header().Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// DecodeJSON decodes the response body into the provided value.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nBody: %s", err, w.Body.String())
	}
}
