package bridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/broady/bridge/observability"
	"github.com/broady/bridge/testutil"
)

type greeterFixture struct {
	router  *Router
	handler http.Handler
	logs    *bytes.Buffer
	invoked *atomic.Int32
}

func newGreeterFixture(t *testing.T, configure func(*Router, *Registration[*greeter])) *greeterFixture {
	t.Helper()
	f := &greeterFixture{logs: new(bytes.Buffer), invoked: new(atomic.Int32)}
	reg := newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		return &greeter{prefix: "Hello, ", invoked: f.invoked}, nil
	})
	f.router = NewRouter().WithLogger(slog.New(slog.NewTextHandler(f.logs, nil)))
	if configure != nil {
		configure(f.router, reg)
	}
	if err := f.router.Register(reg); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	f.handler = f.router.Handler()
	return f
}

func TestRouter_Greet(t *testing.T) {
	f := newGreeterFixture(t, nil)

	req, w := testutil.NewCall("Greeter", "Greet(name: string) -> string").
		WithBody(`{"0_name":"Ada"}`).
		Build()
	f.handler.ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "Content-Type", "application/json")
	if got := w.Body.String(); got != `"Hello, Ada!"` {
		t.Errorf("expected body %q, got %q", `"Hello, Ada!"`, got)
	}
}

func TestRouter_VoidReturnsZero(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
	if got := w.Body.String(); got != "0" {
		t.Errorf("expected body 0, got %q", got)
	}
	if got := f.invoked.Load(); got != 1 {
		t.Errorf("expected 1 invocation, got %d", got)
	}
}

func TestRouter_EmptyBody(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Touch() -> Void").Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestRouter_Variadic(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Sum(nums: ...int) -> int").
		WithParams([]string{"nums"}, []int{1, 2, 3}).
		Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, 6)
}

func TestRouter_FormBody(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Greet(name: string) -> string").
		WithForm(url.Values{"0_name": {"Grace"}}).
		Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, "Hello, Grace!")
}

func TestRouter_ClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		build      func() *testutil.RequestBuilder
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing API type",
			build:      func() *testutil.RequestBuilder { return testutil.NewRequest().WithBody("{}") },
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "unknown API type",
			build: func() *testutil.RequestBuilder {
				return testutil.NewCall("Stranger", "Greet(name: string) -> string").WithBody(`{"0_name":"Ada"}`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "missing API method",
			build: func() *testutil.RequestBuilder {
				return testutil.NewRequest().WithHeader("API-Type", "Greeter").WithBody("{}")
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "malformed body",
			build: func() *testutil.RequestBuilder {
				return testutil.NewCall("Greeter", "Greet(name: string) -> string").WithBody(`{"0_name":`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "wrong parameter type",
			build: func() *testutil.RequestBuilder {
				return testutil.NewCall("Greeter", "Greet(name: string) -> string").WithBody(`{"0_name":7}`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "validation failure",
			build: func() *testutil.RequestBuilder {
				return testutil.NewCall("Greeter", "Signup(s: signup) -> int").
					WithBody(`{"0_s":{"email":"not-an-email","age":30}}`)
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name: "GET",
			build: func() *testutil.RequestBuilder {
				return testutil.NewCall("Greeter", "Touch() -> Void").GET("/")
			},
			wantStatus: http.StatusMethodNotAllowed,
			wantCode:   "method_not_allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGreeterFixture(t, nil)
			w := tt.build().Serve(f.handler)

			testutil.AssertStatus(t, w, tt.wantStatus)
			testutil.AssertJSONError(t, w, tt.wantCode)
			if got := f.invoked.Load(); got != 0 {
				t.Errorf("expected no invocation, got %d", got)
			}
		})
	}
}

func TestRouter_UnknownMethodIsLogged(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Greet(name: String) -> String").
		WithBody(`{"0_name":"Ada"}`).
		Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusBadRequest)
	testutil.AssertJSONError(t, w, "invalid_argument")
	if got := f.invoked.Load(); got != 0 {
		t.Errorf("expected no invocation, got %d", got)
	}
	logs := f.logs.String()
	if !strings.Contains(logs, "API method call not found; generated code may be out of date") {
		t.Errorf("expected diagnostic log, got %q", logs)
	}
	if !strings.Contains(logs, "Greet(name: String) -> String") {
		t.Errorf("expected log to name the missing method, got %q", logs)
	}
}

func TestRouter_MiddlewareOrder(t *testing.T) {
	var order []string
	tracer := func(name string) Middleware {
		return MiddlewareFunc(func(r *http.Request, next Responder) (*Response, error) {
			order = append(order, name)
			resp, err := next.Respond(r)
			order = append(order, name)
			return resp, err
		})
	}
	reg := newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		order = append(order, "handler")
		return &greeter{invoked: new(atomic.Int32)}, nil
	}).WithMiddleware(tracer("a"), tracer("b"))
	router := NewRouter().MustRegister(reg)

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(router.Handler())

	testutil.AssertStatus(t, w, http.StatusOK)
	want := []string{"a", "b", "handler", "b", "a"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected order %v, got %v", want, order)
	}
}

func TestRouter_MiddlewareShortCircuit(t *testing.T) {
	f := newGreeterFixture(t, func(_ *Router, reg *Registration[*greeter]) {
		reg.WithMiddleware(MiddlewareFunc(func(r *http.Request, next Responder) (*Response, error) {
			if r.Header.Get("Authorization") == "" {
				return nil, NewError(CodeUnauthenticated, "missing token")
			}
			return next.Respond(r)
		}))
	})

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(f.handler)
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
	testutil.AssertJSONError(t, w, "unauthenticated")
	if got := f.invoked.Load(); got != 0 {
		t.Errorf("expected no invocation, got %d", got)
	}

	w = testutil.NewCall("Greeter", "Touch() -> Void").
		WithHeader("Authorization", "Bearer x").
		WithBody("{}").
		Serve(f.handler)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestRouter_MiddlewareRewritesResponse(t *testing.T) {
	f := newGreeterFixture(t, func(_ *Router, reg *Registration[*greeter]) {
		reg.WithMiddleware(MiddlewareFunc(func(r *http.Request, next Responder) (*Response, error) {
			resp, err := next.Respond(r)
			if err != nil {
				return nil, err
			}
			resp.Header.Set("X-Call", r.Header.Get("API-Type"))
			return resp, nil
		}))
	})

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(f.handler)
	testutil.AssertHeader(t, w, "X-Call", "Greeter")
}

func TestRouter_MethodError(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Forbidden() -> Void").WithBody("{}").Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusForbidden)
	errBody := testutil.AssertJSONError(t, w, "permission_denied")
	if errBody.Message != "not yours" {
		t.Errorf("expected message 'not yours', got %q", errBody.Message)
	}
}

func TestRouter_MethodErrorLoggedAtDebug(t *testing.T) {
	var logs bytes.Buffer
	router := NewRouter().WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))
	router.MustRegister(newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		return &greeter{invoked: new(atomic.Int32)}, nil
	}))

	testutil.NewCall("Greeter", "Forbidden() -> Void").WithBody("{}").Serve(router.Handler())

	out := logs.String()
	if !strings.Contains(out, "level=DEBUG") || !strings.Contains(out, "API call rejected") {
		t.Errorf("expected debug log of the rejected call, got %q", out)
	}
	if strings.Contains(out, "level=ERROR") {
		t.Errorf("expected no error log for a client error, got %q", out)
	}
}

func TestRouter_ConstructorError(t *testing.T) {
	router := NewRouter().WithLogger(slog.New(slog.NewTextHandler(new(bytes.Buffer), nil)))
	router.MustRegister(newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		return nil, errors.New("database unavailable")
	}))

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(router.Handler())

	testutil.AssertStatus(t, w, http.StatusInternalServerError)
	errBody := testutil.AssertJSONError(t, w, "internal")
	if errBody.Message != "database unavailable" {
		t.Errorf("expected constructor error message, got %q", errBody.Message)
	}
}

func TestRouter_MaskInternalErrors(t *testing.T) {
	router := NewRouter().
		WithLogger(slog.New(slog.NewTextHandler(new(bytes.Buffer), nil))).
		WithMaskInternalErrors()
	router.MustRegister(newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		return nil, errors.New("password=hunter2")
	}))

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(router.Handler())

	errBody := testutil.AssertJSONError(t, w, "internal")
	if errBody.Message != "internal server error" {
		t.Errorf("expected masked message, got %q", errBody.Message)
	}
}

func TestRouter_ErrorTransformer(t *testing.T) {
	errGone := errors.New("gone")
	router := NewRouter().WithErrorTransformer(func(err error) *Error {
		if errors.Is(err, errGone) {
			return NewError(CodeGone, "it left")
		}
		return nil
	})
	router.MustRegister(newGreeterRegistration(func(r *http.Request) (*greeter, error) {
		return nil, errGone
	}))

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(router.Handler())

	testutil.AssertStatus(t, w, http.StatusGone)
	testutil.AssertJSONError(t, w, "gone")
}

func TestRouter_PanicRecovered(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Crash() -> string").WithBody("{}").Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusInternalServerError)
	testutil.AssertJSONError(t, w, "internal")
	if !strings.Contains(f.logs.String(), "PANIC recovered") {
		t.Errorf("expected panic to be logged, got %q", f.logs.String())
	}
}

func TestRouter_BodyTooLarge(t *testing.T) {
	f := newGreeterFixture(t, func(rt *Router, _ *Registration[*greeter]) {
		rt.WithMaxRequestBodySize(8)
	})

	w := testutil.NewCall("Greeter", "Greet(name: string) -> string").
		WithBody(`{"0_name":"a very long name indeed"}`).
		Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusTooManyRequests)
	testutil.AssertJSONError(t, w, "resource_exhausted")
}

func TestRouter_Validation(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Signup(s: signup) -> int").
		WithBody(`{"0_s":{"email":"ada@example.com","age":36}}`).
		Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, 42)
}

func TestRouter_CallInfo(t *testing.T) {
	f := newGreeterFixture(t, nil)

	w := testutil.NewCall("Greeter", "Whoami() -> string").WithBody("{}").Serve(f.handler)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, "Greeter.Whoami() -> string")
}

func TestRouter_HTTPMiddleware(t *testing.T) {
	var seen []string
	f := newGreeterFixture(t, func(rt *Router, _ *Registration[*greeter]) {
		for _, name := range []string{"outer", "inner"} {
			rt.WithMiddleware(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					seen = append(seen, name)
					next.ServeHTTP(w, r)
				})
			})
		}
	})

	testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(f.handler)

	if strings.Join(seen, ",") != "outer,inner" {
		t.Errorf("expected outer,inner, got %v", seen)
	}
}

func TestRouter_DuplicateRegistration(t *testing.T) {
	router := NewRouter()
	newAPI := func(r *http.Request) (*greeter, error) { return &greeter{}, nil }
	if err := router.Register(newGreeterRegistration(newAPI)); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}

	err := router.Register(newGreeterRegistration(newAPI))
	if err == nil {
		t.Fatal("expected error for duplicate API type, got nil")
	}
	if !strings.Contains(err.Error(), "already registered") {
		t.Errorf("expected 'already registered' error, got %q", err.Error())
	}

	defer func() {
		if recover() == nil {
			t.Error("expected MustRegister to panic")
		}
	}()
	router.MustRegister(newGreeterRegistration(newAPI))
}

func TestRouter_RegisterErrors(t *testing.T) {
	tests := []struct {
		name    string
		reg     APIRegistration
		wantErr string
	}{
		{
			name:    "nil registration",
			reg:     nil,
			wantErr: "registration is nil",
		},
		{
			name:    "empty API type",
			reg:     NewRegistration("", func(*http.Request) (*greeter, error) { return nil, nil }, nil),
			wantErr: "API type name is empty",
		},
		{
			name:    "nil constructor",
			reg:     NewRegistration[*greeter]("Greeter", nil, greeterMethods),
			wantErr: "API constructor is nil",
		},
		{
			name: "nil payload constructor",
			reg: NewRegistration("Greeter", func(*http.Request) (*greeter, error) { return nil, nil },
				[]Method[*greeter]{{ID: "Touch() -> Void"}}),
			wantErr: "payload constructor is nil",
		},
		{
			name: "unencodable payload",
			reg: NewRegistration("Greeter", func(*http.Request) (*greeter, error) { return nil, nil },
				[]Method[*greeter]{{ID: "Bad(ch: chan int) -> Void", New: func() Call[*greeter] { return &unencodableCall{} }}}),
			wantErr: "cannot be encoded as JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRouter().Register(tt.reg)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

type unencodableCall struct {
	P0 chan int `json:"0_ch"`
}

func (c *unencodableCall) Invoke(ctx context.Context, api *greeter) (any, error) {
	return NoReturnValue{}, nil
}

func TestRouter_DuplicateMethodID(t *testing.T) {
	var logs bytes.Buffer
	first := func() Call[*greeter] { return new(greeterCall_Touch) }
	second := func() Call[*greeter] { return new(greeterCall_Crash) }
	reg := NewRegistration("Greeter", func(*http.Request) (*greeter, error) {
		return &greeter{invoked: new(atomic.Int32)}, nil
	}, []Method[*greeter]{
		{ID: "Touch() -> Void", New: first},
		{ID: "Touch() -> Void", New: second},
	})
	router := NewRouter().WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	router.MustRegister(reg)

	if ids := reg.MethodIDs(); len(ids) != 1 {
		t.Errorf("expected 1 method ID, got %v", ids)
	}
	if !strings.Contains(logs.String(), "duplicate method ID") {
		t.Errorf("expected duplicate warning, got %q", logs.String())
	}

	w := testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(router.Handler())
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestRouter_Describe(t *testing.T) {
	router := NewRouter()
	router.MustRegister(newGreeterRegistration(func(*http.Request) (*greeter, error) { return nil, nil }))
	router.MustRegister(NewRegistration("Admin", func(*http.Request) (*greeter, error) { return nil, nil },
		greeterMethods[:1]))

	desc := router.Describe()
	if len(desc) != 2 {
		t.Fatalf("expected 2 API types, got %d", len(desc))
	}
	if desc[0].APIType != "Admin" || desc[1].APIType != "Greeter" {
		t.Errorf("expected Admin, Greeter, got %s, %s", desc[0].APIType, desc[1].APIType)
	}
	if len(desc[1].Methods) != len(greeterMethods) {
		t.Errorf("expected %d Greeter methods, got %d", len(greeterMethods), len(desc[1].Methods))
	}
	if desc[1].Methods[0] != "Greet(name: string) -> string" {
		t.Errorf("expected table order, got %v", desc[1].Methods)
	}
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) Dispatch(apiType string, result observability.DispatchResult, _ time.Duration) {
	o.events = append(o.events, apiType+":"+string(result))
}

func TestRouter_Observer(t *testing.T) {
	obs := &recordingObserver{}
	f := newGreeterFixture(t, func(rt *Router, _ *Registration[*greeter]) {
		rt.WithObserver(obs)
	})

	testutil.NewCall("Greeter", "Touch() -> Void").WithBody("{}").Serve(f.handler)
	testutil.NewCall("Stranger", "Touch() -> Void").WithBody("{}").Serve(f.handler)
	testutil.NewCall("Greeter", "Nope() -> Void").WithBody("{}").Serve(f.handler)
	testutil.NewCall("Greeter", "Forbidden() -> Void").WithBody("{}").Serve(f.handler)

	want := []string{
		"Greeter:ok",
		":unknown_type",
		"Greeter:unknown_method",
		"Greeter:error",
	}
	if strings.Join(obs.events, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, obs.events)
	}
}
