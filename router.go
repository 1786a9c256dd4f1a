// Package bridge is the server runtime of generated API code.
//
// An API definition is a Go type marked //bridge:api. bridgegen generates a
// registration for it, which is registered with a Router:
//
//	router := bridge.NewRouter().WithLogger(logger)
//	router.MustRegister(api.NewGreeterRegistration(func(r *http.Request) (*api.Greeter, error) {
//	    return &api.Greeter{DB: db}, nil
//	}))
//	http.Handle("POST /api", router.Handler())
//
// Every call is a POST to the same route. The API-Type header selects the
// registration and the API-Method header selects the method.
package bridge

import (
	"cmp"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"time"

	"github.com/broady/bridge/observability"
	"github.com/broady/bridge/wire"
)

// DefaultMaxRequestBodySize is the request body limit of a new Router.
const DefaultMaxRequestBodySize = 1 << 20

// Router dispatches API calls to registered API definitions.
//
// Registration is expected to finish before the handler serves traffic;
// lookups take no locks.
type Router struct {
	registrations      map[string]APIRegistration
	errorTransformer   ErrorTransformer
	maskInternalErrors bool
	middlewares        []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize int64
	observer           observability.DispatchObserver
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		registrations:      make(map[string]APIRegistration),
		maxRequestBodySize: DefaultMaxRequestBodySize,
		observer:           observability.NoopDispatchObserver,
	}
}

// WithErrorTransformer sets a custom error transformer.
// It returns the router for chaining.
func (rt *Router) WithErrorTransformer(fn ErrorTransformer) *Router {
	rt.errorTransformer = fn
	return rt
}

// WithMaskInternalErrors replaces the message of internal errors with a
// generic one. The original error is still logged.
func (rt *Router) WithMaskInternalErrors() *Router {
	rt.maskInternalErrors = true
	return rt
}

// WithMiddleware adds an HTTP middleware wrapping the whole router.
// Middleware is applied in the order added (first added is outermost).
// Use Registration.WithMiddleware for middleware that needs CallInfo.
func (rt *Router) WithMiddleware(mw func(http.Handler) http.Handler) *Router {
	rt.middlewares = append(rt.middlewares, mw)
	return rt
}

// WithLogger sets a custom logger for the router.
// If not set, slog.Default() will be used.
func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	rt.logger = logger
	return rt
}

// WithMaxRequestBodySize sets the maximum request body size.
// A value of 0 means no limit. Default is 1MB.
func (rt *Router) WithMaxRequestBodySize(size int64) *Router {
	rt.maxRequestBodySize = size
	return rt
}

// WithObserver sets the receiver of dispatch metrics.
func (rt *Router) WithObserver(obs observability.DispatchObserver) *Router {
	if obs == nil {
		obs = observability.NoopDispatchObserver
	}
	rt.observer = obs
	return rt
}

func (rt *Router) log() *slog.Logger {
	if rt.logger == nil {
		return slog.Default()
	}
	return rt.logger
}

// Register adds the registration of an API definition. Registering a second
// definition under the same API type name is an error, as is a method table
// whose payloads cannot be encoded.
func (rt *Router) Register(reg APIRegistration) error {
	if reg == nil {
		return fmt.Errorf("register: registration is nil")
	}
	name := reg.APIType()
	if name == "" {
		return fmt.Errorf("register: API type name is empty")
	}
	if _, exists := rt.registrations[name]; exists {
		return fmt.Errorf("register %s: API type is already registered", name)
	}
	duplicates, err := reg.problems()
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	for _, id := range duplicates {
		rt.log().Warn("duplicate method ID; keeping the first",
			slog.String("api_type", name),
			slog.String("method", id))
	}
	rt.registrations[name] = reg
	return nil
}

// MustRegister is like Register but panics on error.
func (rt *Router) MustRegister(reg APIRegistration) *Router {
	if err := rt.Register(reg); err != nil {
		panic("bridge: " + err.Error())
	}
	return rt
}

// APIDescription lists the methods of a registered API definition.
type APIDescription struct {
	APIType string   `json:"api_type"`
	Methods []string `json:"methods"`
}

// Describe returns the registered API definitions sorted by type name.
func (rt *Router) Describe() []APIDescription {
	out := make([]APIDescription, 0, len(rt.registrations))
	for name, reg := range rt.registrations {
		out = append(out, APIDescription{APIType: name, Methods: reg.MethodIDs()})
	}
	slices.SortFunc(out, func(a, b APIDescription) int {
		return cmp.Compare(a.APIType, b.APIType)
	})
	return out
}

// Handler returns an http.Handler for use with http.ListenAndServe or
// http.ServeMux. The returned handler includes all configured middleware.
//
// Example:
//
//	router := bridge.NewRouter().WithMiddleware(cors)
//	http.ListenAndServe(":8080", router.Handler())
func (rt *Router) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(rt.serveHTTP)
	for i := len(rt.middlewares) - 1; i >= 0; i-- {
		h = rt.middlewares[i](h)
	}
	return h
}

func (rt *Router) serveHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	apiType := ""
	defer func() {
		if rec := recover(); rec != nil {
			rt.log().Error("PANIC recovered",
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			rt.observer.Dispatch(apiType, observability.DispatchResultPanic, time.Since(start))
			apiErr := Errorf(CodeInternal, "internal server error (panic): %v", rec)
			if rt.maskInternalErrors {
				apiErr.Message = "internal server error"
			}
			rt.writeError(w, apiErr)
		}
	}()

	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		rt.observer.Dispatch("", observability.DispatchResultBadRequest, time.Since(start))
		rt.writeError(w, Errorf(CodeMethodNotAllowed, "method %s not allowed, expected POST", req.Method))
		return
	}

	name := req.Header.Get(wire.HeaderAPIType)
	if name == "" {
		rt.observer.Dispatch("", observability.DispatchResultBadRequest, time.Since(start))
		rt.writeError(w, Errorf(CodeInvalidArgument, "missing %s header", wire.HeaderAPIType))
		return
	}
	reg, ok := rt.registrations[name]
	if !ok {
		rt.observer.Dispatch("", observability.DispatchResultUnknownType, time.Since(start))
		rt.writeError(w, Errorf(CodeInvalidArgument, "unknown API type %q", name))
		return
	}
	apiType = name

	method := req.Header.Get(wire.HeaderAPIMethod)
	if method == "" {
		rt.observer.Dispatch(apiType, observability.DispatchResultBadRequest, time.Since(start))
		rt.writeError(w, Errorf(CodeInvalidArgument, "missing %s header", wire.HeaderAPIMethod))
		return
	}
	if !reg.hasMethod(method) {
		rt.log().Warn("API method call not found; generated code may be out of date",
			slog.String("api_type", apiType),
			slog.String("method", method))
		rt.observer.Dispatch(apiType, observability.DispatchResultUnknownMethod, time.Since(start))
		rt.writeError(w, Errorf(CodeInvalidArgument, "unknown API method %q of %s", method, apiType))
		return
	}

	req = withCallInfo(req, CallInfo{APIType: apiType, Method: method})
	resp, err := reg.responder(method, rt.maxRequestBodySize).Respond(req)
	if err != nil {
		rt.observer.Dispatch(apiType, observability.DispatchResultError, time.Since(start))
		rt.handleError(w, req, err)
		return
	}
	if resp == nil {
		resp = &Response{Status: http.StatusNoContent}
	}
	rt.observer.Dispatch(apiType, observability.DispatchResultOK, time.Since(start))
	if err := resp.write(w); err != nil {
		rt.log().Debug("failed to write response",
			slog.String("api_type", apiType),
			slog.Any("error", err))
	}
}

func (rt *Router) handleError(w http.ResponseWriter, req *http.Request, err error) {
	var apiErr *Error
	if rt.errorTransformer != nil {
		apiErr = rt.errorTransformer(err)
	}
	if apiErr == nil {
		apiErr = DefaultErrorTransformer(err)
	}
	info, _ := CallInfoFromContext(req.Context())
	switch {
	case apiErr.Code == CodeInternal:
		rt.log().Error("API call failed",
			slog.String("call", info.String()),
			slog.Any("error", err))
		if rt.maskInternalErrors {
			masked := *apiErr
			masked.Message = "internal server error"
			masked.Details = nil
			apiErr = &masked
		}
	case apiErr.Code.IsClientError():
		rt.log().Debug("API call rejected",
			slog.String("call", info.String()),
			slog.String("code", string(apiErr.Code)),
			slog.String("message", apiErr.Message))
	}
	rt.writeError(w, apiErr)
}

func (rt *Router) writeError(w http.ResponseWriter, apiErr *Error) {
	writeError(w, apiErr, rt.logger)
}
