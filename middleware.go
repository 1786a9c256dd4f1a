package bridge

import "net/http"

// Responder produces the response to a dispatched call.
type Responder interface {
	Respond(r *http.Request) (*Response, error)
}

// ResponderFunc adapts a function to a Responder.
type ResponderFunc func(r *http.Request) (*Response, error)

func (f ResponderFunc) Respond(r *http.Request) (*Response, error) {
	return f(r)
}

// Middleware wraps the dispatch of a call to one API definition.
//
// Middleware runs after the API type and method were resolved, so
// CallInfoFromContext is available. Calling next decodes the parameters,
// constructs the API value and invokes the method. A middleware can:
//   - inspect or replace the request before calling next
//   - inspect or replace the response after calling next
//   - short-circuit by returning an error without calling next
//
//	func requireToken(r *http.Request, next bridge.Responder) (*bridge.Response, error) {
//	    if r.Header.Get("Authorization") == "" {
//	        return nil, bridge.NewError(bridge.CodeUnauthenticated, "missing token")
//	    }
//	    return next.Respond(r)
//	}
type Middleware interface {
	Handle(r *http.Request, next Responder) (*Response, error)
}

// MiddlewareFunc adapts a function to a Middleware.
type MiddlewareFunc func(r *http.Request, next Responder) (*Response, error)

func (f MiddlewareFunc) Handle(r *http.Request, next Responder) (*Response, error) {
	return f(r, next)
}

// chainMiddleware wraps responder with middleware. The first middleware is
// the outermost: it sees the request first and the response last.
func chainMiddleware(middleware []Middleware, responder Responder) Responder {
	for i := len(middleware) - 1; i >= 0; i-- {
		current := middleware[i]
		next := responder
		responder = ResponderFunc(func(r *http.Request) (*Response, error) {
			return current.Handle(r, next)
		})
	}
	return responder
}
