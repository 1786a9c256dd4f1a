package bridge

import (
	"context"
	"net/http"
)

type contextKey struct {
	name string
}

var callInfoKey = &contextKey{"call_info"}

// CallInfo identifies the call being dispatched.
type CallInfo struct {
	// APIType is the bare type name of the API definition.
	APIType string

	// Method is the method identifier, e.g. "Greet(name: string) -> string".
	Method string
}

// String returns "<APIType>.<Method>".
func (c CallInfo) String() string {
	return c.APIType + "." + c.Method
}

// CallInfoFromContext returns the call being dispatched. It is set for
// middleware, API constructors and API methods.
func CallInfoFromContext(ctx context.Context) (CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey).(CallInfo)
	return info, ok
}

// withCallInfo returns a shallow copy of r carrying info in its context.
func withCallInfo(r *http.Request, info CallInfo) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), callInfoKey, info))
}
