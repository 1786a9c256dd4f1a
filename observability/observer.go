// Package observability defines the metric events emitted by the router and
// the client runtime. Package prom exports them to Prometheus.
package observability

import (
	"sync/atomic"
	"time"
)

type DispatchResult string

const (
	DispatchResultOK            DispatchResult = "ok"
	DispatchResultBadRequest    DispatchResult = "bad_request"
	DispatchResultUnknownType   DispatchResult = "unknown_type"
	DispatchResultUnknownMethod DispatchResult = "unknown_method"
	DispatchResultError         DispatchResult = "error"
	DispatchResultPanic         DispatchResult = "panic"
)

type CallResult string

const (
	CallResultOK             CallResult = "ok"
	CallResultRemoteError    CallResult = "remote_error"
	CallResultTransportError CallResult = "transport_error"
	CallResultDecodeError    CallResult = "decode_error"
	CallResultCanceled       CallResult = "canceled"
)

// DispatchObserver receives server-side dispatch events.
// apiType is empty when the request named no registered API type.
type DispatchObserver interface {
	Dispatch(apiType string, result DispatchResult, d time.Duration)
}

// CallObserver receives client-side call events.
type CallObserver interface {
	Call(apiType string, result CallResult, d time.Duration)
}

type noopObserver struct{}

func (noopObserver) Dispatch(string, DispatchResult, time.Duration) {}
func (noopObserver) Call(string, CallResult, time.Duration)         {}

// NoopDispatchObserver is used when metrics are disabled.
var NoopDispatchObserver DispatchObserver = noopObserver{}

// NoopCallObserver is used when metrics are disabled.
var NoopCallObserver CallObserver = noopObserver{}

// AtomicDispatchObserver swaps its delegate at runtime. The zero value
// forwards to NoopDispatchObserver.
type AtomicDispatchObserver struct {
	v atomic.Pointer[dispatchHolder]
}

type dispatchHolder struct {
	obs DispatchObserver
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicDispatchObserver) Set(obs DispatchObserver) {
	if obs == nil {
		obs = NoopDispatchObserver
	}
	a.v.Store(&dispatchHolder{obs: obs})
}

func (a *AtomicDispatchObserver) Dispatch(apiType string, result DispatchResult, d time.Duration) {
	if h := a.v.Load(); h != nil {
		h.obs.Dispatch(apiType, result, d)
	}
}
