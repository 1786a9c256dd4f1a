package bridge

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
)

// greeter is an API definition. The method table and payload types below
// have the shape bridgegen emits for it.
type greeter struct {
	prefix  string
	invoked *atomic.Int32
}

type signup struct {
	Email string `json:"email" validate:"required,email"`
	Age   int    `json:"age" validate:"gte=0,lte=130"`
}

func (g *greeter) Greet(name string) string {
	g.invoked.Add(1)
	return g.prefix + name + "!"
}

func (g *greeter) Touch() {
	g.invoked.Add(1)
}

func (g *greeter) Sum(nums ...int) int {
	g.invoked.Add(1)
	total := 0
	for _, n := range nums {
		total += n
	}
	return total
}

func (g *greeter) Forbidden(ctx context.Context) error {
	g.invoked.Add(1)
	return NewError(CodePermissionDenied, "not yours")
}

func (g *greeter) Crash() string {
	panic("boom")
}

func (g *greeter) Signup(s signup) (int, error) {
	g.invoked.Add(1)
	return 42, nil
}

func (g *greeter) Whoami(ctx context.Context) (string, error) {
	info, ok := CallInfoFromContext(ctx)
	if !ok {
		return "", errors.New("no call info")
	}
	return info.String(), nil
}

var greeterMethods = []Method[*greeter]{
	{ID: "Greet(name: string) -> string", New: func() Call[*greeter] { return new(greeterCall_Greet_name_string) }},
	{ID: "Touch() -> Void", New: func() Call[*greeter] { return new(greeterCall_Touch) }},
	{ID: "Sum(nums: ...int) -> int", New: func() Call[*greeter] { return new(greeterCall_Sum_nums____int) }},
	{ID: "Forbidden() -> Void", New: func() Call[*greeter] { return new(greeterCall_Forbidden) }},
	{ID: "Crash() -> string", New: func() Call[*greeter] { return new(greeterCall_Crash) }},
	{ID: "Signup(s: signup) -> int", New: func() Call[*greeter] { return new(greeterCall_Signup_s_signup) }},
	{ID: "Whoami() -> string", New: func() Call[*greeter] { return new(greeterCall_Whoami) }},
}

type greeterCall_Greet_name_string struct {
	P0 string `json:"0_name" schema:"0_name"`
}

func (c *greeterCall_Greet_name_string) Invoke(ctx context.Context, api *greeter) (any, error) {
	return api.Greet(c.P0), nil
}

type greeterCall_Touch struct{}

func (c *greeterCall_Touch) Invoke(ctx context.Context, api *greeter) (any, error) {
	api.Touch()
	return NoReturnValue{}, nil
}

type greeterCall_Sum_nums____int struct {
	P0 []int `json:"0_nums" schema:"0_nums"`
}

func (c *greeterCall_Sum_nums____int) Invoke(ctx context.Context, api *greeter) (any, error) {
	return api.Sum(c.P0...), nil
}

type greeterCall_Forbidden struct{}

func (c *greeterCall_Forbidden) Invoke(ctx context.Context, api *greeter) (any, error) {
	if err := api.Forbidden(ctx); err != nil {
		return nil, err
	}
	return NoReturnValue{}, nil
}

type greeterCall_Crash struct{}

func (c *greeterCall_Crash) Invoke(ctx context.Context, api *greeter) (any, error) {
	return api.Crash(), nil
}

type greeterCall_Signup_s_signup struct {
	P0 signup `json:"0_s" schema:"0_s"`
}

func (c *greeterCall_Signup_s_signup) Invoke(ctx context.Context, api *greeter) (any, error) {
	return api.Signup(c.P0)
}

type greeterCall_Whoami struct{}

func (c *greeterCall_Whoami) Invoke(ctx context.Context, api *greeter) (any, error) {
	return api.Whoami(ctx)
}

// newGreeterRegistration mirrors the generated New<Type>Registration.
func newGreeterRegistration(newAPI func(r *http.Request) (*greeter, error)) *Registration[*greeter] {
	return NewRegistration("Greeter", newAPI, greeterMethods)
}
