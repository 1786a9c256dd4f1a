package bridge

import (
	"context"
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"reflect"
	"slices"
)

// Call is a decoded method call. Generated code declares one payload type
// per method; the request body is decoded into it and Invoke then runs the
// method on the API value.
type Call[API any] interface {
	Invoke(ctx context.Context, api API) (any, error)
}

// Method is one entry of a generated method table.
type Method[API any] struct {
	// ID is the method identifier sent in the API-Method header.
	ID string

	// New returns an empty payload to decode the request into.
	New func() Call[API]
}

// APIRegistration is implemented by [*Registration] and passed to
// [Router.Register]. It cannot be implemented outside this package.
type APIRegistration interface {
	APIType() string
	MethodIDs() []string

	hasMethod(id string) bool
	responder(id string, maxBodySize int64) Responder
	problems() (duplicates []string, err error)
}

// Registration connects the generated method table of one API definition
// to the constructor of its values. Generated code creates it with
// New<Type>Registration.
type Registration[API any] struct {
	apiType    string
	newAPI     func(r *http.Request) (API, error)
	methods    map[string]Method[API]
	ids        []string
	duplicates []string
	middleware []Middleware
	err        error
}

// NewRegistration creates the registration of an API definition.
// newAPI constructs the value serving a single request; it may fail, in
// which case the call fails with the returned error. Methods whose ID was
// already seen are ignored.
func NewRegistration[API any](apiType string, newAPI func(r *http.Request) (API, error), methods []Method[API]) *Registration[API] {
	reg := &Registration[API]{
		apiType: apiType,
		newAPI:  newAPI,
		methods: make(map[string]Method[API], len(methods)),
	}
	if newAPI == nil {
		reg.err = errors.New("API constructor is nil")
	}
	for _, m := range methods {
		if m.New == nil {
			reg.err = errors.Join(reg.err, fmt.Errorf("method %s: payload constructor is nil", m.ID))
			continue
		}
		if _, exists := reg.methods[m.ID]; exists {
			reg.duplicates = append(reg.duplicates, m.ID)
			continue
		}
		if err := checkPayload(m.New()); err != nil {
			reg.err = errors.Join(reg.err, fmt.Errorf("method %s: %w", m.ID, err))
		}
		reg.methods[m.ID] = m
		reg.ids = append(reg.ids, m.ID)
	}
	return reg
}

// WithMiddleware appends middleware to the dispatch of this API definition.
// Middleware runs in the order added for the request, and in reverse order
// for the response.
func (r *Registration[API]) WithMiddleware(mw ...Middleware) *Registration[API] {
	r.middleware = append(r.middleware, mw...)
	return r
}

// APIType returns the API type name.
func (r *Registration[API]) APIType() string {
	return r.apiType
}

// MethodIDs returns the registered method identifiers in table order.
func (r *Registration[API]) MethodIDs() []string {
	return slices.Clone(r.ids)
}

func (r *Registration[API]) hasMethod(id string) bool {
	_, ok := r.methods[id]
	return ok
}

func (r *Registration[API]) problems() ([]string, error) {
	return r.duplicates, r.err
}

// responder returns the middleware chain around the innermost step:
// decode the payload, construct the API value, invoke the method and
// encode its result.
func (r *Registration[API]) responder(id string, maxBodySize int64) Responder {
	m := r.methods[id]
	invoke := ResponderFunc(func(req *http.Request) (*Response, error) {
		call := m.New()
		if err := decodeCall(req, call, maxBodySize); err != nil {
			return nil, err
		}
		api, err := r.newAPI(req)
		if err != nil {
			return nil, err
		}
		result, err := call.Invoke(req.Context(), api)
		if err != nil {
			return nil, err
		}
		resp, err := JSONResponse(result)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		return resp, nil
	})
	return chainMiddleware(r.middleware, invoke)
}

// decodeCall decodes the request body into the payload and validates it.
// JSON is the wire format of generated clients; form-encoded bodies are
// accepted for plain HTML forms and curl.
func decodeCall(r *http.Request, call any, maxBodySize int64) error {
	if r.Body != nil && maxBodySize > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBodySize)
	}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return decodeError(err)
		}
		if err := schemaDecoder.Decode(call, r.PostForm); err != nil {
			return Errorf(CodeInvalidArgument, "decode form: %v", err)
		}
	default:
		if r.Body != nil {
			if err := json.NewDecoder(r.Body).Decode(call); err != nil && !errors.Is(err, io.EOF) {
				return decodeError(err)
			}
		}
	}
	return validate.Struct(call)
}

func decodeError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return err
	}
	return Errorf(CodeInvalidArgument, "decode body: %v", err)
}

var (
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

// checkPayload rejects payload types encoding/json cannot handle.
func checkPayload(call any) error {
	t := reflect.TypeOf(call)
	if t == nil {
		return errors.New("payload is nil")
	}
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("payload %s is not a pointer to a struct", t)
	}
	return checkEncodable(t.Elem(), make(map[reflect.Type]bool))
}

func checkEncodable(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType) {
		return nil
	}
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Errorf("type %s cannot be encoded as JSON", t)
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return checkEncodable(t.Elem(), seen)
	case reflect.Map:
		if !isMapKey(t.Key()) {
			return fmt.Errorf("map key type %s cannot be encoded as JSON", t.Key())
		}
		return checkEncodable(t.Elem(), seen)
	case reflect.Struct:
		for f := range fieldsOf(t) {
			if err := checkEncodable(f.Type, seen); err != nil {
				return fmt.Errorf("field %s: %w", f.Name, err)
			}
		}
	}
	return nil
}

func isMapKey(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	}
	return t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)
}

// fieldsOf yields the struct fields encoding/json considers.
func fieldsOf(t reflect.Type) func(yield func(reflect.StructField) bool) {
	return func(yield func(reflect.StructField) bool) {
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			if f.Tag.Get("json") == "-" {
				continue
			}
			if !yield(f) {
				return
			}
		}
	}
}
