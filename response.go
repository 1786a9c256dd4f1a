package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/broady/bridge/wire"
)

// NoReturnValue is the result of a void method. It encodes as 0.
type NoReturnValue = wire.NoReturnValue

// Codable names a type that crosses the wire. Generated code declares a
// Codable for every parameter and result type so that the compiler reports
// unresolved types at their declaration.
type Codable[T any] struct{}

// Response is the result of a dispatched call as seen by middleware.
// A successful call carries the JSON encoding of the method's result.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// JSONResponse encodes v as a 200 response.
func JSONResponse(v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}, nil
}

func (r *Response) write(w http.ResponseWriter) error {
	for k, v := range r.Header {
		w.Header()[k] = v
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(r.Body)
	return err
}

// errorResponse is the {"error": {...}} envelope of a failed call.
type errorResponse struct {
	Error *Error `json:"error"`
}

// encodeErrorResponse writes an error response to the ResponseWriter.
func encodeErrorResponse(w jsonWriter, err *Error) error {
	return json.NewEncoder(w).Encode(errorResponse{Error: err})
}

// jsonWriter is satisfied by http.ResponseWriter and allows testing.
type jsonWriter interface {
	Write([]byte) (int, error)
}
