// Package wire holds the protocol details shared by the bridge server
// runtime, the client runtime and generated code.
//
// A method call is an HTTP POST whose API-Type header names the API
// definition and whose API-Method header carries the method identifier.
// The body is a JSON object keyed by [CodingKey].
package wire

import (
	"encoding/json"
	"strconv"
)

const (
	// HeaderAPIType carries the bare type name of the API definition.
	HeaderAPIType = "API-Type"

	// HeaderAPIMethod carries the method identifier.
	HeaderAPIMethod = "API-Method"
)

// NoReturnValue is the result of a method that returns nothing.
// It always encodes as the literal 0 and decodes from any JSON value.
type NoReturnValue struct{}

func (NoReturnValue) MarshalJSON() ([]byte, error) {
	return []byte("0"), nil
}

func (*NoReturnValue) UnmarshalJSON([]byte) error {
	return nil
}

// CodingKey returns the JSON key of the parameter at the given zero-based
// position. Unlabeled parameters are keyed by position alone.
func CodingKey(ordinal int, label string) string {
	if label == "" {
		return strconv.Itoa(ordinal)
	}
	return strconv.Itoa(ordinal) + "_" + label
}

// ErrorBody is the error object sent by the server on failure.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorEnvelope wraps an [ErrorBody] as {"error": {...}}.
type ErrorEnvelope struct {
	Error *ErrorBody `json:"error"`
}

// DecodeError extracts the error body from a failed response.
// It returns nil if data is not an error envelope.
func DecodeError(data []byte) *ErrorBody {
	var env ErrorEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil
	}
	return env.Error
}
