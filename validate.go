package bridge

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate      = validator.New(validator.WithRequiredStructEnabled())
	schemaDecoder = schema.NewDecoder()
)

func init() {
	schemaDecoder.IgnoreUnknownKeys(true)
	schemaDecoder.SetAliasTag("schema")
}

// Validate checks the `validate` struct tags of v, which must be a struct or
// a pointer to one; other values are always valid. API methods call it on
// values assembled from several parameters. The error maps to
// invalid_argument through DefaultErrorTransformer.
func Validate(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return validate.Struct(rv.Interface())
}
