package ir

import "strings"

// APIDefinition is a type whose exported methods are remotely callable.
type APIDefinition struct {
	// Name is the bare type name. It is the value of the API-Type header.
	Name string

	// Doc is the documentation text, without comment markers or directives.
	Doc string

	// Package is the name of the declaring package.
	Package string

	// Methods in declaration order.
	Methods []*MethodDefinition

	// Source is where the type is declared.
	Source Source
}

// MethodDefinition is one remotely callable method.
type MethodDefinition struct {
	Name string
	Doc  string

	// Parameters that travel on the wire. A leading context.Context is
	// not included; it is recorded in IsAsync.
	Parameters []Parameter

	// IsAsync is true when the method takes a context.Context first.
	IsAsync bool

	// MayThrow is true when the last result is error.
	MayThrow bool

	ReturnType ReturnType

	// Source is where the method is declared.
	Source Source
}

// Parameter is one wire parameter of a method.
//
// Go has no argument labels, so the parameter name doubles as the label.
type Parameter struct {
	// Name is the declared name. Empty or "_" means unlabeled.
	Name string

	// TypeName is the type as written, including a leading "..." for a
	// variadic parameter.
	TypeName string
}

// Label returns the wire label, or "" for an unlabeled parameter.
func (p Parameter) Label() string {
	if p.Name == "_" {
		return ""
	}
	return p.Name
}

// IsVariadic reports whether the parameter is declared as ...T.
func (p Parameter) IsVariadic() bool {
	return strings.HasPrefix(p.TypeName, "...")
}

// FieldTypeName returns the type used for the payload field: []T for a
// variadic parameter, the declared type otherwise.
func (p Parameter) FieldTypeName() string {
	if p.IsVariadic() {
		return "[]" + strings.TrimPrefix(p.TypeName, "...")
	}
	return p.TypeName
}

// ReturnKind distinguishes void from value-returning methods.
type ReturnKind int

const (
	ReturnVoid ReturnKind = iota
	ReturnCodable
)

// ReturnType is the result of a method, excluding a trailing error.
type ReturnType struct {
	Kind ReturnKind

	// TypeName is set for ReturnCodable.
	TypeName string
}

// VoidReturn returns the void return type.
func VoidReturn() ReturnType {
	return ReturnType{Kind: ReturnVoid}
}

// CodableReturn returns a value return type.
func CodableReturn(typeName string) ReturnType {
	return ReturnType{Kind: ReturnCodable, TypeName: typeName}
}

// IsVoid reports whether the method returns no value.
func (r ReturnType) IsVoid() bool {
	return r.Kind == ReturnVoid
}

// EffectiveTypeName returns the type name used in method identifiers.
func (r ReturnType) EffectiveTypeName() string {
	if r.IsVoid() {
		return VoidTypeName
	}
	return r.TypeName
}

// ClientStructTemplate is a type whose shape is mirrored into client code.
type ClientStructTemplate struct {
	Name string
	Doc  string

	// Package is the name of the declaring package.
	Package string

	// IsModel is true for struct types embedding the ORM model base.
	IsModel bool

	// Properties in declaration order, including hidden ones.
	Properties []InstanceProperty

	Source Source
}

// ClientProperties returns the properties visible to the client.
func (t *ClientStructTemplate) ClientProperties() []InstanceProperty {
	var out []InstanceProperty
	for _, p := range t.Properties {
		if p.IsVisibleToClient() {
			out = append(out, p)
		}
	}
	return out
}

// Protocol names a synthesized client capability.
type Protocol string

const (
	ProtocolEquatable Protocol = "equatable"
	ProtocolHashable  Protocol = "hashable"
)

// ConformanceRequest asks for Protocol to be synthesized for TypeName.
type ConformanceRequest struct {
	TypeName string
	Protocol Protocol
}

// CopyToClientEntry is the verbatim text of a declaration copied into
// client code.
type CopyToClientEntry struct {
	Text   string
	Source Source
}
