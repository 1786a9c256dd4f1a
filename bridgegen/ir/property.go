package ir

import (
	"strconv"
	"strings"
)

// PropertyKind classifies a client struct property by its bridge struct tag.
type PropertyKind int

const (
	PropertyPlain PropertyKind = iota
	PropertyHidden
	PropertyParent
	PropertyOptionalParent
	PropertyChildren
	PropertySiblings
	PropertyOptionalChild
)

var propertyKindNames = map[PropertyKind]string{
	PropertyPlain:          "plain",
	PropertyHidden:         "hidden",
	PropertyParent:         "parent",
	PropertyOptionalParent: "optionalParent",
	PropertyChildren:       "children",
	PropertySiblings:       "siblings",
	PropertyOptionalChild:  "optionalChild",
}

func (k PropertyKind) String() string {
	if name, ok := propertyKindNames[k]; ok {
		return name
	}
	return "PropertyKind(" + strconv.Itoa(int(k)) + ")"
}

// IsToMany reports whether the property references a collection of related entities.
func (k PropertyKind) IsToMany() bool {
	return k == PropertyChildren || k == PropertySiblings
}

// ParsePropertyKind classifies a field from the value of its bridge tag,
// e.g. `bridge:"parent"` or `bridge:"hidden,children"`.
// Hidden wins over every other option. Unrecognized options are returned.
func ParsePropertyKind(tag string) (kind PropertyKind, unknown []string) {
	kind = PropertyPlain
	hidden := false
	for _, opt := range strings.Split(tag, ",") {
		opt = strings.TrimSpace(opt)
		if opt == "" {
			continue
		}
		if opt == "-" || strings.EqualFold(opt, "hidden") {
			hidden = true
			continue
		}
		matched := false
		for k, name := range propertyKindNames {
			if k != PropertyPlain && k != PropertyHidden && strings.EqualFold(opt, name) {
				if kind == PropertyPlain {
					kind = k
				}
				matched = true
				break
			}
		}
		if !matched {
			unknown = append(unknown, opt)
		}
	}
	if hidden {
		return PropertyHidden, unknown
	}
	return kind, unknown
}

// InstanceProperty is one stored field of a client struct template.
type InstanceProperty struct {
	// Name is empty for an embedded field.
	Name     string
	TypeName string

	// Tag is the raw struct tag without the enclosing backquotes.
	Tag string

	Doc  string
	Kind PropertyKind
}

// IsVisibleToClient reports whether the property is projected to the client.
func (p InstanceProperty) IsVisibleToClient() bool {
	return p.Kind != PropertyHidden
}

// ClientTypeName returns the type of the property in client code.
// To-one relationships become references or pointers, since the related
// value is not guaranteed to be loaded when the owner is encoded.
func (p InstanceProperty) ClientTypeName() string {
	elem := strings.TrimPrefix(p.TypeName, "*")
	switch p.Kind {
	case PropertyParent:
		return ClientImportName + ".ParentReference[" + elem + "]"
	case PropertyOptionalParent:
		return "*" + ClientImportName + ".ParentReference[" + elem + "]"
	case PropertyOptionalChild:
		return "*" + elem
	default:
		return p.TypeName
	}
}

// ClientTag returns the struct tag of the property in client code.
// Server-only keys are dropped and to-many relationships are made omitempty.
func (p InstanceProperty) ClientTag() string {
	pairs := parseTag(p.Tag)
	out := pairs[:0]
	hasJSON := false
	for _, pair := range pairs {
		if serverOnlyTagKeys[pair.key] {
			continue
		}
		if pair.key == "json" {
			hasJSON = true
			if p.Kind.IsToMany() {
				pair.value = withOmitEmpty(pair.value)
			}
		}
		out = append(out, pair)
	}
	if !hasJSON && p.Kind.IsToMany() {
		out = append(out, tagPair{key: "json", value: ",omitempty"})
	}
	return formatTag(out)
}

// ClientDeclaration returns the field declaration in client code.
func (p InstanceProperty) ClientDeclaration() string {
	return fieldDecl(p.Name, p.ClientTypeName(), p.ClientTag())
}

var serverOnlyTagKeys = map[string]bool{
	"bridge": true,
	"gorm":   true,
}

func fieldDecl(name, typeName, tag string) string {
	decl := typeName
	if name != "" {
		decl = name + " " + typeName
	}
	if tag != "" {
		decl += " `" + tag + "`"
	}
	return decl
}

func withOmitEmpty(value string) string {
	opts := strings.Split(value, ",")
	for _, opt := range opts[1:] {
		if opt == "omitempty" {
			return value
		}
	}
	return value + ",omitempty"
}

type tagPair struct {
	key   string
	value string
}

// parseTag splits a struct tag into its key:"value" pairs, following the
// conventional format understood by reflect.StructTag. Parsing stops at the
// first malformed pair.
func parseTag(tag string) []tagPair {
	var pairs []tagPair
	for tag != "" {
		i := 0
		for i < len(tag) && tag[i] == ' ' {
			i++
		}
		tag = tag[i:]
		if tag == "" {
			break
		}

		i = 0
		for i < len(tag) && tag[i] > ' ' && tag[i] != ':' && tag[i] != '"' && tag[i] != 0x7f {
			i++
		}
		if i == 0 || i+1 >= len(tag) || tag[i] != ':' || tag[i+1] != '"' {
			break
		}
		key := tag[:i]
		tag = tag[i+1:]

		i = 1
		for i < len(tag) && tag[i] != '"' {
			if tag[i] == '\\' {
				i++
			}
			i++
		}
		if i >= len(tag) {
			break
		}
		value, err := strconv.Unquote(tag[:i+1])
		if err != nil {
			break
		}
		tag = tag[i+1:]
		pairs = append(pairs, tagPair{key: key, value: value})
	}
	return pairs
}

func formatTag(pairs []tagPair) string {
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		parts[i] = pair.key + ":" + strconv.Quote(pair.value)
	}
	return strings.Join(parts, " ")
}

// LookupTag returns the value of key in a raw struct tag.
func LookupTag(tag, key string) (string, bool) {
	for _, pair := range parseTag(tag) {
		if pair.key == key {
			return pair.value, true
		}
	}
	return "", false
}
