package ir

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/broady/bridge/wire"
)

// VoidTypeName is the return type name of void methods in method identifiers.
const VoidTypeName = "Void"

// MethodID returns the wire identifier of the method, in the form
//
//	Name(label: Type, Type) -> ReturnType
//
// Unlabeled parameters omit the label prefix.
func (m *MethodDefinition) MethodID() string {
	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('(')
	for i, p := range m.Parameters {
		if i > 0 {
			b.WriteString(", ")
		}
		if label := p.Label(); label != "" {
			b.WriteString(label)
			b.WriteString(": ")
		}
		b.WriteString(p.TypeName)
	}
	b.WriteString(") -> ")
	b.WriteString(m.ReturnType.EffectiveTypeName())
	return b.String()
}

// GeneratedTypeName returns the name of the per-call payload type:
// Call_<name> followed by _<label>_<type> for each parameter, with
// non-identifier characters in types replaced by underscores.
func (m *MethodDefinition) GeneratedTypeName() string {
	name := "Call_" + m.Name
	if len(m.Parameters) == 0 {
		return name
	}
	parts := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		parts[i] = p.Label() + "_" + SanitizeTypeName(p.TypeName)
	}
	return name + "_" + strings.Join(parts, "_")
}

// CodingKeys returns the JSON keys of the method's parameters.
func (m *MethodDefinition) CodingKeys() []string {
	keys := make([]string, len(m.Parameters))
	for i, p := range m.Parameters {
		keys[i] = wire.CodingKey(i, p.Label())
	}
	return keys
}

// GeneratedTypeNames returns the payload type name for each method of the
// definition, in order. Methods whose names would collide are told apart by
// their return type. Names still taken after that get the method's index
// appended, since labels and method names may contain underscores too.
func (a *APIDefinition) GeneratedTypeNames() []string {
	names := make([]string, len(a.Methods))
	counts := make(map[string]int, len(a.Methods))
	for i, m := range a.Methods {
		names[i] = m.GeneratedTypeName()
		counts[names[i]]++
	}
	for i, m := range a.Methods {
		if counts[names[i]] > 1 {
			names[i] += "_returning_" + SanitizeTypeName(m.ReturnType.EffectiveTypeName())
		}
	}

	taken := make(map[string]bool, len(names))
	for _, name := range names {
		taken[name] = true
	}
	seen := make(map[string]bool, len(names))
	for i, name := range names {
		if seen[name] {
			candidate := name + "_" + strconv.Itoa(i)
			for taken[candidate] {
				candidate += "_"
			}
			name = candidate
			names[i] = name
			taken[name] = true
		}
		seen[name] = true
	}
	return names
}

// SanitizeTypeName replaces every character that cannot appear in an
// identifier with an underscore.
func SanitizeTypeName(typeName string) string {
	return strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, typeName)
}
