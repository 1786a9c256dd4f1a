// Package directive parses bridge directives from Go doc comments.
//
// Directives are line comments in the form:
//
//	//bridge:api
//	// bridge: copyToClient
//
// The comment text splits on ":" into exactly a key and a value. The key
// must equal "bridge" ignoring case; the value is matched exactly. Spaces
// around either are ignored.
package directive

import (
	"go/ast"
	"go/token"
	"strings"
)

// Kind is the value of a directive.
type Kind string

const (
	// KindAPI marks an API definition.
	KindAPI Kind = "api"

	// KindClientStruct marks a type mirrored into client code.
	KindClientStruct Kind = "clientStruct"

	// KindEquatable requests an Equal method on the client type.
	KindEquatable Kind = "equatable"

	// KindHashable requests Equal and Hash methods on the client type.
	KindHashable Kind = "hashable"

	// KindCopyToClient copies the declaration verbatim into client code.
	KindCopyToClient Kind = "copyToClient"
)

var knownKinds = map[Kind]bool{
	KindAPI:          true,
	KindClientStruct: true,
	KindEquatable:    true,
	KindHashable:     true,
	KindCopyToClient: true,
}

// IsKnown reports whether k is a recognized directive.
func (k Kind) IsKnown() bool {
	return knownKinds[k]
}

// Directive is a bridge directive found in a comment group.
type Directive struct {
	Kind Kind
	Pos  token.Pos
}

// ParseLine parses the text of a single comment, including its "//" marker.
// Block comments are never directives.
func ParseLine(text string) (Kind, bool) {
	body, ok := strings.CutPrefix(text, "//")
	if !ok {
		return "", false
	}
	parts := strings.Split(body, ":")
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(strings.TrimSpace(parts[0]), "bridge") {
		return "", false
	}
	value := strings.TrimSpace(parts[1])
	if value == "" {
		return "", false
	}
	return Kind(value), true
}

// Parse returns the directives in a comment group in source order.
// A nil group has no directives.
func Parse(cg *ast.CommentGroup) []Directive {
	if cg == nil {
		return nil
	}
	var directives []Directive
	for _, c := range cg.List {
		if kind, ok := ParseLine(c.Text); ok {
			directives = append(directives, Directive{Kind: kind, Pos: c.Pos()})
		}
	}
	return directives
}

// Has reports whether the comment group carries the given directive.
func Has(cg *ast.CommentGroup, kind Kind) bool {
	for _, d := range Parse(cg) {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// Text returns the documentation text of the comment group with bridge
// directives removed.
func Text(cg *ast.CommentGroup) string {
	if cg == nil {
		return ""
	}
	filtered := &ast.CommentGroup{}
	for _, c := range cg.List {
		if _, ok := ParseLine(c.Text); ok {
			continue
		}
		filtered.List = append(filtered.List, c)
	}
	if len(filtered.List) == 0 {
		return ""
	}
	return filtered.Text()
}
