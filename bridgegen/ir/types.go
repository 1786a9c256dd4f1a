// Package ir defines the intermediate representation that the analyzer
// builds from Go source and the generator renders into server and client
// code.
//
// All values are created during a single analysis pass and are read-only
// afterwards.
package ir

import (
	"fmt"
	"strconv"
)

// Import paths that generated code always imports.
const (
	RuntimeImportPath = "github.com/broady/bridge"
	ClientImportPath  = "github.com/broady/bridge/client"

	// ClientImportName is the name generated code uses for the client runtime.
	ClientImportName = "bridgeclient"
)

// unconditionalImports are never emitted as conditional imports.
var unconditionalImports = map[string]bool{
	RuntimeImportPath: true,
	ClientImportPath:  true,
	"context":         true,
	"net/http":        true,
}

// Source identifies a location in a source file.
type Source struct {
	File   string
	Line   int
	Column int
}

// IsZero returns true if the source location is empty.
func (s Source) IsZero() bool {
	return s.File == "" && s.Line == 0 && s.Column == 0
}

func (s Source) String() string {
	if s.Line == 0 {
		return s.File
	}
	return s.File + ":" + strconv.Itoa(s.Line)
}

// Warning represents a non-fatal issue encountered during analysis.
type Warning struct {
	// Code is a machine-readable warning identifier.
	Code string

	// Message is a human-readable description.
	Message string

	// Source is the location that triggered the warning, if applicable.
	Source *Source

	// TypeName is the type that triggered the warning, if applicable.
	TypeName string
}

func (w Warning) String() string {
	if w.Source != nil && !w.Source.IsZero() {
		return fmt.Sprintf("%s: %s", w.Source, w.Message)
	}
	return w.Message
}

// Import is an import declaration seen in a source file.
type Import struct {
	// Name is the explicit package name, or empty.
	Name string
	Path string
}

// Spec returns the import as it appears in an import block.
func (i Import) Spec() string {
	if i.Name == "" {
		return strconv.Quote(i.Path)
	}
	return i.Name + " " + strconv.Quote(i.Path)
}

// IsUnconditional reports whether generated code imports the path anyway.
func (i Import) IsUnconditional() bool {
	return unconditionalImports[i.Path]
}
