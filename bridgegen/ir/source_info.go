package ir

import (
	"slices"
	"sort"
	"strconv"
	"strings"
)

// SourceInfo is the root of the intermediate representation.
type SourceInfo struct {
	// APIDefinitions in discovery order.
	APIDefinitions []*APIDefinition

	// ClientStructTemplates in discovery order.
	ClientStructTemplates []*ClientStructTemplate

	// ConformanceRequests for Equal/Hash methods on client types.
	ConformanceRequests []ConformanceRequest

	// CopyToClient holds declarations copied verbatim into client code.
	CopyToClient []CopyToClientEntry

	// PotentiallyUsedImports is the sorted set of imports seen in files that
	// contributed an API definition or a client struct template.
	PotentiallyUsedImports []Import

	// Warnings contains non-fatal issues encountered during analysis.
	Warnings []Warning
}

// AddWarning adds a warning.
func (s *SourceInfo) AddWarning(w Warning) {
	s.Warnings = append(s.Warnings, w)
}

// AddImports merges imports into PotentiallyUsedImports, keeping it sorted
// and free of duplicates.
func (s *SourceInfo) AddImports(imports ...Import) {
	for _, imp := range imports {
		if !slices.Contains(s.PotentiallyUsedImports, imp) {
			s.PotentiallyUsedImports = append(s.PotentiallyUsedImports, imp)
		}
	}
	sort.Slice(s.PotentiallyUsedImports, func(i, j int) bool {
		a, b := s.PotentiallyUsedImports[i], s.PotentiallyUsedImports[j]
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.Name < b.Name
	})
}

// ConditionalImports returns the potentially used imports that generated
// code does not import unconditionally.
func (s *SourceInfo) ConditionalImports() []Import {
	var out []Import
	for _, imp := range s.PotentiallyUsedImports {
		if imp.IsUnconditional() {
			continue
		}
		out = append(out, imp)
	}
	return out
}

// APIPackages returns the sorted distinct packages declaring API definitions.
func (s *SourceInfo) APIPackages() []string {
	var pkgs []string
	for _, def := range s.APIDefinitions {
		if !slices.Contains(pkgs, def.Package) {
			pkgs = append(pkgs, def.Package)
		}
	}
	slices.Sort(pkgs)
	return pkgs
}

// Summary returns a one-line description of the analysis result.
func (s *SourceInfo) Summary() string {
	methods := 0
	for _, def := range s.APIDefinitions {
		methods += len(def.Methods)
	}
	parts := []string{
		plural(len(s.APIDefinitions), "API definition"),
		plural(methods, "method"),
		plural(len(s.ClientStructTemplates), "client struct"),
		plural(len(s.CopyToClient), "copied declaration"),
	}
	return strings.Join(parts, ", ")
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}
