package lang

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ScopeKind classifies a lexical scope.
type ScopeKind string

const (
	ScopeModule   ScopeKind = "module"
	ScopeClass    ScopeKind = "class"
	ScopeFunction ScopeKind = "function"
	ScopeBlock    ScopeKind = "block"
)

// DeclKind classifies what construct introduced a declaration.
type DeclKind string

const (
	DeclFunction  DeclKind = "function"
	DeclClass     DeclKind = "class"
	DeclVariable  DeclKind = "variable"
	DeclParameter DeclKind = "parameter"
	DeclType      DeclKind = "type"
)

// DeclRule describes how one AST node type introduces declarations.
type DeclRule struct {
	// NodeType is the tree-sitter node type that declares a name.
	NodeType string
	// NameField is the tree-sitter field holding the declared identifier.
	// When empty, NameChild is searched instead.
	NameField string
	// NameChild is a child node type searched (depth-first) for the name
	// when NameField is empty or absent on the node.
	NameChild string
	// Kind is the declaration kind.
	Kind DeclKind
	// InParent declares the name in the scope enclosing the node's own
	// scope. Function and class names live outside the body they open;
	// parameters live inside it.
	InParent bool
	// Recursive searches the whole subtree under NameField/NameChild for
	// identifiers (destructuring patterns, tuple targets).
	Recursive bool
}

// ScopeSpec is the per-language configuration the scope tree builder walks
// with. The declaration-before-use rule differs per language and can be
// overridden from languages.toml.
type ScopeSpec struct {
	// Hoisted makes every declaration visible throughout its scope
	// regardless of lexical position. When false, a reference before the
	// declaration point does not resolve to it.
	Hoisted bool
	// Scopes maps scope-opening node types to their kind.
	Scopes map[string]ScopeKind
	// Decls lists the declaration rules for the language.
	Decls []DeclRule
	// IdentTypes are the node types that represent identifier references.
	IdentTypes []string
	// WriteParents are node types whose named field ("left"/"name") marks
	// an identifier as a write rather than a read.
	WriteParents map[string]string
}

// specs holds the built-in per-language scope configuration.
var specs = map[Language]*ScopeSpec{
	LangPython: {
		Hoisted: false,
		Scopes: map[string]ScopeKind{
			"module":              ScopeModule,
			"function_definition": ScopeFunction,
			"lambda":              ScopeFunction,
			"class_definition":    ScopeClass,
		},
		Decls: []DeclRule{
			{NodeType: "function_definition", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "class_definition", NameField: "name", Kind: DeclClass, InParent: true},
			{NodeType: "parameters", NameChild: "identifier", Kind: DeclParameter, Recursive: true},
			{NodeType: "lambda_parameters", NameChild: "identifier", Kind: DeclParameter, Recursive: true},
			{NodeType: "assignment", NameField: "left", Kind: DeclVariable, Recursive: true},
			{NodeType: "augmented_assignment", NameField: "left", Kind: DeclVariable, Recursive: true},
			{NodeType: "for_statement", NameField: "left", Kind: DeclVariable, Recursive: true},
			{NodeType: "with_item", NameChild: "as_pattern_target", Kind: DeclVariable, Recursive: true},
			{NodeType: "except_clause", NameChild: "identifier", Kind: DeclVariable},
		},
		IdentTypes: []string{"identifier"},
		WriteParents: map[string]string{
			"assignment":           "left",
			"augmented_assignment": "left",
		},
	},
	LangJavaScript: jsSpec(),
	LangTypeScript: jsSpec(),
	LangTSX:        jsSpec(),
	LangGo: {
		Hoisted: true,
		Scopes: map[string]ScopeKind{
			"source_file":          ScopeModule,
			"function_declaration": ScopeFunction,
			"method_declaration":   ScopeFunction,
			"func_literal":         ScopeFunction,
			"block":                ScopeBlock,
		},
		Decls: []DeclRule{
			{NodeType: "function_declaration", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "method_declaration", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "type_spec", NameField: "name", Kind: DeclType},
			{NodeType: "parameter_declaration", NameField: "name", Kind: DeclParameter},
			{NodeType: "short_var_declaration", NameField: "left", Kind: DeclVariable, Recursive: true},
			{NodeType: "var_spec", NameField: "name", Kind: DeclVariable},
			{NodeType: "const_spec", NameField: "name", Kind: DeclVariable},
			{NodeType: "range_clause", NameField: "left", Kind: DeclVariable, Recursive: true},
		},
		IdentTypes: []string{"identifier", "field_identifier", "type_identifier"},
		WriteParents: map[string]string{
			"assignment_statement":  "left",
			"short_var_declaration": "left",
		},
	},
	LangRust: {
		Hoisted: true,
		Scopes: map[string]ScopeKind{
			"source_file":        ScopeModule,
			"function_item":      ScopeFunction,
			"closure_expression": ScopeFunction,
			"impl_item":          ScopeClass,
			"block":              ScopeBlock,
		},
		Decls: []DeclRule{
			{NodeType: "function_item", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "struct_item", NameField: "name", Kind: DeclType},
			{NodeType: "enum_item", NameField: "name", Kind: DeclType},
			{NodeType: "let_declaration", NameField: "pattern", Kind: DeclVariable, Recursive: true},
			{NodeType: "parameter", NameField: "pattern", Kind: DeclParameter, Recursive: true},
		},
		IdentTypes: []string{"identifier"},
		WriteParents: map[string]string{
			"assignment_expression": "left",
		},
	},
	LangJava: {
		Hoisted: true,
		Scopes: map[string]ScopeKind{
			"program":                 ScopeModule,
			"class_declaration":       ScopeClass,
			"interface_declaration":   ScopeClass,
			"method_declaration":      ScopeFunction,
			"constructor_declaration": ScopeFunction,
			"lambda_expression":       ScopeFunction,
			"block":                   ScopeBlock,
		},
		Decls: []DeclRule{
			{NodeType: "class_declaration", NameField: "name", Kind: DeclClass, InParent: true},
			{NodeType: "method_declaration", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "formal_parameter", NameField: "name", Kind: DeclParameter},
			{NodeType: "variable_declarator", NameField: "name", Kind: DeclVariable},
		},
		IdentTypes: []string{"identifier"},
		WriteParents: map[string]string{
			"assignment_expression": "left",
		},
	},
	LangKotlin: {
		Hoisted: true,
		Scopes: map[string]ScopeKind{
			"source_file":          ScopeModule,
			"class_declaration":    ScopeClass,
			"function_declaration": ScopeFunction,
			"lambda_literal":       ScopeFunction,
			"statements":           ScopeBlock,
		},
		Decls: []DeclRule{
			{NodeType: "function_declaration", NameChild: "simple_identifier", Kind: DeclFunction, InParent: true},
			{NodeType: "class_declaration", NameChild: "type_identifier", Kind: DeclClass, InParent: true},
			{NodeType: "parameter", NameChild: "simple_identifier", Kind: DeclParameter},
			{NodeType: "variable_declaration", NameChild: "simple_identifier", Kind: DeclVariable},
		},
		IdentTypes: []string{"simple_identifier"},
		WriteParents: map[string]string{
			"assignment": "left",
		},
	},
}

func jsSpec() *ScopeSpec {
	return &ScopeSpec{
		Hoisted: true,
		Scopes: map[string]ScopeKind{
			"program":                        ScopeModule,
			"function_declaration":           ScopeFunction,
			"function_expression":            ScopeFunction,
			"arrow_function":                 ScopeFunction,
			"method_definition":              ScopeFunction,
			"generator_function_declaration": ScopeFunction,
			"class_declaration":              ScopeClass,
			"class_body":                     ScopeClass,
			"statement_block":                ScopeBlock,
		},
		Decls: []DeclRule{
			{NodeType: "function_declaration", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "generator_function_declaration", NameField: "name", Kind: DeclFunction, InParent: true},
			{NodeType: "class_declaration", NameField: "name", Kind: DeclClass, InParent: true},
			{NodeType: "variable_declarator", NameField: "name", Kind: DeclVariable, Recursive: true},
			{NodeType: "formal_parameters", NameChild: "identifier", Kind: DeclParameter, Recursive: true},
			{NodeType: "catch_clause", NameField: "parameter", Kind: DeclVariable, Recursive: true},
		},
		IdentTypes: []string{"identifier", "shorthand_property_identifier", "property_identifier"},
		WriteParents: map[string]string{
			"assignment_expression":           "left",
			"augmented_assignment_expression": "left",
		},
	}
}

// Spec returns the scope configuration for a language.
func Spec(lang Language) (*ScopeSpec, error) {
	s, ok := specs[lang]
	if !ok {
		return nil, fmt.Errorf("no scope configuration for language: %s", lang)
	}
	return s, nil
}

// Override is one language's user-supplied scope settings.
type Override struct {
	Hoisted *bool `toml:"hoisted"`
}

// LoadOverrides reads a languages.toml file mapping language tags to
// overrides and applies them to the built-in specs. A missing file is not an
// error; a malformed file or unknown language is.
func LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	overrides := make(map[string]Override)
	if err := toml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	for tag, ov := range overrides {
		l, ok := Parse(tag)
		if !ok {
			return fmt.Errorf("languages.toml: unknown language %q", tag)
		}
		spec := specs[l]
		if ov.Hoisted != nil {
			spec.Hoisted = *ov.Hoisted
		}
	}
	return nil
}
