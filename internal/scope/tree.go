// Package scope builds per-file lexical scope trees from parsed source
// and resolves identifier references to the declarations that bind
// them. The tree is an index arena: scopes refer to each other by slice
// index, so the whole structure is two allocations and trivially
// serializable for debugging.
package scope

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/errors"
	"recast/internal/lang"
)

// Role classifies how an identifier occurrence uses its name.
type Role string

const (
	RoleDeclaration Role = "declaration"
	RoleRead        Role = "read"
	RoleWrite       Role = "write"
	// RoleShadowing marks a declaration that hides a same-named binding
	// in an enclosing scope.
	RoleShadowing Role = "shadowing-declaration"
)

// Declaration is one binding introduced in a scope.
type Declaration struct {
	Name      string        `json:"name"`
	Kind      lang.DeclKind `json:"kind"`
	StartByte int           `json:"startByte"`
	EndByte   int           `json:"endByte"`
	Scope     int           `json:"scope"`
}

// Reference is one identifier occurrence, resolved (or not) to a
// declaration. Decl is -1 for unresolved references: names bound
// outside the file, builtins, imports the tree does not model.
type Reference struct {
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	StartByte int    `json:"startByte"`
	EndByte   int    `json:"endByte"`
	Scope     int    `json:"scope"`
	Decl      int    `json:"decl"`
}

// Node is one lexical scope. Parent is -1 for the root module scope.
type Node struct {
	Kind      lang.ScopeKind `json:"kind"`
	Parent    int            `json:"parent"`
	Children  []int          `json:"children,omitempty"`
	StartByte int            `json:"startByte"`
	EndByte   int            `json:"endByte"`
	Decls     []int          `json:"decls,omitempty"`
}

// Tree is the scope structure of a single file.
type Tree struct {
	Language lang.Language `json:"language"`
	Nodes    []Node        `json:"nodes"`
	Decls    []Declaration `json:"decls"`
	Refs     []Reference   `json:"refs"`

	spec *lang.ScopeSpec
}

type builder struct {
	source []byte
	spec   *lang.ScopeSpec
	tree   *Tree
	// declSpans marks identifier spans already claimed as declarations
	// so the reference pass does not double-count them.
	declSpans map[int]int // start byte -> decl index
}

// Build parses source and constructs its scope tree.
func Build(ctx context.Context, source []byte, language lang.Language) (*Tree, error) {
	spec, err := lang.Spec(language)
	if err != nil {
		return nil, errors.New(errors.InputError, "unknown language", err)
	}
	root, err := lang.NewParser().Parse(ctx, source, language)
	if err != nil {
		return nil, errors.New(errors.InputError, "parse failed", err)
	}

	b := &builder{
		source: source,
		spec:   spec,
		tree: &Tree{
			Language: language,
			spec:     spec,
		},
		declSpans: make(map[int]int),
	}

	// Root scope covers the whole file even when the grammar's module
	// node does not (leading comments, BOM).
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Kind:      lang.ScopeModule,
		Parent:    -1,
		StartByte: 0,
		EndByte:   len(source),
	})

	// Pass 1: scopes and declarations, so hoisted languages can resolve
	// forward references.
	b.collectDecls(root, 0)
	// Pass 2: references.
	b.collectRefs(root, 0)
	return b.tree, nil
}

func (b *builder) enterScope(node *sitter.Node, parent int) int {
	idx := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, Node{
		Kind:      b.spec.Scopes[node.Type()],
		Parent:    parent,
		StartByte: int(node.StartByte()),
		EndByte:   int(node.EndByte()),
	})
	b.tree.Nodes[parent].Children = append(b.tree.Nodes[parent].Children, idx)
	return idx
}

// scopeAt finds the already-built scope index for a scope-opening node
// during the reference pass, by span lookup under the current scope.
func (b *builder) scopeAt(node *sitter.Node, current int) int {
	start, end := int(node.StartByte()), int(node.EndByte())
	for _, child := range b.tree.Nodes[current].Children {
		c := b.tree.Nodes[child]
		if c.StartByte == start && c.EndByte == end {
			return child
		}
	}
	return current
}

func (b *builder) collectDecls(node *sitter.Node, scopeIdx int) {
	current := scopeIdx
	if _, opens := b.spec.Scopes[node.Type()]; opens && !isRoot(node) {
		current = b.enterScope(node, scopeIdx)
	}

	for _, rule := range b.spec.Decls {
		if rule.NodeType != node.Type() {
			continue
		}
		// A node that opened its own scope declares its name outside it
		// (function and class names), while parameters stay inside.
		target := current
		if rule.InParent && current != scopeIdx {
			target = scopeIdx
		}
		for _, ident := range b.ruleNames(node, rule) {
			b.addDecl(ident, rule.Kind, target)
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.collectDecls(node.NamedChild(i), current)
	}
}

func (b *builder) collectRefs(node *sitter.Node, scopeIdx int) {
	current := scopeIdx
	if _, opens := b.spec.Scopes[node.Type()]; opens && !isRoot(node) {
		current = b.scopeAt(node, scopeIdx)
	}

	if b.isIdentType(node.Type()) {
		b.addRef(node, current)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		b.collectRefs(node.NamedChild(i), current)
	}
}

// ruleNames extracts the identifier nodes a declaration rule names.
func (b *builder) ruleNames(node *sitter.Node, rule lang.DeclRule) []*sitter.Node {
	var anchor *sitter.Node
	if rule.NameField != "" {
		anchor = node.ChildByFieldName(rule.NameField)
	}
	if anchor == nil && rule.NameChild != "" {
		anchor = firstOfType(node, rule.NameChild)
	}
	if anchor == nil {
		return nil
	}
	if !rule.Recursive {
		if b.isIdentType(anchor.Type()) {
			return []*sitter.Node{anchor}
		}
		if inner := b.firstIdent(anchor); inner != nil {
			return []*sitter.Node{inner}
		}
		return nil
	}
	var out []*sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if b.isIdentType(n.Type()) {
			out = append(out, n)
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(anchor)
	return out
}

func (b *builder) firstIdent(node *sitter.Node) *sitter.Node {
	if b.isIdentType(node.Type()) {
		return node
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if found := b.firstIdent(node.NamedChild(i)); found != nil {
			return found
		}
	}
	return nil
}

func firstOfType(node *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == typ {
			return child
		}
		if found := firstOfType(child, typ); found != nil {
			return found
		}
	}
	return nil
}

func (b *builder) isIdentType(typ string) bool {
	for _, t := range b.spec.IdentTypes {
		if t == typ {
			return true
		}
	}
	return false
}

func (b *builder) addDecl(ident *sitter.Node, kind lang.DeclKind, scopeIdx int) {
	start := int(ident.StartByte())
	if _, dup := b.declSpans[start]; dup {
		return
	}
	name := string(b.source[ident.StartByte():ident.EndByte()])
	// A reassignment in a scope that already binds the name is a write,
	// not a new binding.
	for _, di := range b.tree.Nodes[scopeIdx].Decls {
		if b.tree.Decls[di].Name == name {
			return
		}
	}
	idx := len(b.tree.Decls)
	b.tree.Decls = append(b.tree.Decls, Declaration{
		Name:      name,
		Kind:      kind,
		StartByte: start,
		EndByte:   int(ident.EndByte()),
		Scope:     scopeIdx,
	})
	b.tree.Nodes[scopeIdx].Decls = append(b.tree.Nodes[scopeIdx].Decls, idx)
	b.declSpans[start] = idx
}

func (b *builder) addRef(ident *sitter.Node, scopeIdx int) {
	start := int(ident.StartByte())
	name := string(b.source[ident.StartByte():ident.EndByte()])

	if declIdx, isDecl := b.declSpans[start]; isDecl {
		role := RoleDeclaration
		decl := b.tree.Decls[declIdx]
		if b.shadows(decl) {
			role = RoleShadowing
		}
		b.tree.Refs = append(b.tree.Refs, Reference{
			Name: name, Role: role,
			StartByte: start, EndByte: int(ident.EndByte()),
			Scope: decl.Scope, Decl: declIdx,
		})
		return
	}

	role := RoleRead
	if b.isWrite(ident) {
		role = RoleWrite
	}
	declIdx := b.tree.resolve(name, scopeIdx, start)
	b.tree.Refs = append(b.tree.Refs, Reference{
		Name: name, Role: role,
		StartByte: start, EndByte: int(ident.EndByte()),
		Scope: scopeIdx, Decl: declIdx,
	})
}

// shadows reports whether a declaration hides a same-named binding in
// an enclosing scope.
func (b *builder) shadows(decl Declaration) bool {
	scopeIdx := b.tree.Nodes[decl.Scope].Parent
	for scopeIdx >= 0 {
		for _, di := range b.tree.Nodes[scopeIdx].Decls {
			if b.tree.Decls[di].Name == decl.Name {
				return true
			}
		}
		scopeIdx = b.tree.Nodes[scopeIdx].Parent
	}
	return false
}

// isWrite reports whether the identifier sits in the write position of
// an assignment-like parent.
func (b *builder) isWrite(ident *sitter.Node) bool {
	parent := ident.Parent()
	for parent != nil {
		if field, ok := b.spec.WriteParents[parent.Type()]; ok {
			target := parent.ChildByFieldName(field)
			return target != nil &&
				int(target.StartByte()) <= int(ident.StartByte()) &&
				int(ident.EndByte()) <= int(target.EndByte())
		}
		// Only look through wrapper expressions, not across statements.
		if parent.IsNamed() && len(b.spec.WriteParents) > 0 {
			switch parent.Type() {
			case "expression_statement", "parenthesized_expression", "pattern_list", "tuple_pattern":
				parent = parent.Parent()
				continue
			}
		}
		return false
	}
	return false
}

// resolve finds the declaration binding name at refStart, walking from
// the given scope outward. In non-hoisted languages a declaration after
// the reference point in the same scope does not bind it.
func (t *Tree) resolve(name string, scopeIdx, refStart int) int {
	for scopeIdx >= 0 {
		for _, di := range t.Nodes[scopeIdx].Decls {
			d := t.Decls[di]
			if d.Name != name {
				continue
			}
			if !t.spec.Hoisted && d.StartByte > refStart {
				continue
			}
			return di
		}
		scopeIdx = t.Nodes[scopeIdx].Parent
	}
	return -1
}

func isRoot(node *sitter.Node) bool {
	return node.Parent() == nil
}

// Span is one byte range occupied by a name occurrence.
type Span struct {
	StartByte int `json:"startByte"`
	EndByte   int `json:"endByte"`
}

// DeclAt finds the declaration bound by the identifier occurrence
// covering the byte offset, or -1 when the offset is not on a resolved
// identifier.
func (t *Tree) DeclAt(offset int) int {
	for _, r := range t.Refs {
		if r.StartByte <= offset && offset < r.EndByte {
			return r.Decl
		}
	}
	return -1
}

// OccurrencesOf returns every occurrence span bound to a declaration,
// in document order. The declaration site is included via its
// reference entry.
func (t *Tree) OccurrencesOf(declIdx int) []Span {
	var out []Span
	for _, r := range t.Refs {
		if r.Decl == declIdx {
			out = append(out, Span{StartByte: r.StartByte, EndByte: r.EndByte})
		}
	}
	return out
}

// Unresolved returns the occurrence spans of name whose references did
// not bind to any declaration in the file.
func (t *Tree) Unresolved(name string) []Span {
	var out []Span
	for _, r := range t.Refs {
		if r.Decl == -1 && r.Name == name {
			out = append(out, Span{StartByte: r.StartByte, EndByte: r.EndByte})
		}
	}
	return out
}

// VisibleFrom reports whether a declaration of name is visible from a
// scope (the scope itself or any enclosing scope), and returns it.
func (t *Tree) VisibleFrom(name string, scopeIdx int) (int, bool) {
	for scopeIdx >= 0 {
		for _, di := range t.Nodes[scopeIdx].Decls {
			if t.Decls[di].Name == name {
				return di, true
			}
		}
		scopeIdx = t.Nodes[scopeIdx].Parent
	}
	return -1, false
}

// Subtree returns the scope indices of scopeIdx and all scopes nested
// inside it.
func (t *Tree) Subtree(scopeIdx int) []int {
	out := []int{scopeIdx}
	for i := 0; i < len(out); i++ {
		out = append(out, t.Nodes[out[i]].Children...)
	}
	return out
}
