package match

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/errors"
	"recast/internal/lang"
)

// metavarPattern recognizes $NAME metavariables in pattern text. $_ is an
// anonymous wildcard that matches any node without capturing.
var metavarPattern = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

const metavarMarker = "_recast_mvar_"

// Matcher evaluates patterns against parsed source and yields MatchRecords.
// A Matcher is not safe for concurrent use; create one per worker.
type Matcher struct {
	parser *lang.Parser
}

// NewMatcher creates a pattern matcher.
func NewMatcher() *Matcher {
	return &Matcher{parser: lang.NewParser()}
}

// Match evaluates pattern against source and returns every match in document
// order. Deterministic for identical inputs. An empty result is not an
// error.
func (m *Matcher) Match(ctx context.Context, file string, source []byte, language lang.Language, pattern string) ([]MatchRecord, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, errors.New(errors.InputError, "empty pattern", nil)
	}

	root, err := m.parser.Parse(ctx, source, language)
	if err != nil {
		return nil, errors.New(errors.InputError, fmt.Sprintf("parsing %s", file), err)
	}

	patSource := []byte(encodeMetavars(strings.TrimSpace(pattern)))
	core, patBuf, err := m.parsePattern(ctx, patSource, language, pattern)
	if err != nil {
		return nil, err
	}
	if core == nil {
		return nil, errors.Newf(errors.InputError, "pattern has no matchable node: %s", pattern)
	}

	hash := Fingerprint(source)
	var records []MatchRecord

	walk(root, func(node *sitter.Node) {
		captures := make(map[string][2]int)
		if matchNode(node, core, source, patBuf, captures) {
			rec := MatchRecord{
				File:        file,
				Language:    language,
				StartByte:   int(node.StartByte()),
				EndByte:     int(node.EndByte()),
				ContentHash: hash,
			}
			for name, span := range captures {
				rec.Captures = append(rec.Captures, Capture{Name: name, StartByte: span[0], EndByte: span[1]})
			}
			sortCaptures(rec.Captures)
			records = append(records, rec)
		}
	})

	return records, nil
}

// patternContext embeds a pattern in a minimal compilable file for grammars
// that reject bare top-level expressions or statements.
type patternContext struct {
	prefix, suffix string
}

var patternContexts = map[lang.Language][]patternContext{
	lang.LangGo: {
		{"package p\nfunc _() {\n", "\n}\n"},
		{"package p\n", "\n"},
	},
	lang.LangJava: {
		{"class P { void p() {\n", "\n} }\n"},
		{"class P {\n", "\n}\n"},
	},
	lang.LangKotlin: {
		{"fun p() {\n", "\n}\n"},
	},
	lang.LangRust: {
		{"fn p() {\n", "\n}\n"},
	},
}

// parsePattern parses the encoded pattern and returns its core node together
// with the buffer the node's byte offsets refer to. Patterns that do not
// parse standing alone are retried inside each of the language's enclosing
// contexts, so expression- and statement-level patterns work in languages
// whose grammar only accepts declarations at the top level.
func (m *Matcher) parsePattern(ctx context.Context, patSource []byte, language lang.Language, pattern string) (*sitter.Node, []byte, error) {
	root, err := m.parser.Parse(ctx, patSource, language)
	if err != nil {
		return nil, nil, errors.New(errors.InputError, "parsing pattern", err)
	}
	if !root.HasError() {
		return coreNode(root), patSource, nil
	}

	for _, c := range patternContexts[language] {
		wrapped := []byte(c.prefix + string(patSource) + c.suffix)
		wroot, err := m.parser.Parse(ctx, wrapped, language)
		if err != nil || wroot.HasError() {
			continue
		}
		node := namedNodeCovering(wroot, uint32(len(c.prefix)), uint32(len(c.prefix)+len(patSource)))
		for node.NamedChildCount() == 1 {
			node = node.NamedChild(0)
		}
		return node, wrapped, nil
	}
	return nil, nil, errors.Newf(errors.InputError, "pattern is not valid %s syntax: %s", language, pattern)
}

// namedNodeCovering returns the smallest named node spanning [start, end).
func namedNodeCovering(root *sitter.Node, start, end uint32) *sitter.Node {
	node := root
	for {
		var next *sitter.Node
		for i := 0; i < int(node.NamedChildCount()); i++ {
			c := node.NamedChild(i)
			if c.StartByte() <= start && c.EndByte() >= end {
				next = c
				break
			}
		}
		if next == nil {
			return node
		}
		node = next
	}
}

// encodeMetavars rewrites $NAME metavariables into identifiers every grammar
// accepts, so the pattern itself can be parsed with the target language.
func encodeMetavars(pattern string) string {
	return metavarPattern.ReplaceAllString(pattern, metavarMarker+"$1")
}

// metavarName extracts the metavariable name from an encoded identifier, or
// "" when the text is not an encoded metavariable.
func metavarName(text string) string {
	if !strings.HasPrefix(text, metavarMarker) {
		return ""
	}
	return strings.TrimPrefix(text, metavarMarker)
}

// coreNode descends from the pattern parse root to the node the user
// actually wrote: grammars wrap a bare expression in file/statement nodes
// with a single named child each.
func coreNode(root *sitter.Node) *sitter.Node {
	node := root
	for node != nil && node.NamedChildCount() == 1 {
		node = node.NamedChild(0)
	}
	if node == root && root.NamedChildCount() == 0 {
		return nil
	}
	return node
}

// matchNode structurally compares a source node against a pattern node.
// Metavariables match any single node; repeated metavariables must match
// identical text.
func matchNode(node, pat *sitter.Node, source, patSource []byte, captures map[string][2]int) bool {
	patText := string(patSource[pat.StartByte():pat.EndByte()])
	if name := metavarName(patText); name != "" && pat.NamedChildCount() == 0 {
		if name == "_" {
			return true
		}
		span := [2]int{int(node.StartByte()), int(node.EndByte())}
		if prev, ok := captures[name]; ok {
			return string(source[prev[0]:prev[1]]) == string(source[span[0]:span[1]])
		}
		captures[name] = span
		return true
	}

	if node.Type() != pat.Type() {
		return false
	}

	if pat.NamedChildCount() == 0 {
		return string(source[node.StartByte():node.EndByte()]) == patText
	}

	// Compare all children, anonymous tokens included, so that operators
	// distinguish otherwise identically shaped nodes ("a + b" vs "a - b").
	if node.ChildCount() != pat.ChildCount() {
		return false
	}
	for i := 0; i < int(pat.ChildCount()); i++ {
		nc, pc := node.Child(i), pat.Child(i)
		if nc.IsNamed() != pc.IsNamed() {
			return false
		}
		if pc.IsNamed() {
			if !matchNode(nc, pc, source, patSource, captures) {
				return false
			}
			continue
		}
		if string(source[nc.StartByte():nc.EndByte()]) != string(patSource[pc.StartByte():pc.EndByte()]) {
			return false
		}
	}
	return true
}

// walk visits every node in the tree in document order.
func walk(root *sitter.Node, visit func(*sitter.Node)) {
	if root == nil {
		return
	}
	visit(root)
	for i := 0; i < int(root.ChildCount()); i++ {
		walk(root.Child(i), visit)
	}
}

func sortCaptures(captures []Capture) {
	for i := 1; i < len(captures); i++ {
		for j := i; j > 0 && captures[j].Name < captures[j-1].Name; j-- {
			captures[j], captures[j-1] = captures[j-1], captures[j]
		}
	}
}
