package match

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"recast/internal/errors"
	"recast/internal/lang"
)

// Occurrence is one located occurrence of a symbol name.
type Occurrence struct {
	StartByte int
	EndByte   int
}

// IdentifierOccurrences finds every identifier node whose text equals name,
// in document order. This is the AST-anchored collection path used by the
// rename coordinator.
func (m *Matcher) IdentifierOccurrences(ctx context.Context, source []byte, language lang.Language, name string) ([]Occurrence, error) {
	if !lang.IsIdentifier(name) {
		return nil, errors.Newf(errors.InputError, "not a valid symbol name: %q", name)
	}

	spec, err := lang.Spec(language)
	if err != nil {
		return nil, errors.New(errors.InputError, "unknown language", err)
	}
	identTypes := make(map[string]bool, len(spec.IdentTypes))
	for _, t := range spec.IdentTypes {
		identTypes[t] = true
	}

	root, err := m.parser.Parse(ctx, source, language)
	if err != nil {
		return nil, errors.New(errors.InputError, "parse failed", err)
	}

	var out []Occurrence
	walk(root, func(node *sitter.Node) {
		if !identTypes[node.Type()] {
			return
		}
		if string(source[node.StartByte():node.EndByte()]) == name {
			out = append(out, Occurrence{StartByte: int(node.StartByte()), EndByte: int(node.EndByte())})
		}
	})
	return out, nil
}

// TextOccurrences scans raw source text for name. It is the non-AST fallback
// and enforces the word-boundary rule: an occurrence is rejected unless both
// adjacent bytes (when present) are non-identifier bytes, so renaming "foo"
// never touches "foobar" or "myfoo".
func TextOccurrences(source []byte, name string) []Occurrence {
	if name == "" {
		return nil
	}

	var out []Occurrence
	n := len(name)
	for i := 0; i+n <= len(source); {
		if string(source[i:i+n]) != name {
			i++
			continue
		}
		boundedLeft := i == 0 || !lang.IsIdentByte(source[i-1])
		boundedRight := i+n == len(source) || !lang.IsIdentByte(source[i+n])
		if boundedLeft && boundedRight {
			out = append(out, Occurrence{StartByte: i, EndByte: i + n})
			i += n
			continue
		}
		i++
	}
	return out
}
