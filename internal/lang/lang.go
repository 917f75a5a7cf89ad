// Package lang provides the supported-language registry: language tags,
// file-extension detection, tree-sitter grammar lookup, and the per-language
// scope rules consumed by the scope tree builder.
package lang

import (
	"sort"
	"strings"
)

// Language represents a supported programming language.
type Language string

const (
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangJava       Language = "java"
	LangKotlin     Language = "kotlin"
)

// All returns every supported language tag in a stable order.
func All() []Language {
	return []Language{
		LangGo,
		LangJavaScript,
		LangTypeScript,
		LangTSX,
		LangPython,
		LangRust,
		LangJava,
		LangKotlin,
	}
}

// extensionMap maps lowercase file extensions to languages.
var extensionMap = map[string]Language{
	".go":   LangGo,
	".js":   LangJavaScript,
	".mjs":  LangJavaScript,
	".cjs":  LangJavaScript,
	".jsx":  LangJavaScript,
	".ts":   LangTypeScript,
	".tsx":  LangTSX,
	".py":   LangPython,
	".pyi":  LangPython,
	".rs":   LangRust,
	".java": LangJava,
	".kt":   LangKotlin,
	".kts":  LangKotlin,
}

// Extensions returns the file extensions mapped to a language, sorted.
func Extensions(l Language) []string {
	var out []string
	for ext, mapped := range extensionMap {
		if mapped == l {
			out = append(out, ext)
		}
	}
	sort.Strings(out)
	return out
}

// FromExtension returns the language for a file extension (with or without
// the leading dot).
func FromExtension(ext string) (Language, bool) {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l, ok := extensionMap[ext]
	return l, ok
}

// Parse validates a language tag supplied by a caller.
func Parse(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case LangGo, LangJavaScript, LangTypeScript, LangTSX, LangPython, LangRust, LangJava, LangKotlin:
		return l, true
	}
	return "", false
}

// IsIdentByte reports whether b may appear inside an identifier. Used for
// the word-boundary rule: a textual occurrence is only a symbol occurrence
// when both neighboring bytes (if any) are non-identifier bytes.
func IsIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

// IsIdentifier reports whether s is a plausible symbol name.
func IsIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !IsIdentByte(s[i]) {
			return false
		}
		if i == 0 && s[i] >= '0' && s[i] <= '9' {
			return false
		}
	}
	return true
}
