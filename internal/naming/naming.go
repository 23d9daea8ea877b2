// Package naming converts schema identifiers into Go identifiers.
//
// Schema names may contain punctuation, spaces, and leading digits. Every
// function here is pure and total: any input yields a valid identifier.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// emptyName is used when nothing identifier-like survives normalization.
const emptyName = "empty"

var separators = strings.NewReplacer(
	".", "_",
	":", "_",
	"-", "_",
	" ", "_",
	"/", "_",
	"(", "_",
	")", "_",
	"*", "all",
)

// VariableCase returns a lower camel identifier suitable for a parameter or
// local variable. Reserved words are escaped.
func VariableCase(s string) string {
	return Escape(LabelCase(s))
}

// LabelCase returns the lower camel form of s without reserved-word escaping.
// It is the key used when ordering constructor parameters.
func LabelCase(s string) string {
	segs := segments(s)
	if len(segs) == 0 {
		return emptyName
	}
	if allUpper(segs) {
		lower := cases.Lower(language.Und)
		for i := range segs {
			segs[i] = lower.String(segs[i])
		}
	}
	var b strings.Builder
	b.WriteString(lowerLeading(segs[0]))
	for _, seg := range segs[1:] {
		b.WriteString(upperFirst(seg))
	}
	return digitGuard(b.String())
}

// ClassCase returns an upper camel identifier suitable for a type name.
func ClassCase(s string) string {
	segs := segments(s)
	if len(segs) == 0 {
		return upperFirst(emptyName)
	}
	var b strings.Builder
	for _, seg := range segs {
		b.WriteString(upperFirst(seg))
	}
	return digitGuard(b.String())
}

// EnumCaseName derives the case identifier for one raw enum value. The raw
// value is lower-cased before camel-casing. A result that is empty or purely
// numeric is prefixed with the variable-case name of the enum, so "2" in enum
// Foo becomes "foo2".
func EnumCaseName(enumName, value string) string {
	segs := segments(cases.Lower(language.Und).String(value))
	var b strings.Builder
	for i, seg := range segs {
		if i == 0 {
			b.WriteString(seg)
			continue
		}
		b.WriteString(upperFirst(seg))
	}
	name := b.String()
	if isNumeric(name) {
		return VariableCase(enumName) + name
	}
	return Escape(name)
}

// EnumConstName returns the exported constant name for an enum value:
// the enum's class-case name followed by its case name.
func EnumConstName(enumName, value string) string {
	return ClassCase(enumName) + EnumConstSuffix(enumName, value)
}

// EnumConstSuffix is the case name of value in exported form, without the
// enum's own name.
func EnumConstSuffix(enumName, value string) string {
	return upperFirst(strings.TrimSuffix(EnumCaseName(enumName, value), escapeSuffix))
}

// PackageName returns a lower-case Go package name for a service.
func PackageName(s string) string {
	var b strings.Builder
	for _, r := range ClassCase(s) {
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	name := b.String()
	if name == "" || unicode.IsDigit(rune(name[0])) {
		name = "svc" + name
	}
	if IsReserved(name) {
		name += "svc"
	}
	return name
}

// segments splits s on separators after punctuation has been mapped to
// underscores. Runes that cannot appear in a Go identifier are treated as
// separators as well.
func segments(s string) []string {
	s = separators.Replace(s)
	s = strings.Map(func(r rune) rune {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
	parts := strings.Split(s, "_")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func allUpper(segs []string) bool {
	seen := false
	for _, seg := range segs {
		for _, r := range seg {
			if unicode.IsLower(r) {
				return false
			}
			if unicode.IsUpper(r) {
				seen = true
			}
		}
	}
	return seen
}

// lowerLeading lower-cases the leading upper-case run of s, keeping the last
// upper-case rune of the run when it starts a new word: "DBInstance" becomes
// "dbInstance" and "URL" becomes "url".
func lowerLeading(s string) string {
	runes := []rune(s)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	switch {
	case n == 0:
		return s
	case n == len(runes):
		// whole word is upper case
	case n > 1 && unicode.IsLower(runes[n]):
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func digitGuard(s string) string {
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsDigit(r) {
		return "_" + s
	}
	return s
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
