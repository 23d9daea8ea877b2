package naming

// escapeSuffix is appended to identifiers that collide with a reserved word.
const escapeSuffix = "_"

// reservedWords holds Go keywords, predeclared identifiers, and the package
// names imported by generated code.
var reservedWords = map[string]struct{}{
	// keywords
	"break": {}, "case": {}, "chan": {}, "const": {}, "continue": {},
	"default": {}, "defer": {}, "else": {}, "fallthrough": {}, "for": {},
	"func": {}, "go": {}, "goto": {}, "if": {}, "import": {},
	"interface": {}, "map": {}, "package": {}, "range": {}, "return": {},
	"select": {}, "struct": {}, "switch": {}, "type": {}, "var": {},

	// predeclared
	"any": {}, "bool": {}, "byte": {}, "comparable": {}, "complex64": {},
	"complex128": {}, "error": {}, "float32": {}, "float64": {}, "int": {},
	"int8": {}, "int16": {}, "int32": {}, "int64": {}, "rune": {},
	"string": {}, "uint": {}, "uint8": {}, "uint16": {}, "uint32": {},
	"uint64": {}, "uintptr": {}, "true": {}, "false": {}, "iota": {},
	"nil": {}, "append": {}, "cap": {}, "clear": {}, "close": {},
	"complex": {}, "copy": {}, "delete": {}, "imag": {}, "len": {},
	"make": {}, "max": {}, "min": {}, "new": {}, "panic": {},
	"print": {}, "println": {}, "real": {}, "recover": {},

	// imports of generated files
	"awsrt": {}, "context": {}, "strings": {}, "time": {},
}

// packageIdents are declared by every generated package; shape-derived type
// names must not shadow them.
var packageIdents = map[string]struct{}{
	"APIVersion":    {},
	"ClassifyError": {},
	"Error":         {},
	"New":           {},
	"ServiceID":     {},
	"ServiceName":   {},
}

// IsReserved reports whether ident is a reserved Go word.
func IsReserved(ident string) bool {
	_, ok := reservedWords[ident]
	return ok
}

// Escape appends the escape suffix to ident when it is a reserved word.
func Escape(ident string) string {
	if IsReserved(ident) {
		return ident + escapeSuffix
	}
	return ident
}

// TypeName returns the class-case name of s, escaped against identifiers
// the generated package declares itself.
func TypeName(s string) string {
	name := ClassCase(s)
	if _, ok := packageIdents[name]; ok {
		return name + escapeSuffix
	}
	return name
}
