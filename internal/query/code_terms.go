package query

import "strings"

// CodeTerms maps code-specific terms to their synonyms.
var CodeTerms = map[string][]string{
	"function":  {"func", "method", "procedure", "def", "fn", "subroutine"},
	"class":     {"struct", "type", "interface", "object", "model"},
	"variable":  {"var", "const", "let", "field", "property", "attribute"},
	"error":     {"exception", "panic", "fault", "failure", "err"},
	"import":    {"require", "include", "use", "dependency", "import"},
	"test":      {"spec", "unittest", "testcase", "test"},
	"config":    {"configuration", "settings", "options", "env"},
	"database":  {"db", "storage", "repository", "store"},
	"api":       {"endpoint", "route", "handler", "controller"},
	"auth":      {"authentication", "authorization", "login", "permission"},
	"parse":     {"process", "handle", "read", "decode"},
	"serialize": {"encode", "marshal", "stringify"},
	"validate":  {"verify", "check", "sanitize"},
	"cache":     {"memoize", "store", "buffer"},
	"log":       {"logger", "logging", "trace"},
	"http":      {"web", "rest", "request", "response"},
	"query":     {"search", "find", "lookup"},
	"index":     {"indexing", "catalog", "registry"},
}

// TargetPatterns maps patterns to target types.
var TargetPatterns = map[string]string{
	"function":       TargetFunction,
	"func":           TargetFunction,
	"method":         TargetFunction,
	"procedure":      TargetFunction,
	"class":          TargetClass,
	"struct":         TargetClass,
	"type":           TargetClass,
	"interface":      TargetClass,
	"variable":       TargetVariable,
	"var":            TargetVariable,
	"const":          TargetVariable,
	"constant":       TargetVariable,
	"file":           TargetFile,
	"files":          TargetFile,
	"error":          TargetError,
	"exception":      TargetError,
	"panic":          TargetError,
	"test":           TargetTest,
	"tests":          TargetTest,
	"unittest":       TargetTest,
	"config":         TargetConfig,
	"configuration":  TargetConfig,
	"settings":       TargetConfig,
	"api":            TargetAPI,
	"endpoint":       TargetAPI,
	"route":          TargetAPI,
	"handler":        TargetAPI,
	"database":       TargetDatabase,
	"db":             TargetDatabase,
	"storage":        TargetDatabase,
	"auth":           TargetAuth,
	"authentication": TargetAuth,
	"authorization":  TargetAuth,
	"login":          TargetAuth,
}

// IsCodeTerm checks if a term is a known code-specific term.
func IsCodeTerm(term string) bool {
	lower := strings.ToLower(term)
	_, exists := CodeTerms[lower]
	return exists
}

// GetSynonyms returns synonyms for a code term.
func GetSynonyms(term string) []string {
	lower := strings.ToLower(term)
	if synonyms, ok := CodeTerms[lower]; ok {
		return synonyms
	}
	return nil
}

// DetectTargetType detects what the user is looking for.
func DetectTargetType(text string) string {
	lower := strings.ToLower(text)

	// Check target types in a fixed priority order, so text matching
	// several patterns always yields the same target
	priority := []string{TargetError, TargetTest, TargetAuth, TargetConfig, TargetAPI,
		TargetDatabase, TargetFunction, TargetClass, TargetVariable, TargetFile}
	for _, target := range priority {
		for pattern, t := range TargetPatterns {
			if t == target && strings.Contains(lower, pattern) {
				return target
			}
		}
	}

	return TargetUnknown
}
