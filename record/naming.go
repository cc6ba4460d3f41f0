package record

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// tableName derives the table for an entity type name: "TaskComment" becomes
// "task_comments".
func tableName(name string) string {
	snake := toSnake(name)
	if snake == "" {
		return ""
	}
	i := strings.LastIndexByte(snake, '_')
	return snake[:i+1] + inflection.Plural(snake[i+1:])
}

// toSnake converts s to snake_case. Acronyms stay together ("HTTPRequest"
// becomes "http_request") and anything that is not a letter or digit turns
// into a single separator.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	sep := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLower(r):
			b.WriteRune(r)
		case unicode.IsDigit(r):
			if i > 0 && unicode.IsLetter(runes[i-1]) {
				sep()
			}
			b.WriteRune(r)
		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}
