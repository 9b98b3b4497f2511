package parse

import (
	"strconv"
	"strings"
)

// SearchTerm is a normalized free-text search string.
type SearchTerm struct {
	lower   string
	number  uint64
	numeric bool
}

// Search normalizes raw user input. Surrounding and repeated inner whitespace
// is collapsed; a term made only of digits is also usable as an id.
func Search(raw string) SearchTerm {
	s := strings.Join(strings.Fields(raw), " ")
	term := SearchTerm{lower: strings.ToLower(s)}
	if s != "" {
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			term.number = n
			term.numeric = true
		}
	}
	return term
}

// Empty reports whether there is nothing to search for.
func (s SearchTerm) Empty() bool { return s.lower == "" }

// Lower returns the lower-cased term.
func (s SearchTerm) Lower() string { return s.lower }

// Number returns the term as an id when it is purely numeric.
func (s SearchTerm) Number() (uint64, bool) { return s.number, s.numeric }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern returns a lower-cased substring pattern for SQL LIKE. Wildcard
// characters in the term are escaped so they match literally.
func (s SearchTerm) LikePattern() string { return "%" + likeEscaper.Replace(s.lower) + "%" }

// LikeAny builds "LOWER(col) LIKE ? ESCAPE '\' OR ..." over columns. Each
// placeholder takes LikePattern.
func LikeAny(columns ...string) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = "LOWER(" + col + ") LIKE ? ESCAPE '\\'"
	}
	return strings.Join(parts, " OR ")
}
