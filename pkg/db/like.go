package db

import "strings"

// EscapeLike neutralises LIKE metacharacters for patterns used with ESCAPE '!'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
