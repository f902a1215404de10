package csvflow

import "strings"

// Parse turns the tokens of one record into field values. Quoted tokens have their
// doubled quotes collapsed and are never trimmed; unquoted tokens are trimmed only
// when strip is set.
func Parse(tokens []Token, strip bool) []string {
	fields := make([]string, len(tokens))
	for i, tok := range tokens {
		switch {
		case tok.Quoted:
			fields[i] = unescape(tok.Text)
		case strip:
			fields[i] = strings.TrimSpace(tok.Text)
		default:
			fields[i] = tok.Text
		}
	}
	return fields
}

func unescape(s string) string {
	if !strings.Contains(s, `""`) {
		return s
	}
	return strings.ReplaceAll(s, `""`, `"`)
}
