package sqlite

import "strconv"

// paramCount returns the number of host parameters SQLite allocates for
// query, which is the largest parameter index used.
func paramCount(query string) int {
	return len(paramSlots(query))
}

// paramSlots returns one entry per host parameter index of query. An entry
// holds the parameter's name including its prefix (":a", "@a", "$a") or ""
// for "?", "?NNN" and unused indexes. It follows the engine's numbering: "?"
// takes the next index, "?NNN" uses NNN, and each distinct name takes the
// next index the first time it is seen. Literals, quoted identifiers and
// comments are skipped.
func paramSlots(query string) []string {
	var slots []string
	named := map[string]int{}
	grow := func(n int) {
		for len(slots) < n {
			slots = append(slots, "")
		}
	}

	for i := 0; i < len(query); {
		c := query[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			i = skipQuoted(query, i, c)
		case c == '[':
			i = skipQuoted(query, i, ']')
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			for i < len(query) && query[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			i += 2
			for i+1 < len(query) && !(query[i] == '*' && query[i+1] == '/') {
				i++
			}
			i += 2
		case c == '?':
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			if j > i+1 {
				if n, err := strconv.Atoi(query[i+1 : j]); err == nil {
					grow(n)
				}
			} else {
				grow(len(slots) + 1)
			}
			i = j
		case c == '$' && i > 0 && isIdentChar(query[i-1]):
			// part of an identifier such as a$b
			i++
		case c == ':' || c == '@' || c == '$':
			j := i + 1
			for j < len(query) && isIdentChar(query[j]) {
				j++
			}
			if j == i+1 {
				i++
				continue
			}
			name := query[i:j]
			if _, seen := named[name]; !seen {
				slots = append(slots, name)
				named[name] = len(slots)
			}
			i = j
		default:
			i++
		}
	}
	return slots
}

// skipQuoted returns the index just past the quoted run starting at start.
// A doubled closing quote is an escaped quote.
func skipQuoted(query string, start int, closing byte) int {
	i := start + 1
	for i < len(query) {
		if query[i] == closing {
			if closing != ']' && i+1 < len(query) && query[i+1] == closing {
				i += 2
				continue
			}
			return i + 1
		}
		i++
	}
	return i
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentChar(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
