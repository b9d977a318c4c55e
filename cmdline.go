package svcinstall

import "strings"

// quoteArg wraps an argument in double quotes when it contains whitespace
// or quote characters, escaping embedded double quotes and backslashes.
func quoteArg(s string) string {
	if s == "" {
		return `""`
	}
	if !needsQuoting(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}
	b.WriteByte('"')
	return b.String()
}

// needsQuoting checks if an argument contains characters that require quoting
func needsQuoting(s string) bool {
	const special = " \t\n'\"\\$`"
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			return true
		}
	}
	return false
}

// joinCommandLine quotes each element and space-joins them, preserving order.
func joinCommandLine(args []string) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

// splitCommandLine re-tokenizes a quoted command line back into an ordered
// argument sequence. Both double and single quotes delimit a token; a
// backslash escapes the next character inside double quotes or bare text.
// Unescaped spaces outside quotes are delimiters.
func splitCommandLine(line string) []string {
	var args []string
	var cur strings.Builder
	var quote byte
	inToken := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			} else if c == '\\' && quote == '"' && i+1 < len(line) {
				i++
				cur.WriteByte(line[i])
			} else {
				cur.WriteByte(c)
			}
		case c == '"' || c == '\'':
			quote = c
			inToken = true
		case c == '\\' && i+1 < len(line):
			i++
			cur.WriteByte(line[i])
			inToken = true
		case c == ' ' || c == '\t':
			if inToken {
				args = append(args, cur.String())
				cur.Reset()
				inToken = false
			}
		default:
			cur.WriteByte(c)
			inToken = true
		}
	}
	if inToken {
		args = append(args, cur.String())
	}
	return args
}
