package sqlexec

import (
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm/clause"

	"generic-role-provider/internal/core/domain"
)

// command is command text split around its @i placeholders. It builds as a
// clause.Expression, so each placeholder becomes the dialect's own bind var
// (? on SQLite and MySQL, $n on Postgres, @pn on SQL Server).
type command struct {
	parts []commandPart
	args  []any
}

// commandPart is literal text when arg is negative, otherwise the index of
// the argument bound in its place.
type commandPart struct {
	text string
	arg  int
}

// parseCommand finds every @i placeholder outside 'literals', "quoted",
// `quoted` and [bracketed] identifiers, and comments. A placeholder is @
// followed by digits and ends at the first non-digit. @@name and name@0 are
// left as they are.
func parseCommand(text string, args []any) (command, error) {
	cmd := command{args: args}
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			cmd.parts = append(cmd.parts, commandPart{text: lit.String(), arg: -1})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := closingQuote(text, i)
			lit.WriteString(text[i:end])
			i = end
		case c == '-' && strings.HasPrefix(text[i:], "--"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			lit.WriteString(text[i : i+end])
			i += end
		case c == '/' && strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				end = len(text)
			} else {
				end = i + 2 + end + 2
			}
			lit.WriteString(text[i:end])
			i = end
		case c == '@' && i+1 < len(text) && text[i+1] == '@':
			lit.WriteString("@@")
			i += 2
		case c == '@' && i+1 < len(text) && isDigit(text[i+1]) && (i == 0 || !isWordByte(text[i-1])):
			j := i + 1
			for j < len(text) && isDigit(text[j]) {
				j++
			}
			n, err := strconv.Atoi(text[i+1 : j])
			if err != nil || n >= len(args) {
				return command{}, fmt.Errorf("%w: parameter %s has no argument (%d given)", domain.ErrInvalidInput, text[i:j], len(args))
			}
			flush()
			cmd.parts = append(cmd.parts, commandPart{arg: n})
			i = j
		default:
			lit.WriteByte(c)
			i++
		}
	}
	flush()
	return cmd, nil
}

// closingQuote returns the offset just past the literal opened at start. A
// doubled closing character is an escaped one. An unterminated literal runs
// to the end of text.
func closingQuote(text string, start int) int {
	closer := text[start]
	if closer == '[' {
		closer = ']'
	}
	for i := start + 1; i < len(text); i++ {
		if text[i] != closer {
			continue
		}
		if i+1 < len(text) && text[i+1] == closer {
			i++
			continue
		}
		return i + 1
	}
	return len(text)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordByte(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// Build writes the text with every placeholder bound through the dialect.
func (c command) Build(builder clause.Builder) {
	for _, part := range c.parts {
		if part.arg < 0 {
			builder.WriteString(part.text)
			continue
		}
		builder.AddVar(builder, c.args[part.arg])
	}
}

// expr is the argument list for gorm's Raw and Exec: a lone ? standing for
// the whole command, so gorm never reinterprets @ or ? in the text itself.
func (c command) expr() (string, []any) {
	return "?", []any{c}
}
