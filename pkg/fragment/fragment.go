// Package fragment provides the accumulated SQL text and ordered bind
// parameters that every query builder step produces.
package fragment

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Placeholder is the positional placeholder written by the builders.
const Placeholder = "?"

// Style identifies how a backend expects positional placeholders.
type Style int

const (
	// StyleQuestion keeps `?` placeholders (DuckDB, SQLite, MySQL, Snowflake).
	StyleQuestion Style = iota
	// StyleDollar rewrites placeholders to `$1..$n` (PostgreSQL).
	StyleDollar
)

// Fragment is SQL text plus the parameters bound to its placeholders, in
// placeholder order. The zero value is an empty fragment.
//
// Fragments have value semantics: every method returns a new Fragment and
// never mutates the receiver's parameter slice.
type Fragment struct {
	Text   string
	Params []any
}

// New creates a fragment from text and parameters.
func New(text string, params ...any) Fragment {
	return Fragment{Text: text, Params: copyParams(params)}
}

// Append returns a fragment with text and params appended after the
// receiver's own.
func (f Fragment) Append(text string, params ...any) Fragment {
	out := make([]any, 0, len(f.Params)+len(params))
	out = append(out, f.Params...)
	out = append(out, params...)
	return Fragment{Text: f.Text + text, Params: out}
}

// AppendFragment appends another fragment's text and params.
func (f Fragment) AppendFragment(other Fragment) Fragment {
	return f.Append(other.Text, other.Params...)
}

// Wrap returns the fragment parenthesized. A trailing line comment or
// statement terminator is dropped first so the closing parenthesis is not
// swallowed by it.
func (f Fragment) Wrap() Fragment {
	return Fragment{Text: "(" + trimTail(f.Text) + ")", Params: copyParams(f.Params)}
}

// IsEmpty reports whether the fragment has no text.
func (f Fragment) IsEmpty() bool {
	return strings.TrimSpace(f.Text) == ""
}

// IsSubquery reports whether the fragment is a parenthesized subquery.
func (f Fragment) IsSubquery() bool {
	t := strings.TrimSpace(f.Text)
	return len(t) >= 2 && strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")")
}

// AsSource renders the fragment for use in a FROM clause. Only a
// parenthesized subquery receives the alias; anything else is returned
// unchanged.
func (f Fragment) AsSource(alias string) Fragment {
	if !f.IsSubquery() || alias == "" {
		return f
	}
	return Fragment{Text: strings.TrimSpace(f.Text) + " AS " + alias, Params: copyParams(f.Params)}
}

// Validate checks that the number of placeholders matches the parameters.
func (f Fragment) Validate() error {
	if n := Count(f.Text); n != len(f.Params) {
		return fmt.Errorf("fragment has %d placeholders but %d parameters", n, len(f.Params))
	}
	return nil
}

// Rebind rewrites placeholders for the given style.
func (f Fragment) Rebind(style Style) Fragment {
	if style == StyleQuestion {
		return f
	}
	var b strings.Builder
	b.Grow(len(f.Text) + 4*len(f.Params))
	n := 0
	scan(f.Text, func(i int) {
		n++
		b.WriteString("$")
		b.WriteString(strconv.Itoa(n))
	}, func(c byte) {
		b.WriteByte(c)
	})
	return Fragment{Text: b.String(), Params: copyParams(f.Params)}
}

// String returns the SQL text. Parameters are deliberately left out so the
// result is safe to log.
func (f Fragment) String() string {
	return f.Text
}

// Count returns the number of positional placeholders in text, ignoring
// quoted literals, quoted identifiers and line comments.
func Count(text string) int {
	n := 0
	scan(text, func(int) { n++ }, nil)
	return n
}

// NewAlias returns a generated alias for a subquery source.
func NewAlias() string {
	return "_sq_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// trimTail strips trailing whitespace, `;` terminators and a line comment
// still open at the end of text.
func trimTail(text string) string {
	for {
		t := strings.TrimRightFunc(text, unicode.IsSpace)
		if start := scan(t, func(int) {}, nil); start >= 0 {
			text = t[:start]
			continue
		}
		if strings.HasSuffix(t, ";") {
			text = t[:len(t)-1]
			continue
		}
		return t
	}
}

// scan walks text and calls onPlaceholder for every `?` outside literals,
// identifiers and comments. Every other byte goes to onByte when set. It
// returns the offset of a line comment left open at the end of text, or -1.
func scan(text string, onPlaceholder func(i int), onByte func(c byte)) int {
	emit := func(c byte) {
		if onByte != nil {
			onByte(c)
		}
	}
	var quote byte
	comment := -1
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case comment >= 0:
			if c == '\n' {
				comment = -1
			}
			emit(c)
		case quote != 0:
			emit(c)
			if c == quote {
				// doubled quote is an escaped quote inside the literal
				if i+1 < len(text) && text[i+1] == quote {
					i++
					emit(text[i])
					continue
				}
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
			emit(c)
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			comment = i
			emit(c)
		case c == '?':
			onPlaceholder(i)
		default:
			emit(c)
		}
	}
	return comment
}

func copyParams(params []any) []any {
	if len(params) == 0 {
		return nil
	}
	out := make([]any, len(params))
	copy(out, params)
	return out
}
