package fragment

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestCount tests placeholder counting outside quoted text.
func TestCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "Empty", text: "", want: 0},
		{name: "NoPlaceholders", text: "SELECT * FROM parcels WHERE area > 100", want: 0},
		{name: "Two", text: "area > ? AND owner = ?", want: 2},
		{name: "InsideLiteral", text: "owner = '?' AND area > ?", want: 1},
		{name: "EscapedQuote", text: "owner = 'it''s ?' AND id = ?", want: 1},
		{name: "QuotedIdentifier", text: `"what?" = ?`, want: 1},
		{name: "LineComment", text: "id = ? -- why?\nAND x = ?", want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Count(tt.text); got != tt.want {
				t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

// TestFragment_Append tests that append preserves parameter order and leaves the receiver untouched.
func TestFragment_Append(t *testing.T) {
	base := New("a = ?", 1)
	next := base.Append(" AND b = ?", "two")

	if diff := cmp.Diff([]any{1, "two"}, next.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{1}, base.Params); diff != "" {
		t.Errorf("receiver mutated (-want +got):\n%s", diff)
	}
	if next.Text != "a = ? AND b = ?" {
		t.Errorf("Text = %q", next.Text)
	}
	if err := next.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// TestFragment_Validate tests the placeholder/parameter invariant check.
func TestFragment_Validate(t *testing.T) {
	if err := New("a = ? AND b = ?", 1).Validate(); err == nil {
		t.Error("expected error for missing parameter, got nil")
	}
	if err := New("a = 1", 1).Validate(); err == nil {
		t.Error("expected error for extra parameter, got nil")
	}
}

// TestFragment_AsSource tests alias assignment for subqueries only.
func TestFragment_AsSource(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "Subquery", text: "(SELECT * FROM parcels)", want: "(SELECT * FROM parcels) AS t1"},
		{name: "PlainTable", text: "parcels", want: "parcels"},
		{name: "OpenOnly", text: "(SELECT 1", want: "(SELECT 1"},
		{name: "CloseOnly", text: "count(x)", want: "count(x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.text).AsSource("t1").Text
			if got != tt.want {
				t.Errorf("AsSource() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestFragment_Wrap tests that trailing comments and terminators stay
// outside the parentheses.
func TestFragment_Wrap(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "Plain", text: "SELECT id FROM parcels", want: "(SELECT id FROM parcels)"},
		{name: "Terminator", text: "SELECT id FROM parcels;  ", want: "(SELECT id FROM parcels)"},
		{name: "TrailingComment", text: "SELECT id FROM parcels -- all rows", want: "(SELECT id FROM parcels)"},
		{name: "CommentAfterTerminator", text: "SELECT id FROM parcels; -- done\n", want: "(SELECT id FROM parcels)"},
		{name: "InnerComment", text: "SELECT id -- key\nFROM parcels", want: "(SELECT id -- key\nFROM parcels)"},
		{name: "DashesInLiteral", text: "SELECT '--;' AS x", want: "(SELECT '--;' AS x)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.text).Wrap().Text; got != tt.want {
				t.Errorf("Wrap() = %q, want %q", got, tt.want)
			}
		})
	}

	f := New("SELECT * FROM parcels WHERE id = ? -- why?", 7).Wrap()
	if err := f.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

// TestFragment_Rebind tests dollar placeholder rewriting.
func TestFragment_Rebind(t *testing.T) {
	f := New("SELECT * FROM t WHERE a = ? AND b = '?' AND c = ?", 1, 2)

	got := f.Rebind(StyleDollar)
	want := "SELECT * FROM t WHERE a = $1 AND b = '?' AND c = $2"
	if got.Text != want {
		t.Errorf("Rebind() = %q, want %q", got.Text, want)
	}
	if diff := cmp.Diff(f.Params, got.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}

	if same := f.Rebind(StyleQuestion); same.Text != f.Text {
		t.Errorf("Rebind(StyleQuestion) changed text to %q", same.Text)
	}
}

// TestNewAlias tests generated aliases are distinct identifiers.
func TestNewAlias(t *testing.T) {
	a, b := NewAlias(), NewAlias()
	if a == b {
		t.Errorf("NewAlias() returned the same alias twice: %s", a)
	}
	if !strings.HasPrefix(a, "_sq_") {
		t.Errorf("NewAlias() = %q, want _sq_ prefix", a)
	}
}
