package sqlerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExecutionError(t *testing.T) {
	cause := errors.New("relation \"nope\" does not exist")
	err := fmt.Errorf("materialize: %w", &ExecutionError{Query: "SELECT * FROM nope WHERE id = ?", Err: cause})

	if !IsExecution(err) {
		t.Fatalf("IsExecution(%v) = false", err)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the backend error")
	}
	if !strings.Contains(err.Error(), "SELECT * FROM nope") {
		t.Errorf("error text %q does not carry the query", err.Error())
	}
	if IsCursor(err) || IsMalformed(err) {
		t.Error("execution error classified as another kind")
	}
}

func TestCursorError(t *testing.T) {
	cause := errors.New("conversion failed")
	err := &CursorError{Query: "SELECT 1", RowIndex: 41, Err: cause}

	if !IsCursor(err) {
		t.Fatal("IsCursor() = false")
	}
	if !strings.Contains(err.Error(), "row 41") {
		t.Errorf("error text %q does not carry the row index", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the fetch error")
	}
}

func TestMalformed(t *testing.T) {
	err := Malformed("from requires at least %d table", 1)
	if err.Error() != "malformed query: from requires at least 1 table" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !IsMalformed(fmt.Errorf("build: %w", err)) {
		t.Error("IsMalformed() = false for wrapped error")
	}
}
