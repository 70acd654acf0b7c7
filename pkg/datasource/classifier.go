package datasource

import (
	"strings"
)

// StatementType is the category of a SQL statement.
type StatementType int

// Statement types.
const (
	StatementTypeQuery       StatementType = iota // SELECT, WITH, SHOW, DESCRIBE, ...
	StatementTypeDML                              // INSERT, UPDATE, DELETE
	StatementTypeDDL                              // CREATE, DROP, ALTER
	StatementTypeTransaction                      // BEGIN, COMMIT, ROLLBACK
	StatementTypeTableName                        // a bare table reference
)

// String returns the statement type name.
func (t StatementType) String() string {
	switch t {
	case StatementTypeQuery:
		return "query"
	case StatementTypeDML:
		return "dml"
	case StatementTypeDDL:
		return "ddl"
	case StatementTypeTransaction:
		return "transaction"
	case StatementTypeTableName:
		return "table"
	default:
		return "unknown"
	}
}

var (
	queryPrefixes       = []string{"SELECT", "WITH", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "VALUES", "TABLE", "FROM", "("}
	ddlPrefixes         = []string{"CREATE", "DROP", "ALTER", "TRUNCATE", "COMMENT"}
	transactionPrefixes = []string{"BEGIN", "START TRANSACTION", "COMMIT", "ROLLBACK"}
)

// Classify returns the category of text. A single token that is not a
// statement keyword is taken to be a table reference.
func Classify(text string) StatementType {
	upper := strings.ToUpper(strings.TrimSpace(text))

	switch {
	case hasKeyword(upper, queryPrefixes):
		return StatementTypeQuery
	case hasKeyword(upper, ddlPrefixes):
		return StatementTypeDDL
	case hasKeyword(upper, transactionPrefixes):
		return StatementTypeTransaction
	case upper != "" && !strings.ContainsAny(upper, " \t\r\n();"):
		return StatementTypeTableName
	default:
		return StatementTypeDML
	}
}

// IsQuery reports whether text is a statement returning rows.
func IsQuery(text string) bool {
	return Classify(text) == StatementTypeQuery
}

// hasKeyword reports whether upper starts with one of prefixes followed by
// a word boundary.
func hasKeyword(upper string, prefixes []string) bool {
	for _, p := range prefixes {
		if !strings.HasPrefix(upper, p) {
			continue
		}
		if p == "(" || len(upper) == len(p) {
			return true
		}
		switch upper[len(p)] {
		case ' ', '\t', '\r', '\n', '(', ';':
			return true
		}
	}
	return false
}
