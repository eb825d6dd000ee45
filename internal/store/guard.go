package store

import (
	"strings"

	"cashops/internal/domain"
)

// The keyword scan below is a best-effort guard: string matching cannot
// catch every mutation form SQLite accepts (ATTACH of a writable database,
// exotic PRAGMAs, and so on). It exists to give the caller a precise
// ForbiddenOperation instead of a driver error; the real security boundary
// is the query_only read-only connection the statement runs on.

var mutationKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER",
	"REPLACE", "TRUNCATE", "ATTACH", "DETACH", "VACUUM", "REINDEX", "PRAGMA",
}

var retrievalKeywords = []string{"SELECT", "WITH", "EXPLAIN", "VALUES"}

// CheckReadOnly rejects a statement submitted to the read tool when it is
// not a single retrieval statement.
func CheckReadOnly(statement string) error {
	if err := CheckSingleStatement(statement); err != nil {
		return err
	}

	upper := strings.ToUpper(statement)
	for _, kw := range mutationKeywords {
		if containsKeyword(upper, kw) {
			return domain.NewError(domain.ErrForbiddenOperation,
				"%s is not allowed through the read-only tool; use write_query", kw)
		}
	}

	first := firstKeyword(upper)
	for _, kw := range retrievalKeywords {
		if first == kw {
			return nil
		}
	}
	return domain.NewError(domain.ErrForbiddenOperation,
		"only retrieval statements are allowed through the read-only tool")
}

// CheckSingleStatement rejects batches: both tools accept exactly one
// statement per call.
func CheckSingleStatement(statement string) error {
	if strings.TrimSpace(statement) == "" {
		return domain.NewError(domain.ErrInvalidArguments, "statement is empty")
	}
	rest := strings.TrimSpace(trimQuoted(statement))
	// A single trailing terminator is fine; anything after it is a batch.
	if i := strings.IndexByte(rest, ';'); i >= 0 && strings.TrimSpace(rest[i+1:]) != "" {
		return domain.NewError(domain.ErrForbiddenOperation,
			"multiple statements are not allowed in a single call")
	}
	return nil
}

// trimQuoted blanks out single- and double-quoted regions so that keyword
// and separator scanning cannot be confused by string literals.
func trimQuoted(s string) string {
	out := []byte(s)
	var quote byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			out[i] = ' '
			continue
		}
		if c == '\'' || c == '"' {
			quote = c
			out[i] = ' '
		}
	}
	return string(out)
}

// containsKeyword reports whether kw occurs as a standalone word outside of
// string literals.
func containsKeyword(upper, kw string) bool {
	clean := trimQuoted(upper)
	for start := 0; ; {
		i := strings.Index(clean[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || !isWordByte(clean[i-1])
		after := i+len(kw) == len(clean) || !isWordByte(clean[i+len(kw)])
		if before && after {
			return true
		}
		start = i + len(kw)
	}
}

func firstKeyword(upper string) string {
	fields := strings.Fields(trimQuoted(upper))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimLeft(fields[0], "(")
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}
