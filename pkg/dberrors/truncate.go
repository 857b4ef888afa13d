package dberrors

import (
	json "github.com/goccy/go-json"
)

// MaxLoggedLen bounds the length of statement text and serialized
// parameters in error details and log records.
const MaxLoggedLen = 512

// TruncateStatement returns the statement text bounded to MaxLoggedLen
// bytes, with a marker when truncation occurred.
func TruncateStatement(statement string) string {
	return truncate(statement, MaxLoggedLen)
}

// TruncateParams serializes query parameters to JSON and bounds the result
// to MaxLoggedLen bytes. Parameters that cannot be serialized are reported
// as a placeholder rather than failing the caller.
func TruncateParams(params []interface{}) string {
	if len(params) == 0 {
		return "[]"
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "[unserializable params]"
	}
	return truncate(string(data), MaxLoggedLen)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "... (truncated)"
}
