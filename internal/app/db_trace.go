package app

import "strings"

// Span attributes get the query with runs of whitespace collapsed and
// the tail cut off so bulk snapshot inserts do not bloat trace storage.
const tracedQueryLimit = 512

func formatDBQueryForTrace(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	normalized := strings.Join(fields, " ")
	if len(normalized) > tracedQueryLimit {
		return normalized[:tracedQueryLimit] + "..."
	}
	return normalized
}
