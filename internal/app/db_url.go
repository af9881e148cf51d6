package app

import (
	"net/url"
	"strings"
)

// normalizeDBURL appends disable_prepared_binary_result=yes unless the
// URL already decides, matching what the pgbouncer setup expects.
func normalizeDBURL(raw string, disablePreparedBinaryResult bool) string {
	if !disablePreparedBinaryResult {
		return raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed == nil {
		return raw
	}

	params := parsed.Query()
	if params.Get("disable_prepared_binary_result") != "" {
		return raw
	}
	params.Set("disable_prepared_binary_result", "yes")
	parsed.RawQuery = params.Encode()
	return parsed.String()
}

// dbNameFromURL extracts the database name from either a postgres://
// URL or a key=value DSN, for trace attribution.
func dbNameFromURL(raw string) string {
	raw = strings.TrimSpace(raw)

	if parsed, err := url.Parse(raw); err == nil && parsed != nil && parsed.Scheme != "" {
		if name := strings.TrimPrefix(parsed.Path, "/"); strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}

	for _, pair := range strings.Fields(raw) {
		if value, ok := strings.CutPrefix(pair, "dbname="); ok {
			if name := strings.Trim(value, `"'`); name != "" {
				return name
			}
		}
	}

	return ""
}
