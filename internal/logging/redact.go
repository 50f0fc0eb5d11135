// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 campusid Contributors

package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces the value of a credential attribute.
const RedactedValue = "***REDACTED***"

// sensitiveKeys are matched as substrings of lower-cased attribute keys.
var sensitiveKeys = []string{
	"password",
	"secret",
	"credential",
	"token",
}

// IsSensitiveKey reports whether an attribute key names a credential.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

func redact(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			out[i] = redact(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	if IsSensitiveKey(a.Key) && !isEmpty(a.Value) {
		return slog.String(a.Key, RedactedValue)
	}
	if a.Value.Kind() == slog.KindAny {
		if m, ok := a.Value.Any().(map[string]any); ok {
			return slog.Any(a.Key, redactMap(m))
		}
	}
	return a
}

// redactMap covers oops context maps logged as a single attribute.
func redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch {
		case IsSensitiveKey(k):
			out[k] = RedactedValue
		default:
			if nested, ok := v.(map[string]any); ok {
				v = redactMap(nested)
			}
			out[k] = v
		}
	}
	return out
}

func isEmpty(v slog.Value) bool {
	return v.Kind() == slog.KindString && v.String() == ""
}
