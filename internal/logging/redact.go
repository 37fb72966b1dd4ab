package logging

import (
	"log/slog"
	"strings"
)

const redacted = "[redacted]"

// secretKeys are attribute names whose values never reach a log sink. Source
// credentials travel through config dumps and request logs under these names.
var secretKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"password":      {},
	"token":         {},
	"api_token":     {},
	"authorization": {},
}

func isSecretKey(key string) bool {
	if i := strings.LastIndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}
	_, ok := secretKeys[strings.ToLower(key)]
	return ok
}

// redact masks secret attribute values, leaving empty values visible so a
// missing credential still shows up as missing.
func redact(attr slog.Attr) slog.Attr {
	if !isSecretKey(attr.Key) || attr.Value.Kind() == slog.KindGroup {
		return attr
	}
	if attr.Value.Kind() == slog.KindString && attr.Value.String() == "" {
		return attr
	}
	attr.Value = slog.StringValue(redacted)
	return attr
}
