package logx

import "strings"

// Redacted replaces the value of every sensitive field.
const Redacted = "[REDACTED]"

// sensitiveSuffixes mark fields that carry credentials. A key matches when
// it ends with one of them, so "new_password" and "access_token" match.
var sensitiveSuffixes = []string{"password", "secret", "token", "authorization", "credential"}

type redactor struct {
	extra map[string]struct{}
}

func newRedactor(keys []string) redactor {
	extra := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			extra[k] = struct{}{}
		}
	}
	return redactor{extra: extra}
}

func (r redactor) sensitive(key string) bool {
	key = strings.ToLower(key)
	if _, ok := r.extra[key]; ok {
		return true
	}
	for _, s := range sensitiveSuffixes {
		if strings.HasSuffix(key, s) {
			return true
		}
	}
	return false
}

// apply masks sensitive values in place. fields must be owned by the caller.
func (r redactor) apply(fields Fields) {
	for k := range fields {
		if r.sensitive(k) {
			fields[k] = Redacted
		}
	}
}
