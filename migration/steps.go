package migration

import (
	"encoding/json"
	"strconv"
	"time"
)

// DefaultSteps lists every schema change in order.
func DefaultSteps() []Step {
	return []Step{
		{Version: 1, Description: "default deleted and status fields", Up: ensureLifecycleFields},
		{Version: 2, Description: "timestamps as RFC 3339 strings; deletedAt tracks deleted", Up: normalizeTimestamps},
	}
}

// ensureLifecycleFields fills deleted=false and status="draft" where absent.
func ensureLifecycleFields(records []Record, _ time.Time) ([]Record, error) {
	for _, r := range records {
		if r == nil {
			continue
		}
		if v, ok := r["deleted"]; !ok || v == nil {
			r["deleted"] = false
		}
		if s, ok := r["status"]; !ok || s == nil || s == "" {
			r["status"] = "draft"
		}
	}
	return records, nil
}

// normalizeTimestamps rewrites epoch-millisecond and date-only timestamps as
// RFC 3339 and makes deletedAt present exactly when deleted is true.
func normalizeTimestamps(records []Record, now time.Time) ([]Record, error) {
	out := records[:0]
	for _, r := range records {
		if r == nil {
			continue
		}
		for _, key := range []string{"publishDate", "deletedAt"} {
			if v, ok := r[key]; ok && v != nil {
				if ts, ok := toRFC3339(v); ok {
					r[key] = ts
				}
			}
		}

		deleted, _ := r["deleted"].(bool)
		if deleted {
			if v, ok := r["deletedAt"]; !ok || v == nil || v == "" {
				r["deletedAt"] = now.Format(time.RFC3339Nano)
			}
		} else {
			r["deleted"] = false
			r["deletedAt"] = nil
		}
		out = append(out, r)
	}
	return out, nil
}

// toRFC3339 leaves valid RFC 3339 strings untouched so reruns are no-ops.
func toRFC3339(v any) (string, bool) {
	switch t := v.(type) {
	case json.Number:
		ms, err := t.Int64()
		if err != nil {
			f, ferr := t.Float64()
			if ferr != nil {
				return "", false
			}
			ms = int64(f)
		}
		return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano), true
	case float64:
		return time.UnixMilli(int64(t)).UTC().Format(time.RFC3339Nano), true
	case string:
		if _, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return t, true
		}
		if d, err := time.Parse("2006-01-02", t); err == nil {
			return d.UTC().Format(time.RFC3339Nano), true
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano), true
		}
	}
	return "", false
}
