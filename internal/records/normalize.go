package records

import (
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// Normalize converts one raw row into a Record. The nested AuditData
// payload is parsed exactly once; on parse failure the record keeps
// only its flat-column fields and the failure is counted. Normalization
// never fails outright.
func Normalize(row map[string]string, stats *ParseStats) Record {
	rec := Record{Operation: "Unknown"}
	if op := strings.TrimSpace(row["Operation"]); op != "" {
		rec.Operation = op
	}

	var audit map[string]any
	if raw := strings.TrimSpace(row["AuditData"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &audit); err != nil {
			audit = nil
			if stats != nil {
				stats.JSONFailures++
			}
		}
	}
	rec.Raw = audit

	rec.User = extractUser(row, audit)
	rec.Workload = jsonString(audit, "Workload")
	if rec.Workload == "" {
		rec.Workload = strings.TrimSpace(row["Workload"])
	}
	rec.ClientIP = extractClientIP(row, audit)

	rec.TimestampRaw = extractTimestampRaw(row, audit)
	if rec.TimestampRaw != "" {
		ts, ok := ParseTimestamp(rec.TimestampRaw)
		if ok {
			rec.Timestamp = ts
		} else if stats != nil {
			stats.TimestampFailures++
		}
	}

	extractorFor(rec.Operation, audit)(&rec, audit)

	// SharePoint/OneDrive exports describe files in flat columns.
	if rec.Subject == "" {
		rec.Subject = strings.TrimSpace(row["SourceFileName"])
	}
	if rec.Folder == "" {
		rec.Folder = strings.TrimSpace(row["SourceRelativeUrl"])
	}

	return rec
}

// extractUser resolves the actor identity. Flat columns win over the
// nested payload; the raw UPN is kept as the canonical key.
func extractUser(row map[string]string, audit map[string]any) string {
	if v := strings.TrimSpace(row["MailboxOwnerUPN"]); v != "" {
		return v
	}
	if v := strings.TrimSpace(row["UserId"]); v != "" {
		return v
	}
	if v := jsonString(audit, "MailboxOwnerUPN"); v != "" {
		return v
	}
	return jsonString(audit, "UserId")
}

// extractClientIP picks the source address with a fixed priority:
// the flat ClientIP column, then the nested ClientIP, ClientIPAddress
// and SenderIp payload fields. First non-empty wins. The same row
// always yields the same address.
func extractClientIP(row map[string]string, audit map[string]any) string {
	if v := strings.TrimSpace(row["ClientIP"]); v != "" {
		return v
	}
	for _, key := range []string{"ClientIP", "ClientIPAddress", "SenderIp"} {
		if v := jsonString(audit, key); v != "" {
			return v
		}
	}
	return ""
}

func extractTimestampRaw(row map[string]string, audit map[string]any) string {
	if v := jsonString(audit, "CreationTime"); v != "" {
		return v
	}
	return strings.TrimSpace(row["CreationDate"])
}

// --- payload accessors -------------------------------------------------

// jsonString returns m[key] as a trimmed string; missing keys and
// non-string values yield "".
func jsonString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if s, ok := m[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// jsonInt64 reads a numeric payload value; JSON numbers decode as
// float64, and some exports quote sizes as strings.
func jsonInt64(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return 0
}

func jsonMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	if sub, ok := m[key].(map[string]any); ok {
		return sub
	}
	return nil
}

func jsonSlice(m map[string]any, key string) []any {
	if m == nil {
		return nil
	}
	if s, ok := m[key].([]any); ok {
		return s
	}
	return nil
}
