package records

// Log types recognized by DetectLogType.
const (
	LogTypeEntra    = "entra"
	LogTypeExchange = "exchange"
	LogTypePurview  = "purview"
	LogTypeUnknown  = "unknown"
)

// DetectLogType classifies an export from its header columns. Entra
// sign-in logs carry user/status/application columns; Exchange mailbox
// audits carry MailboxOwnerUPN or ClientInfoString; anything with a
// file name or operation column is treated as a Purview activity
// export.
func DetectLogType(columns []string) string {
	set := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		set[c] = struct{}{}
	}
	has := func(name string) bool {
		_, ok := set[name]
		return ok
	}

	if (has("User") || has("Username")) && has("Status") && has("Application") {
		return LogTypeEntra
	}
	if has("MailboxOwnerUPN") || has("ClientInfoString") {
		return LogTypeExchange
	}
	if has("SourceFileName") || has("Operation") {
		return LogTypePurview
	}
	return LogTypeUnknown
}
