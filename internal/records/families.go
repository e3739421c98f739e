package records

// Operation families. Extraction dispatches on the family so new
// operation types can be supported by registering a handler instead of
// growing a conditional chain; anything unmatched falls through to the
// generic extractor.

// maxEmailDetails caps the per-record message list for mail-access
// operations.
const maxEmailDetails = 3

// Extractor fills family-specific fields on a record from its parsed
// payload. The payload may be nil.
type Extractor func(rec *Record, audit map[string]any)

type familyHandler struct {
	name    string
	match   func(operation string, audit map[string]any) bool
	extract Extractor
}

var families []familyHandler

// RegisterFamily adds a handler consulted before the generic fallback.
// Handlers are tried in registration order; the first match wins.
func RegisterFamily(name string, match func(operation string, audit map[string]any) bool, extract Extractor) {
	families = append(families, familyHandler{name: name, match: match, extract: extract})
}

func init() {
	RegisterFamily("mail-access", func(op string, audit map[string]any) bool {
		return op == "MailItemsAccessed" && len(jsonSlice(audit, "Folders")) > 0
	}, extractMailAccess)

	RegisterFamily("rule-change", func(op string, audit map[string]any) bool {
		return (op == "New-InboxRule" || op == "Set-InboxRule") && audit != nil && audit["Parameters"] != nil
	}, extractRuleChange)

	RegisterFamily("deletion", func(op string, audit map[string]any) bool {
		return op == "SoftDelete" || op == "HardDelete" || op == "MoveToDeletedItems"
	}, extractDeletion)

	RegisterFamily("threat-intel", func(op string, audit map[string]any) bool {
		return op == "TIMailData"
	}, extractThreatIntel)

	RegisterFamily("update", func(op string, audit map[string]any) bool {
		return op == "Update"
	}, extractUpdate)
}

// extractorFor returns the first registered handler matching the
// operation, or the generic extractor.
func extractorFor(operation string, audit map[string]any) Extractor {
	for _, h := range families {
		if h.match(operation, audit) {
			return h.extract
		}
	}
	return extractGeneric
}

// extractMailAccess walks the Folders structure of MailItemsAccessed
// payloads, keeping up to maxEmailDetails touched messages. The record
// subject and folder come from the first message.
func extractMailAccess(rec *Record, audit map[string]any) {
	for _, f := range jsonSlice(audit, "Folders") {
		fm, ok := f.(map[string]any)
		if !ok {
			continue
		}
		path := jsonString(fm, "Path")
		for _, it := range jsonSlice(fm, "FolderItems") {
			if len(rec.EmailDetails) >= maxEmailDetails {
				break
			}
			im, ok := it.(map[string]any)
			if !ok {
				continue
			}
			rec.EmailDetails = append(rec.EmailDetails, EmailDetail{
				Timestamp: rec.TimestampRaw,
				Subject:   jsonString(im, "Subject"),
				Folder:    path,
				Size:      jsonInt64(im, "SizeInBytes"),
			})
		}
		if len(rec.EmailDetails) >= maxEmailDetails {
			break
		}
	}
	if len(rec.EmailDetails) > 0 {
		rec.Subject = rec.EmailDetails[0].Subject
		rec.Folder = rec.EmailDetails[0].Folder
	}
}

// extractRuleChange flattens the Parameters name/value list of inbox
// rule operations into a readable subject and origin.
func extractRuleChange(rec *Record, audit map[string]any) {
	params := map[string]string{}
	for _, p := range jsonSlice(audit, "Parameters") {
		pm, ok := p.(map[string]any)
		if !ok {
			continue
		}
		params[jsonString(pm, "Name")] = jsonString(pm, "Value")
	}

	name := params["Name"]
	from := params["From"]
	identity := params["Identity"]

	if name != "" {
		rec.Subject = "Rule: " + name
	} else {
		rec.Subject = "Inbox Rule"
	}
	if from != "" {
		rec.Folder = "From: " + from
	}

	if name != "" || from != "" {
		detail := EmailDetail{Timestamp: rec.TimestampRaw}
		if name != "" {
			detail.Subject = "Rule: " + name
		} else {
			detail.Subject = "Inbox Rule Change"
		}
		switch {
		case from != "":
			detail.Folder = "From: " + from
		case identity != "":
			detail.Folder = identity
		default:
			detail.Folder = "N/A"
		}
		rec.EmailDetails = append(rec.EmailDetails, detail)
	}
}

// extractDeletion reads the deleted messages from AffectedItems,
// falling back to the single-item form some deletion payloads use.
func extractDeletion(rec *Record, audit map[string]any) {
	if affected := jsonSlice(audit, "AffectedItems"); len(affected) > 0 {
		if am, ok := affected[0].(map[string]any); ok {
			fillFromItem(rec, am)
			return
		}
	}
	if item := jsonMap(audit, "Item"); item != nil {
		fillFromItem(rec, item)
		return
	}
	extractGeneric(rec, audit)
}

// extractThreatIntel reads TIMailData payloads, which describe the
// message at the top level rather than under Item.
func extractThreatIntel(rec *Record, audit map[string]any) {
	rec.Subject = jsonString(audit, "Subject")
	if rec.Subject != "" {
		rec.EmailDetails = append(rec.EmailDetails, EmailDetail{
			Timestamp: rec.TimestampRaw,
			Subject:   rec.Subject,
		})
	}
}

// extractUpdate reads item updates, which always carry an Item block.
func extractUpdate(rec *Record, audit map[string]any) {
	if item := jsonMap(audit, "Item"); item != nil {
		fillFromItem(rec, item)
		return
	}
	extractGeneric(rec, audit)
}

// extractGeneric surfaces the fields common across operation types:
// a top-level subject, or the Item / first AffectedItems entry.
func extractGeneric(rec *Record, audit map[string]any) {
	subject := jsonString(audit, "Subject")

	var folder string
	var size int64
	if item := jsonMap(audit, "Item"); item != nil {
		if subject == "" {
			subject = jsonString(item, "Subject")
		}
		folder = jsonString(jsonMap(item, "ParentFolder"), "Path")
		size = jsonInt64(item, "SizeInBytes")
	} else if affected := jsonSlice(audit, "AffectedItems"); len(affected) > 0 {
		if am, ok := affected[0].(map[string]any); ok {
			if subject == "" {
				subject = jsonString(am, "Subject")
			}
			folder = jsonString(jsonMap(am, "ParentFolder"), "Path")
			size = jsonInt64(am, "SizeInBytes")
		}
	}

	rec.Subject = subject
	rec.Folder = folder
	rec.Size = size

	if subject != "" || folder != "" || size != 0 {
		rec.EmailDetails = append(rec.EmailDetails, EmailDetail{
			Timestamp: rec.TimestampRaw,
			Subject:   subject,
			Folder:    folder,
			Size:      size,
		})
	}
}

// fillFromItem copies the common message fields out of an Item or
// AffectedItems entry and records the matching email detail.
func fillFromItem(rec *Record, item map[string]any) {
	rec.Subject = jsonString(item, "Subject")
	rec.Folder = jsonString(jsonMap(item, "ParentFolder"), "Path")
	rec.Size = jsonInt64(item, "SizeInBytes")

	if rec.Subject != "" || rec.Folder != "" || rec.Size != 0 {
		rec.EmailDetails = append(rec.EmailDetails, EmailDetail{
			Timestamp: rec.TimestampRaw,
			Subject:   rec.Subject,
			Folder:    rec.Folder,
			Size:      rec.Size,
		})
	}
}
