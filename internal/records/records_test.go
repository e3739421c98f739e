package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestReadCSV(t *testing.T) {
	input := strings.Join([]string{
		"CreationDate,UserId,Operation",
		"2024-01-15T10:30:00,alice@contoso.com,FileAccessed",
		"2024-01-15T10:31:00,bob@contoso.com",
		"2024-01-15T10:32:00,carol@contoso.com,FileDeleted",
	}, "\n")

	batch, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got, want := len(batch.Columns), 3; got != want {
		t.Errorf("columns = %d, want %d", got, want)
	}
	if got, want := batch.Stats.TotalRows, 2; got != want {
		t.Errorf("TotalRows = %d, want %d", got, want)
	}
	if got, want := batch.Stats.SkippedRows, 1; got != want {
		t.Errorf("SkippedRows = %d, want %d", got, want)
	}
	if got, want := batch.Rows[0]["UserId"], "alice@contoso.com"; got != want {
		t.Errorf("row[0] UserId = %q, want %q", got, want)
	}
}

func TestReadCSVEmptyInput(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	if !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("ReadCSV(empty) error = %v, want ErrEmptyInput", err)
	}
}

func TestReadCSVHeaderOnly(t *testing.T) {
	batch, err := ReadCSV(strings.NewReader("CreationDate,UserId,Operation\n"))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if len(batch.Rows) != 0 || batch.Stats.TotalRows != 0 {
		t.Errorf("expected empty batch, got %d rows", len(batch.Rows))
	}
}

func TestReadCSVTrimsHeader(t *testing.T) {
	batch, err := ReadCSV(strings.NewReader(" Operation , UserId \nFileAccessed,alice\n"))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got, want := batch.Columns[0], "Operation"; got != want {
		t.Errorf("column[0] = %q, want %q", got, want)
	}
	if got, want := batch.Rows[0]["Operation"], "FileAccessed"; got != want {
		t.Errorf("Operation = %q, want %q", got, want)
	}
}

func TestDetectLogType(t *testing.T) {
	tests := []struct {
		name    string
		columns []string
		want    string
	}{
		{"entra sign-in", []string{"User", "Status", "Application", "IP address"}, LogTypeEntra},
		{"entra username variant", []string{"Username", "Status", "Application"}, LogTypeEntra},
		{"exchange mailbox owner", []string{"MailboxOwnerUPN", "Operation"}, LogTypeExchange},
		{"exchange client info", []string{"ClientInfoString", "CreationDate"}, LogTypeExchange},
		{"purview file export", []string{"SourceFileName", "UserId"}, LogTypePurview},
		{"purview operation export", []string{"Operation", "UserId", "AuditData"}, LogTypePurview},
		{"unknown", []string{"Foo", "Bar"}, LogTypeUnknown},
		{"empty", nil, LogTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectLogType(tt.columns); got != tt.want {
				t.Errorf("DetectLogType(%v) = %q, want %q", tt.columns, got, tt.want)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{"rfc3339", "2024-01-15T10:30:00Z", "2024-01-15T10:30:00Z", true},
		{"rfc3339 offset", "2024-01-15T12:30:00+02:00", "2024-01-15T10:30:00Z", true},
		{"zoneless", "2024-01-15T10:30:00", "2024-01-15T10:30:00Z", true},
		{"zoneless fraction", "2024-01-15T10:30:00.1234567", "2024-01-15T10:30:00Z", true},
		{"space separated", "2024-01-15 10:30:00", "2024-01-15T10:30:00Z", true},
		{"date only", "2024-01-15", "2024-01-15T00:00:00Z", true},
		{"padded", "  2024-01-15T10:30:00  ", "2024-01-15T10:30:00Z", true},
		{"empty", "", "", false},
		{"garbage", "not a time", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !tt.ok {
				return
			}
			if got.Truncate(time.Second).Format(time.RFC3339) != tt.want {
				t.Errorf("ParseTimestamp(%q) = %v, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeUserChain(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]string
		want string
	}{
		{
			"flat mailbox owner wins",
			map[string]string{
				"MailboxOwnerUPN": "owner@contoso.com",
				"UserId":          "actor@contoso.com",
				"AuditData":       `{"UserId":"nested@contoso.com"}`,
			},
			"owner@contoso.com",
		},
		{
			"flat user id second",
			map[string]string{
				"UserId":    "actor@contoso.com",
				"AuditData": `{"MailboxOwnerUPN":"nested-owner@contoso.com"}`,
			},
			"actor@contoso.com",
		},
		{
			"nested mailbox owner third",
			map[string]string{
				"AuditData": `{"MailboxOwnerUPN":"nested-owner@contoso.com","UserId":"nested@contoso.com"}`,
			},
			"nested-owner@contoso.com",
		},
		{
			"nested user id last",
			map[string]string{"AuditData": `{"UserId":"nested@contoso.com"}`},
			"nested@contoso.com",
		},
		{"nothing", map[string]string{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(tt.row, nil)
			if rec.User != tt.want {
				t.Errorf("User = %q, want %q", rec.User, tt.want)
			}
		})
	}
}

func TestNormalizeClientIPChain(t *testing.T) {
	tests := []struct {
		name string
		row  map[string]string
		want string
	}{
		{
			"flat client ip wins",
			map[string]string{
				"ClientIP":  "203.0.113.5",
				"AuditData": `{"ClientIP":"198.51.100.1"}`,
			},
			"203.0.113.5",
		},
		{
			"nested client ip",
			map[string]string{"AuditData": `{"ClientIP":"198.51.100.1","ClientIPAddress":"192.0.2.9"}`},
			"198.51.100.1",
		},
		{
			"nested client ip address",
			map[string]string{"AuditData": `{"ClientIPAddress":"192.0.2.9","SenderIp":"192.0.2.10"}`},
			"192.0.2.9",
		},
		{
			"nested sender ip",
			map[string]string{"AuditData": `{"SenderIp":"192.0.2.10"}`},
			"192.0.2.10",
		},
		{"none", map[string]string{"AuditData": `{"Workload":"Exchange"}`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(tt.row, nil)
			if rec.ClientIP != tt.want {
				t.Errorf("ClientIP = %q, want %q", rec.ClientIP, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	row := map[string]string{
		"CreationDate": "2024-02-01T08:00:00",
		"AuditData":    `{"CreationTime":"2024-01-15T10:30:00"}`,
	}
	rec := Normalize(row, nil)
	if rec.TimestampRaw != "2024-01-15T10:30:00" {
		t.Errorf("TimestampRaw = %q, want nested CreationTime", rec.TimestampRaw)
	}
	if rec.Timestamp == nil || rec.Timestamp.Format(time.RFC3339) != "2024-01-15T10:30:00Z" {
		t.Errorf("Timestamp = %v, want 2024-01-15T10:30:00Z", rec.Timestamp)
	}
}

func TestNormalizeTimestampFallbackAndFailure(t *testing.T) {
	var stats ParseStats
	rec := Normalize(map[string]string{"CreationDate": "2024-02-01T08:00:00"}, &stats)
	if rec.TimestampRaw != "2024-02-01T08:00:00" || rec.Timestamp == nil {
		t.Errorf("flat CreationDate fallback failed: raw=%q ts=%v", rec.TimestampRaw, rec.Timestamp)
	}
	if stats.TimestampFailures != 0 {
		t.Errorf("TimestampFailures = %d, want 0", stats.TimestampFailures)
	}

	rec = Normalize(map[string]string{"CreationDate": "yesterday-ish"}, &stats)
	if rec.Timestamp != nil {
		t.Errorf("Timestamp = %v, want nil for unparsable input", rec.Timestamp)
	}
	if rec.TimestampRaw != "yesterday-ish" {
		t.Errorf("TimestampRaw = %q, want original string kept", rec.TimestampRaw)
	}
	if stats.TimestampFailures != 1 {
		t.Errorf("TimestampFailures = %d, want 1", stats.TimestampFailures)
	}
}

func TestNormalizeMalformedAuditData(t *testing.T) {
	var stats ParseStats
	row := map[string]string{
		"Operation": "FileAccessed",
		"UserId":    "alice@contoso.com",
		"ClientIP":  "203.0.113.5",
		"AuditData": `{"ClientIP": truncated`,
	}
	rec := Normalize(row, &stats)
	if stats.JSONFailures != 1 {
		t.Fatalf("JSONFailures = %d, want 1", stats.JSONFailures)
	}
	if rec.Raw != nil {
		t.Errorf("Raw = %v, want nil after parse failure", rec.Raw)
	}
	if rec.Operation != "FileAccessed" || rec.User != "alice@contoso.com" || rec.ClientIP != "203.0.113.5" {
		t.Errorf("flat fields lost after parse failure: %+v", rec)
	}
}

func TestNormalizeUnknownOperation(t *testing.T) {
	rec := Normalize(map[string]string{"UserId": "alice@contoso.com"}, nil)
	if rec.Operation != "Unknown" {
		t.Errorf("Operation = %q, want Unknown", rec.Operation)
	}
}

func TestNormalizeMailItemsAccessed(t *testing.T) {
	row := map[string]string{
		"Operation": "MailItemsAccessed",
		"AuditData": `{
			"CreationTime": "2024-01-15T10:30:00",
			"Folders": [
				{"Path": "\\Inbox", "FolderItems": [
					{"Subject": "Quarterly numbers", "SizeInBytes": 2048},
					{"Subject": "Re: Quarterly numbers", "SizeInBytes": 1024}
				]},
				{"Path": "\\Sent Items", "FolderItems": [
					{"Subject": "Fwd: invoice", "SizeInBytes": 4096},
					{"Subject": "never reached", "SizeInBytes": 1}
				]}
			]
		}`,
	}
	rec := Normalize(row, nil)
	if got, want := len(rec.EmailDetails), 3; got != want {
		t.Fatalf("EmailDetails = %d entries, want %d", got, want)
	}
	if rec.Subject != "Quarterly numbers" || rec.Folder != `\Inbox` {
		t.Errorf("record subject/folder = %q/%q, want first message", rec.Subject, rec.Folder)
	}
	if rec.EmailDetails[2].Subject != "Fwd: invoice" || rec.EmailDetails[2].Folder != `\Sent Items` {
		t.Errorf("detail[2] = %+v, want third message from second folder", rec.EmailDetails[2])
	}
	if rec.EmailDetails[0].Timestamp != "2024-01-15T10:30:00" {
		t.Errorf("detail timestamp = %q, want record timestamp", rec.EmailDetails[0].Timestamp)
	}
	if rec.EmailDetails[0].Size != 2048 {
		t.Errorf("detail size = %d, want 2048", rec.EmailDetails[0].Size)
	}
}

func TestNormalizeInboxRule(t *testing.T) {
	tests := []struct {
		name        string
		auditData   string
		wantSubject string
		wantFolder  string
		wantDetail  *EmailDetail
	}{
		{
			"named rule with from",
			`{"Parameters":[{"Name":"Name","Value":"archive all"},{"Name":"From","Value":"boss@contoso.com"}]}`,
			"Rule: archive all",
			"From: boss@contoso.com",
			&EmailDetail{Subject: "Rule: archive all", Folder: "From: boss@contoso.com"},
		},
		{
			"from only",
			`{"Parameters":[{"Name":"From","Value":"boss@contoso.com"},{"Name":"MoveToFolder","Value":"RSS"}]}`,
			"Inbox Rule",
			"From: boss@contoso.com",
			&EmailDetail{Subject: "Inbox Rule Change", Folder: "From: boss@contoso.com"},
		},
		{
			"name only falls back to identity",
			`{"Parameters":[{"Name":"Name","Value":"cleanup"},{"Name":"Identity","Value":"cleanup-rule-id"}]}`,
			"Rule: cleanup",
			"",
			&EmailDetail{Subject: "Rule: cleanup", Folder: "cleanup-rule-id"},
		},
		{
			"neither name nor from",
			`{"Parameters":[{"Name":"MarkAsRead","Value":"True"}]}`,
			"Inbox Rule",
			"",
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Normalize(map[string]string{
				"Operation": "New-InboxRule",
				"AuditData": tt.auditData,
			}, nil)
			if rec.Subject != tt.wantSubject {
				t.Errorf("Subject = %q, want %q", rec.Subject, tt.wantSubject)
			}
			if rec.Folder != tt.wantFolder {
				t.Errorf("Folder = %q, want %q", rec.Folder, tt.wantFolder)
			}
			if tt.wantDetail == nil {
				if len(rec.EmailDetails) != 0 {
					t.Errorf("EmailDetails = %+v, want none", rec.EmailDetails)
				}
				return
			}
			if len(rec.EmailDetails) != 1 {
				t.Fatalf("EmailDetails = %d entries, want 1", len(rec.EmailDetails))
			}
			d := rec.EmailDetails[0]
			if d.Subject != tt.wantDetail.Subject || d.Folder != tt.wantDetail.Folder {
				t.Errorf("detail = %q/%q, want %q/%q", d.Subject, d.Folder, tt.wantDetail.Subject, tt.wantDetail.Folder)
			}
		})
	}
}

func TestNormalizeSetInboxRule(t *testing.T) {
	rec := Normalize(map[string]string{
		"Operation": "Set-InboxRule",
		"AuditData": `{"Parameters":[{"Name":"Name","Value":"forward external"}]}`,
	}, nil)
	if rec.Subject != "Rule: forward external" {
		t.Errorf("Subject = %q, want rule name", rec.Subject)
	}
	if len(rec.EmailDetails) != 1 || rec.EmailDetails[0].Folder != "N/A" {
		t.Errorf("detail folder = %+v, want N/A placeholder", rec.EmailDetails)
	}
}

func TestNormalizeDeletion(t *testing.T) {
	t.Run("affected items", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "SoftDelete",
			"AuditData": `{"AffectedItems":[{"Subject":"old report","ParentFolder":{"Path":"\\Deleted Items"},"SizeInBytes":512},{"Subject":"second"}]}`,
		}, nil)
		if rec.Subject != "old report" || rec.Folder != `\Deleted Items` || rec.Size != 512 {
			t.Errorf("record = %q/%q/%d, want first affected item", rec.Subject, rec.Folder, rec.Size)
		}
		if len(rec.EmailDetails) != 1 {
			t.Errorf("EmailDetails = %d entries, want 1", len(rec.EmailDetails))
		}
	})

	t.Run("item fallback", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "HardDelete",
			"AuditData": `{"Item":{"Subject":"purged","SizeInBytes":128}}`,
		}, nil)
		if rec.Subject != "purged" || rec.Size != 128 {
			t.Errorf("record = %q/%d, want Item fields", rec.Subject, rec.Size)
		}
	})

	t.Run("move to deleted items", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "MoveToDeletedItems",
			"AuditData": `{"AffectedItems":[{"Subject":"cleanup me","ParentFolder":{"Path":"\\Inbox"}}]}`,
		}, nil)
		if rec.Subject != "cleanup me" || rec.Folder != `\Inbox` {
			t.Errorf("record = %q/%q, want affected item", rec.Subject, rec.Folder)
		}
	})
}

func TestNormalizeThreatIntel(t *testing.T) {
	rec := Normalize(map[string]string{
		"Operation": "TIMailData",
		"AuditData": `{"Subject":"You won a prize","SenderIp":"203.0.113.77"}`,
	}, nil)
	if rec.Subject != "You won a prize" {
		t.Errorf("Subject = %q, want top-level payload subject", rec.Subject)
	}
	if rec.ClientIP != "203.0.113.77" {
		t.Errorf("ClientIP = %q, want SenderIp", rec.ClientIP)
	}
	if len(rec.EmailDetails) != 1 {
		t.Errorf("EmailDetails = %d entries, want 1", len(rec.EmailDetails))
	}
}

func TestNormalizeUpdate(t *testing.T) {
	rec := Normalize(map[string]string{
		"Operation": "Update",
		"AuditData": `{"Item":{"Subject":"draft v2","ParentFolder":{"Path":"\\Drafts"},"SizeInBytes":900}}`,
	}, nil)
	if rec.Subject != "draft v2" || rec.Folder != `\Drafts` || rec.Size != 900 {
		t.Errorf("record = %q/%q/%d, want Item fields", rec.Subject, rec.Folder, rec.Size)
	}
}

func TestNormalizeGeneric(t *testing.T) {
	t.Run("top level subject", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "Send",
			"AuditData": `{"Subject":"status update","Item":{"SizeInBytes":333}}`,
		}, nil)
		if rec.Subject != "status update" || rec.Size != 333 {
			t.Errorf("record = %q/%d, want merged subject and item size", rec.Subject, rec.Size)
		}
	})

	t.Run("no extractable fields", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "UserLoggedIn",
			"AuditData": `{"ClientIP":"198.51.100.4"}`,
		}, nil)
		if rec.Subject != "" || len(rec.EmailDetails) != 0 {
			t.Errorf("expected no subject or details, got %+v", rec)
		}
	})

	t.Run("quoted size string", func(t *testing.T) {
		rec := Normalize(map[string]string{
			"Operation": "Send",
			"AuditData": `{"Item":{"Subject":"big one","SizeInBytes":"123456"}}`,
		}, nil)
		if rec.Size != 123456 {
			t.Errorf("Size = %d, want quoted number parsed", rec.Size)
		}
	})
}

func TestNormalizeSharePointFallback(t *testing.T) {
	rec := Normalize(map[string]string{
		"Operation":         "FileAccessed",
		"SourceFileName":    "budget.xlsx",
		"SourceRelativeUrl": "sites/finance/Shared Documents",
	}, nil)
	if rec.Subject != "budget.xlsx" {
		t.Errorf("Subject = %q, want flat SourceFileName", rec.Subject)
	}
	if rec.Folder != "sites/finance/Shared Documents" {
		t.Errorf("Folder = %q, want flat SourceRelativeUrl", rec.Folder)
	}
}

func TestBatchNormalize(t *testing.T) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"CreationDate", "UserId", "Operation", "AuditData"})
	w.Write([]string{
		"2024-01-15T10:30:00", "alice@contoso.com", "MailItemsAccessed",
		`{"CreationTime":"2024-01-15T10:30:00","ClientIPAddress":"203.0.113.5","Folders":[{"Path":"\\Inbox","FolderItems":[{"Subject":"hello","SizeInBytes":100}]}]}`,
	})
	w.Write([]string{"2024-01-15T11:00:00", "bob@contoso.com", "FileDeleted", "not json at all"})
	w.Flush()
	if err := w.Error(); err != nil {
		t.Fatalf("building fixture: %v", err)
	}

	batch, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if got := batch.LogType(); got != LogTypePurview {
		t.Errorf("LogType() = %q, want %q", got, LogTypePurview)
	}

	recs := batch.Normalize()
	if len(recs) != 2 {
		t.Fatalf("Normalize() = %d records, want 2", len(recs))
	}
	if recs[0].ClientIP != "203.0.113.5" {
		t.Errorf("record[0] ClientIP = %q, want nested ClientIPAddress", recs[0].ClientIP)
	}
	if recs[0].Subject != "hello" {
		t.Errorf("record[0] Subject = %q, want folder item subject", recs[0].Subject)
	}
	if batch.Stats.JSONFailures != 1 {
		t.Errorf("JSONFailures = %d, want 1", batch.Stats.JSONFailures)
	}
	if recs[1].User != "bob@contoso.com" {
		t.Errorf("record[1] User = %q, want flat UserId despite payload failure", recs[1].User)
	}
}

func TestParseStatsAdd(t *testing.T) {
	a := ParseStats{TotalRows: 10, SkippedRows: 1, JSONFailures: 2, TimestampFailures: 3}
	a.Add(ParseStats{TotalRows: 5, SkippedRows: 2, JSONFailures: 1, TimestampFailures: 1})
	want := ParseStats{TotalRows: 15, SkippedRows: 3, JSONFailures: 3, TimestampFailures: 4}
	if a != want {
		t.Errorf("Add() = %+v, want %+v", a, want)
	}
}

func TestSampleExport(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "exchange_sample.csv"))
	if err != nil {
		t.Fatalf("opening fixture: %v", err)
	}
	defer f.Close()

	batch, err := ReadCSV(f)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if batch.Stats.TotalRows != 7 {
		t.Errorf("TotalRows = %d, want 7", batch.Stats.TotalRows)
	}
	if batch.Stats.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1 for the short row", batch.Stats.SkippedRows)
	}
	if got := batch.LogType(); got != LogTypeExchange {
		t.Errorf("LogType() = %q, want %q", got, LogTypeExchange)
	}

	recs := batch.Normalize()
	if len(recs) != 7 {
		t.Fatalf("Normalize() = %d records, want 7", len(recs))
	}
	if batch.Stats.JSONFailures != 1 {
		t.Errorf("JSONFailures = %d, want 1", batch.Stats.JSONFailures)
	}
	if batch.Stats.TimestampFailures != 1 {
		t.Errorf("TimestampFailures = %d, want 1", batch.Stats.TimestampFailures)
	}

	mail := recs[0]
	if mail.User != "amelia.chen@contoso.com" {
		t.Errorf("mail access User = %q, want owner UPN", mail.User)
	}
	if mail.ClientIP != "203.0.113.57" {
		t.Errorf("mail access ClientIP = %q, want flat column value", mail.ClientIP)
	}
	if mail.Subject != "Renewal quote" || mail.Folder != "\\Inbox" {
		t.Errorf("mail access Subject/Folder = %q/%q", mail.Subject, mail.Folder)
	}
	if len(mail.EmailDetails) != 2 {
		t.Errorf("mail access EmailDetails = %d, want 2", len(mail.EmailDetails))
	}

	rule := recs[1]
	if rule.Subject != "Rule: keep clean" {
		t.Errorf("inbox rule Subject = %q", rule.Subject)
	}
	if rule.Folder != "From: billing@vendor.example" {
		t.Errorf("inbox rule Folder = %q", rule.Folder)
	}

	deletion := recs[2]
	if deletion.Subject != "Invoice 4411" || deletion.Size != 33280 {
		t.Errorf("deletion Subject/Size = %q/%d", deletion.Subject, deletion.Size)
	}
	if deletion.Folder != "\\Recoverable Items\\Deletions" {
		t.Errorf("deletion Folder = %q", deletion.Folder)
	}

	update := recs[3]
	if update.User != "marco.silva@contoso.com" || update.Subject != "RE: payroll run" {
		t.Errorf("update User/Subject = %q/%q", update.User, update.Subject)
	}

	threat := recs[4]
	if threat.Subject != "Password reset required" {
		t.Errorf("threat intel Subject = %q", threat.Subject)
	}
	if threat.ClientIP != "192.0.2.200" {
		t.Errorf("threat intel ClientIP = %q, want SenderIp fallback", threat.ClientIP)
	}

	broken := recs[5]
	if broken.Raw != nil {
		t.Errorf("broken payload Raw = %v, want nil", broken.Raw)
	}
	if broken.User != "svc.export@contoso.com" || broken.Operation != "HardDelete" {
		t.Errorf("broken payload User/Operation = %q/%q", broken.User, broken.Operation)
	}

	late := recs[6]
	if late.Timestamp != nil {
		t.Errorf("bad timestamp parsed to %v, want nil", late.Timestamp)
	}
	if late.TimestampRaw != "bad-stamp" {
		t.Errorf("TimestampRaw = %q, want raw value kept", late.TimestampRaw)
	}
}

func TestMergeColumns(t *testing.T) {
	got := MergeColumns(
		[]string{"CreationDate", "Operation"},
		[]string{"Operation", "ClientIP", "CreationDate", "AuditData"},
	)
	want := []string{"CreationDate", "Operation", "ClientIP", "AuditData"}
	if len(got) != len(want) {
		t.Fatalf("MergeColumns() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("MergeColumns()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
