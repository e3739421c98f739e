package analysis

import (
	"sort"

	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

const (
	topFilesLimit     = 15
	fileDetailLimit   = 10
	fileUsersCap      = 5
	userBreakdownCap  = 10
	topUsersDetailCap = 10
)

// FileDetail describes one file and who touched it.
type FileDetail struct {
	File       string      `json:"file"`
	Count      int         `json:"count"`
	Users      []string    `json:"users"`
	Operations []NameCount `json:"operations"`
}

// UserOperations is one user's operation breakdown.
type UserOperations struct {
	User       string      `json:"user"`
	Operations []NameCount `json:"operations"`
}

// TopUserDetail describes one of the most active users.
type TopUserDetail struct {
	User        string      `json:"user"`
	Count       int         `json:"count"`
	Operations  []NameCount `json:"operations"`
	UniqueFiles int         `json:"unique_files"`
}

// FileOperationsView is the file-activity breakdown for SharePoint and
// OneDrive exports.
type FileOperationsView struct {
	TotalOperations     int              `json:"total_operations"`
	UniqueFiles         int              `json:"unique_files"`
	UniqueUsers         int              `json:"unique_users"`
	TopFiles            []NameCount      `json:"top_files"`
	OperationsBreakdown []NameCount      `json:"operations_breakdown"`
	OperationsByUser    []UserOperations `json:"operations_by_user"`
	FilesByUser         []FileDetail     `json:"files_by_user"`
	TopUsers            []TopUserDetail  `json:"top_users"`
}

// FileOperations builds the file-activity view over an already
// filtered record set. User names in the output are display-mapped;
// the detail lists cover the first distinct files and users in record
// order, the way an analyst scans the raw export.
func FileOperations(recs []records.Record, mapper usermap.Map) FileOperationsView {
	view := FileOperationsView{
		TotalOperations: len(recs),
	}

	fileCounts := make(map[string]int)
	userCounts := make(map[string]int)
	opCounts := make(map[string]int)
	var fileOrder, userOrder []string
	for i := range recs {
		rec := &recs[i]
		if rec.Subject != "" {
			if _, ok := fileCounts[rec.Subject]; !ok {
				fileOrder = append(fileOrder, rec.Subject)
			}
			fileCounts[rec.Subject]++
		}
		if rec.User != "" {
			if _, ok := userCounts[rec.User]; !ok {
				userOrder = append(userOrder, rec.User)
			}
			userCounts[rec.User]++
		}
		opCounts[rec.Operation]++
	}

	view.UniqueFiles = len(fileCounts)
	view.UniqueUsers = len(userCounts)
	view.TopFiles = topCounts(fileCounts, topFilesLimit)
	view.OperationsBreakdown = topCounts(opCounts, len(opCounts))

	for _, user := range capStrings(userOrder, userBreakdownCap) {
		ops := make(map[string]int)
		for i := range recs {
			if recs[i].User == user {
				ops[recs[i].Operation]++
			}
		}
		view.OperationsByUser = append(view.OperationsByUser, UserOperations{
			User:       mapper.Display(user),
			Operations: topCounts(ops, len(ops)),
		})
	}

	for _, file := range capStrings(fileOrder, fileDetailLimit) {
		detail := FileDetail{File: file, Count: fileCounts[file]}
		ops := make(map[string]int)
		seen := make(map[string]struct{})
		for i := range recs {
			rec := &recs[i]
			if rec.Subject != file {
				continue
			}
			ops[rec.Operation]++
			if rec.User == "" {
				continue
			}
			if _, ok := seen[rec.User]; ok {
				continue
			}
			seen[rec.User] = struct{}{}
			if len(detail.Users) < fileUsersCap {
				detail.Users = append(detail.Users, mapper.Display(rec.User))
			}
		}
		detail.Operations = topCounts(ops, len(ops))
		view.FilesByUser = append(view.FilesByUser, detail)
	}

	for _, nc := range topCounts(userCounts, topUsersDetailCap) {
		user := nc.Name
		ops := make(map[string]int)
		files := make(map[string]struct{})
		for i := range recs {
			rec := &recs[i]
			if rec.User != user {
				continue
			}
			ops[rec.Operation]++
			if rec.Subject != "" {
				files[rec.Subject] = struct{}{}
			}
		}
		view.TopUsers = append(view.TopUsers, TopUserDetail{
			User:        mapper.Display(user),
			Count:       nc.Count,
			Operations:  topCounts(ops, len(ops)),
			UniqueFiles: len(files),
		})
	}

	return view
}

// topCounts ranks a count map by count descending, name ascending on
// ties, keeping the first n entries.
func topCounts(counts map[string]int, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func capStrings(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
