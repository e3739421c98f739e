package analysis

import (
	"time"

	"github.com/pawprintlabs/pawprint/internal/records"
	"github.com/pawprintlabs/pawprint/internal/usermap"
)

const (
	topUsersLimit   = 15
	userDetailLimit = 20
)

// UserDetail is the per-user activity breakdown.
type UserDetail struct {
	User            string      `json:"user"`
	TotalOperations int         `json:"total_operations"`
	Operations      []NameCount `json:"operations"`
	UniqueFiles     int         `json:"unique_files"`
	FirstAction     string      `json:"first_action,omitempty"`
	LastAction      string      `json:"last_action,omitempty"`
}

// UserActivityView summarizes who did what and when.
type UserActivityView struct {
	TotalUsers  int          `json:"total_users"`
	TopUsers    []NameCount  `json:"top_users"`
	UserDetails []UserDetail `json:"user_details"`
}

// UserActivity builds the per-user view over an already filtered
// record set. Top users are ranked by activity; the detail list covers
// the first distinct users in record order.
func UserActivity(recs []records.Record, mapper usermap.Map) UserActivityView {
	counts := make(map[string]int)
	var order []string
	for i := range recs {
		user := recs[i].User
		if user == "" {
			continue
		}
		if _, ok := counts[user]; !ok {
			order = append(order, user)
		}
		counts[user]++
	}

	view := UserActivityView{TotalUsers: len(counts)}
	for _, nc := range topCounts(counts, topUsersLimit) {
		view.TopUsers = append(view.TopUsers, NameCount{
			Name:  mapper.Display(nc.Name),
			Count: nc.Count,
		})
	}

	for _, user := range capStrings(order, userDetailLimit) {
		detail := UserDetail{
			User:            mapper.Display(user),
			TotalOperations: counts[user],
		}
		ops := make(map[string]int)
		files := make(map[string]struct{})
		var first, last *time.Time
		for i := range recs {
			rec := &recs[i]
			if rec.User != user {
				continue
			}
			ops[rec.Operation]++
			if rec.Subject != "" {
				files[rec.Subject] = struct{}{}
			}
			if ts := rec.Timestamp; ts != nil {
				if first == nil || ts.Before(*first) {
					first = ts
				}
				if last == nil || ts.After(*last) {
					last = ts
				}
			}
		}
		detail.Operations = topCounts(ops, len(ops))
		detail.UniqueFiles = len(files)
		if first != nil {
			detail.FirstAction = first.Format(time.RFC3339)
			detail.LastAction = last.Format(time.RFC3339)
		}
		view.UserDetails = append(view.UserDetails, detail)
	}

	return view
}
