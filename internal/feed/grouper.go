package feed

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"tgfeed/internal/channel"
	"tgfeed/internal/database/models"
)

// Group is the set of rows forming one logical post, in ascending message id.
type Group struct {
	Key  string
	Rows []models.RawPost
}

// Representative returns the row with the smallest message id.
func (g Group) Representative() models.RawPost {
	return g.Rows[0]
}

// LatestAt is the newest posted_at among the members.
func (g Group) LatestAt() time.Time {
	latest := g.Rows[0].PostedAt
	for _, r := range g.Rows[1:] {
		if r.PostedAt.After(latest) {
			latest = r.PostedAt
		}
	}
	return latest
}

// EarliestAt is the smallest posted_at across members.
func (g Group) EarliestAt() time.Time {
	earliest := g.Rows[0].PostedAt
	for _, r := range g.Rows[1:] {
		if r.PostedAt.Before(earliest) {
			earliest = r.PostedAt
		}
	}
	return earliest
}

// Text returns the first non-empty trimmed text in member order.
func (g Group) Text() string {
	for _, r := range g.Rows {
		if t := strings.TrimSpace(r.Text); t != "" {
			return t
		}
	}
	return ""
}

// MediaRefs lists every media reference, member by member.
func (g Group) MediaRefs() []models.MediaRef {
	var refs []models.MediaRef
	for _, r := range g.Rows {
		refs = append(refs, r.MediaRefs...)
	}
	return refs
}

// MessageIDs lists the member ids in ascending order.
func (g Group) MessageIDs() []int64 {
	ids := make([]int64, len(g.Rows))
	for i, r := range g.Rows {
		ids[i] = r.MessageID
	}
	return ids
}

// Post builds the logical post with the given resolved images.
func (g Group) Post(images []string) Post {
	rep := g.Representative()
	if images == nil {
		images = []string{}
	}
	permalink := rep.Permalink
	if permalink == "" {
		permalink = channel.Permalink(rep.Channel, rep.MessageID)
	}
	return Post{
		Channel:    rep.Channel,
		MessageID:  rep.MessageID,
		PostedAt:   rep.PostedAt,
		Text:       g.Text(),
		Permalink:  permalink,
		Images:     images,
		MessageIDs: g.MessageIDs(),
		GroupID:    rep.GroupID,
	}
}

// GroupRows partitions rows into logical posts. Every input row lands in
// exactly one group. Groups are ordered newest first by their latest member;
// ties go to the larger representative id.
func GroupRows(rows []models.RawPost) []Group {
	index := make(map[string]int, len(rows))
	var groups []Group
	for _, row := range rows {
		key := row.GroupKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key})
		}
		groups[i].Rows = append(groups[i].Rows, row)
	}

	for i := range groups {
		slices.SortStableFunc(groups[i].Rows, func(a, b models.RawPost) int {
			return cmp.Compare(a.MessageID, b.MessageID)
		})
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		if c := b.LatestAt().Compare(a.LatestAt()); c != 0 {
			return c
		}
		return cmp.Compare(b.Representative().MessageID, a.Representative().MessageID)
	})
	return groups
}
