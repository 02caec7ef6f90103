package chat

import "sort"

// The registry's find-or-create has a documented race window that can leave
// duplicate conversation rows for one pair of users. The projection collapses
// them at any read boundary: group a user's summaries by counterpart, keep
// the most recently active record per counterpart, and keep the open thread
// pointed at the surviving record.

// lastActive is the recency used for canonical selection: updatedAt, falling
// back to createdAt for threads that never carried a message.
func lastActive(c *Conversation) int64 {
	if !c.UpdatedAt.IsZero() {
		return c.UpdatedAt.UnixMilli()
	}
	return c.CreatedAt.UnixMilli()
}

// Dedupe collapses duplicate conversations per counterpart of userID into
// the single canonical entry and returns the result sorted by recency,
// newest first. On equal recency the later entry wins, matching the order
// the records were merged in.
func Dedupe(conversations []Conversation, userID int64) []Conversation {
	byOther := make(map[int64]Conversation)
	order := make([]int64, 0, len(conversations))

	for _, c := range conversations {
		other := c.Other(userID)
		if other == 0 {
			continue
		}
		prev, ok := byOther[other]
		if !ok {
			byOther[other] = c
			order = append(order, other)
			continue
		}
		if lastActive(&c) >= lastActive(&prev) {
			byOther[other] = c
		}
	}

	result := make([]Conversation, 0, len(byOther))
	for _, other := range order {
		result = append(result, byOther[other])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return lastActive(&result[i]) > lastActive(&result[j])
	})
	return result
}

// ReconcileActive resolves which canonical id an open thread should point to
// after a merge changed the conversation set. prev is the list the active id
// was chosen from, next the deduped list. Returns 0 when nothing is open and
// falls back to the most recent canonical entry if the counterpart vanished.
func ReconcileActive(activeID int64, prev, next []Conversation, userID int64) int64 {
	if activeID == 0 {
		return 0
	}

	var activeOther int64
	for i := range prev {
		if prev[i].ID == activeID {
			activeOther = prev[i].Other(userID)
			break
		}
	}
	if activeOther == 0 {
		return activeID
	}

	for i := range next {
		if next[i].Other(userID) == activeOther {
			return next[i].ID
		}
	}
	if len(next) > 0 {
		return next[0].ID
	}
	return 0
}
