package queue

import (
	"sort"

	"admissions-portal/internal/models"
)

// Order picks which field decides who is called next.
type Order int

const (
	// OrderFIFO follows join time; this is what participants see.
	OrderFIFO Order = iota
	// OrderPosition follows the admin's manual ordering.
	OrderPosition
)

var transitions = map[models.EntryStatus][]models.EntryStatus{
	models.EntryWaiting: {models.EntryServing, models.EntryRemoved},
	models.EntryServing: {models.EntryCompleted, models.EntryNoShow, models.EntryRemoved},
}

// CanTransition reports whether an entry may move from one status to another.
// Terminal statuses have no way out.
func CanTransition(from, to models.EntryStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SortFIFO returns a copy ordered by join time, ties broken by id.
func SortFIFO(snapshot []models.QueueEntry) []models.QueueEntry {
	out := append([]models.QueueEntry(nil), snapshot...)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// SortByPosition returns a copy ordered by the manual position, ties broken by id.
func SortByPosition(snapshot []models.QueueEntry) []models.QueueEntry {
	out := append([]models.QueueEntry(nil), snapshot...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PeopleAhead counts WAITING entries that joined before the viewer. SERVING
// entries never count. ok is false when the token is not in the snapshot.
func PeopleAhead(snapshot []models.QueueEntry, token string) (ahead int, ok bool) {
	for _, e := range SortFIFO(snapshot) {
		if e.Token == token {
			return ahead, true
		}
		if e.Status == models.EntryWaiting {
			ahead++
		}
	}
	return 0, false
}

// WaitingRank is the 1-based rank of entry id among WAITING entries in join
// order, or 0 when the entry is not waiting.
func WaitingRank(snapshot []models.QueueEntry, id int64) int {
	rank := 0
	for _, e := range SortFIFO(snapshot) {
		if e.Status != models.EntryWaiting {
			continue
		}
		rank++
		if e.ID == id {
			return rank
		}
	}
	return 0
}

func NextToCall(snapshot []models.QueueEntry, order Order) (models.QueueEntry, bool) {
	ordered := SortFIFO(snapshot)
	if order == OrderPosition {
		ordered = SortByPosition(snapshot)
	}
	for _, e := range ordered {
		if e.Status == models.EntryWaiting {
			return e, true
		}
	}
	return models.QueueEntry{}, false
}

// NowServing returns the first SERVING entry by position. More than one can
// exist after concurrent admin actions; the rest are ignored here.
func NowServing(snapshot []models.QueueEntry) (models.QueueEntry, bool) {
	for _, e := range SortByPosition(snapshot) {
		if e.Status == models.EntryServing {
			return e, true
		}
	}
	return models.QueueEntry{}, false
}

// DueReminders lists WAITING entries sitting exactly at threshold that have
// not been reminded yet. Entries that skip past the threshold between two
// snapshots are not picked up later.
func DueReminders(snapshot []models.QueueEntry, threshold int) []models.QueueEntry {
	if threshold < 1 {
		return nil
	}
	var due []models.QueueEntry
	rank := 0
	for _, e := range SortFIFO(snapshot) {
		if e.Status != models.EntryWaiting {
			continue
		}
		rank++
		if rank == threshold && !e.SMSLogs.ReminderSent {
			due = append(due, e)
		}
		if rank >= threshold {
			break
		}
	}
	return due
}

// SwapPair finds the WAITING entry directly below id in position order.
func SwapPair(snapshot []models.QueueEntry, id int64) (cur, below models.QueueEntry, err error) {
	var waiting []models.QueueEntry
	for _, e := range SortByPosition(snapshot) {
		if e.Status == models.EntryWaiting {
			waiting = append(waiting, e)
		}
	}
	for i, e := range waiting {
		if e.ID != id {
			continue
		}
		if i == len(waiting)-1 {
			return e, models.QueueEntry{}, ErrAlreadyLast
		}
		return e, waiting[i+1], nil
	}
	return models.QueueEntry{}, models.QueueEntry{}, ErrNotFound
}
