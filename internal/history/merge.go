package history

import (
	"container/heap"

	"github.com/Smehapavi/AgriNex/internal/domain"
)

// Merge combines lists that are each sorted newest first into one list sorted newest
// first. Equal timestamps are ordered by kind (prediction, sensor, spray) and then by
// their position in the input, so the merge is stable. Merge runs in O(n log k) and never
// re-sorts its input.
func Merge(lists ...[]domain.HistoryEntry) []domain.HistoryEntry {
	total := 0
	h := make(cursorHeap, 0, len(lists))
	for i, l := range lists {
		total += len(l)
		if len(l) > 0 {
			h = append(h, cursor{list: l, order: i})
		}
	}
	heap.Init(&h)

	out := make([]domain.HistoryEntry, 0, total)
	for h.Len() > 0 {
		c := &h[0]
		out = append(out, c.list[c.pos])
		c.pos++
		if c.pos == len(c.list) {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

type cursor struct {
	list  []domain.HistoryEntry
	pos   int
	order int
}

func (c cursor) head() domain.HistoryEntry { return c.list[c.pos] }

// cursorHeap is a max-heap on the head entry of each list.
type cursorHeap []cursor

func (h cursorHeap) Len() int { return len(h) }

func (h cursorHeap) Less(i, j int) bool {
	a, b := h[i].head(), h[j].head()
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return h[i].order < h[j].order
}

func (h cursorHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *cursorHeap) Push(x any) { *h = append(*h, x.(cursor)) }

func (h *cursorHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	*h = old[:n-1]
	return c
}
