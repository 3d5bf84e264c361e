package sim

import "container/heap"

// QuarantineInfo schedules the end of contact-tracing monitoring for a case.
type QuarantineInfo struct {
	Agent AgentID
	Until int
}

// QuarantineQueue is a min-heap of QuarantineInfo with deterministic ordering.
// Ordering: release step → agent id.
type QuarantineQueue struct {
	entries []QuarantineInfo
}

// NewQuarantineQueue creates an empty queue.
func NewQuarantineQueue() *QuarantineQueue {
	q := &QuarantineQueue{entries: make([]QuarantineInfo, 0)}
	heap.Init(q)
	return q
}

// Len implements heap.Interface
func (q *QuarantineQueue) Len() int {
	return len(q.entries)
}

// Less implements heap.Interface
func (q *QuarantineQueue) Less(i, j int) bool {
	ei, ej := q.entries[i], q.entries[j]
	if ei.Until != ej.Until {
		return ei.Until < ej.Until
	}
	return ei.Agent < ej.Agent
}

// Swap implements heap.Interface
func (q *QuarantineQueue) Swap(i, j int) {
	q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
}

// Push implements heap.Interface
func (q *QuarantineQueue) Push(x interface{}) {
	q.entries = append(q.entries, x.(QuarantineInfo))
}

// Pop implements heap.Interface
func (q *QuarantineQueue) Pop() interface{} {
	old := q.entries
	n := len(old)
	item := old[n-1]
	q.entries = old[0 : n-1]
	return item
}

// Schedule adds an entry.
func (q *QuarantineQueue) Schedule(info QuarantineInfo) {
	heap.Push(q, info)
}

// Peek returns the earliest entry without removing it.
func (q *QuarantineQueue) Peek() (QuarantineInfo, bool) {
	if q.Len() == 0 {
		return QuarantineInfo{}, false
	}
	return q.entries[0], true
}

// PopDue removes and returns every entry whose release step is at or
// before step, earliest first.
func (q *QuarantineQueue) PopDue(step int) []QuarantineInfo {
	var due []QuarantineInfo
	for q.Len() > 0 && q.entries[0].Until <= step {
		due = append(due, heap.Pop(q).(QuarantineInfo))
	}
	return due
}
