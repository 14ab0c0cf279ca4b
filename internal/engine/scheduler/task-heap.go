package scheduler

import (
	"container/heap"
	"strings"
	"time"

	"github.com/kode4food/quarry/pkg/util"
)

type (
	// Task is a deadline registered under a hierarchical key
	Task struct {
		Func  TaskFunc
		At    time.Time
		Key   []string
		id    string
		index int
	}

	// TaskHeap orders tasks by deadline. Tasks are unique per key, and a
	// whole key prefix can be cancelled at once
	TaskHeap struct {
		items []*Task
		byID  map[string]*Task
		byKey *util.PathTree[*Task]
	}
)

// NewTaskHeap creates an empty task heap
func NewTaskHeap() *TaskHeap {
	h := &TaskHeap{
		byID:  map[string]*Task{},
		byKey: util.NewPathTree[*Task](),
	}
	heap.Init(h)
	return h
}

// Insert adds a task, or moves the deadline of the task already
// registered under the same key
func (h *TaskHeap) Insert(t *Task) {
	if t == nil || t.Func == nil || t.At.IsZero() || len(t.Key) == 0 {
		return
	}
	t.id = keyID(t.Key)
	if old, ok := h.byID[t.id]; ok {
		old.Func = t.Func
		old.At = t.At
		heap.Fix(h, old.index)
		return
	}
	heap.Push(h, t)
}

// PopTask removes and returns the task with the earliest deadline
func (h *TaskHeap) PopTask() *Task {
	if h.Len() == 0 {
		return nil
	}
	return heap.Pop(h).(*Task)
}

// Peek returns the task with the earliest deadline without removing it
func (h *TaskHeap) Peek() *Task {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

// Cancel removes the task registered under the exact key
func (h *TaskHeap) Cancel(key []string) {
	if len(key) == 0 {
		return
	}
	if t, ok := h.byID[keyID(key)]; ok {
		heap.Remove(h, t.index)
	}
}

// CancelPrefix removes every task whose key starts with prefix
func (h *TaskHeap) CancelPrefix(prefix []string) {
	if len(prefix) == 0 {
		return
	}
	for _, t := range h.byKey.Detach(prefix) {
		delete(h.byID, t.id)
		heap.Remove(h, t.index)
	}
}

// Len returns the number of scheduled tasks
func (h *TaskHeap) Len() int {
	return len(h.items)
}

func (h *TaskHeap) Less(i, j int) bool {
	return h.items[i].At.Before(h.items[j].At)
}

func (h *TaskHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *TaskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(h.items)
	h.items = append(h.items, t)
	h.byID[t.id] = t
	h.byKey.Insert(t.Key, t)
}

func (h *TaskHeap) Pop() any {
	old := h.items
	n := len(old)
	if n == 0 {
		return nil
	}
	t := old[n-1]
	old[n-1] = nil
	h.items = old[:n-1]
	t.index = -1
	delete(h.byID, t.id)
	h.byKey.Remove(t.Key)
	return t
}

func keyID(key []string) string {
	return strings.Join(key, "\x00")
}
