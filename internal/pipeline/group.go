package pipeline

import (
	"time"

	"taskdeck/internal/task"
)

// Column is one kanban lane. A zero Status marks the unrecognized lane.
type Column struct {
	Status task.Status
	Tasks  []task.Task
}

// Board is the by-status partition of a snapshot. Columns follow the
// canonical status order; Unrecognized collects tasks whose status falls
// outside the closed set so nothing silently disappears.
type Board struct {
	Columns      []Column
	Unrecognized []task.Task
}

// Total counts every task on the board, unrecognized included.
func (b Board) Total() int {
	n := len(b.Unrecognized)
	for _, c := range b.Columns {
		n += len(c.Tasks)
	}
	return n
}

// GroupByStatus partitions tasks into one column per known status,
// preserving input order within each column.
func GroupByStatus(tasks []task.Task) Board {
	order := task.KnownStatuses()
	index := make(map[task.Status]int, len(order))
	board := Board{Columns: make([]Column, len(order))}
	for i, s := range order {
		board.Columns[i] = Column{Status: s}
		index[s] = i
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			board.Columns[i].Tasks = append(board.Columns[i].Tasks, t)
			continue
		}
		board.Unrecognized = append(board.Unrecognized, t)
	}
	return board
}

// OnDay reports whether a task belongs to the given calendar day. The due
// date decides when present: a resolvable due date is compared to the day,
// and a malformed one excludes the task from every bucket rather than
// falling back. Only a task with no due date at all is placed by its
// start date.
func OnDay(t task.Task, day time.Time) bool {
	if t.DueDate != "" {
		due, err := task.ResolveDay(t.DueDate)
		if err != nil {
			return false
		}
		return task.SameDay(due, day)
	}
	if t.StartDate != "" {
		start, err := task.ResolveDay(t.StartDate)
		if err != nil {
			return false
		}
		return task.SameDay(start, day)
	}
	return false
}

// DayBucket is one calendar cell: the tasks that land on Day.
type DayBucket struct {
	Day   time.Time
	Tasks []task.Task
}

// BucketByDays buckets tasks into the given sequence of days, keeping
// input order within each bucket. Tasks with no resolvable date simply
// appear in no bucket; they are still visible in the list and kanban views.
func BucketByDays(tasks []task.Task, days []time.Time) []DayBucket {
	buckets := make([]DayBucket, len(days))
	for i, d := range days {
		buckets[i] = DayBucket{Day: d}
	}
	for _, t := range tasks {
		for i := range buckets {
			if OnDay(t, buckets[i].Day) {
				buckets[i].Tasks = append(buckets[i].Tasks, t)
			}
		}
	}
	return buckets
}

// Apply runs the full pipeline: filter, then sort. Grouping is layered on
// top by whichever view needs it.
func Apply(tasks []task.Task, f Filters, opt SortOption) []task.Task {
	return Sort(Filter(tasks, f), opt)
}
