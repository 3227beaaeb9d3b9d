package pipeline

import (
	"sort"
	"strings"
	"time"

	"taskdeck/internal/task"
)

// SortOption selects the ordering of the filtered snapshot.
type SortOption string

const (
	SortCreatedDesc  SortOption = "created_desc"
	SortCreatedAsc   SortOption = "created_asc"
	SortAlphaAsc     SortOption = "alpha_asc"
	SortAlphaDesc    SortOption = "alpha_desc"
	SortPriorityHigh SortOption = "priority_high"
	SortPriorityLow  SortOption = "priority_low"
	SortDueSoon      SortOption = "due_soon"
	SortDueLate      SortOption = "due_late"
)

// SortOptions lists every option in cycle order for the views.
func SortOptions() []SortOption {
	return []SortOption{
		SortCreatedDesc, SortCreatedAsc,
		SortAlphaAsc, SortAlphaDesc,
		SortPriorityHigh, SortPriorityLow,
		SortDueSoon, SortDueLate,
	}
}

func (o SortOption) Valid() bool {
	switch o {
	case SortCreatedDesc, SortCreatedAsc, SortAlphaAsc, SortAlphaDesc,
		SortPriorityHigh, SortPriorityLow, SortDueSoon, SortDueLate:
		return true
	}
	return false
}

// Sort returns a sorted copy of tasks. The input slice is left untouched
// and the sort is stable: tasks that compare equal after the documented
// tie-breaks keep their relative input order.
func Sort(tasks []task.Task, opt SortOption) []task.Task {
	out := make([]task.Task, len(tasks))
	copy(out, tasks)

	var less func(a, b task.Task) bool
	switch opt {
	case SortCreatedAsc:
		less = func(a, b task.Task) bool { return lessCreated(a, b, false) }
	case SortAlphaAsc:
		less = func(a, b task.Task) bool { return lessAlpha(a, b, false) }
	case SortAlphaDesc:
		less = func(a, b task.Task) bool { return lessAlpha(a, b, true) }
	case SortPriorityHigh:
		less = func(a, b task.Task) bool { return lessPriority(a, b, true) }
	case SortPriorityLow:
		less = func(a, b task.Task) bool { return lessPriority(a, b, false) }
	case SortDueSoon:
		less = func(a, b task.Task) bool { return lessDue(a, b, false) }
	case SortDueLate:
		less = func(a, b task.Task) bool { return lessDue(a, b, true) }
	default: // created_desc
		less = func(a, b task.Task) bool { return lessCreated(a, b, true) }
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

// createdAt tolerates malformed timestamps by treating them as the zero
// time, so a bad record sorts to the old end instead of breaking the view.
func createdAt(t task.Task) time.Time {
	when, err := task.ParseWhen(t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return when
}

func lessCreated(a, b task.Task, desc bool) bool {
	ca, cb := createdAt(a), createdAt(b)
	if !ca.Equal(cb) {
		if desc {
			return ca.After(cb)
		}
		return ca.Before(cb)
	}
	return a.ID < b.ID // deterministic tie-break, both directions
}

func lessAlpha(a, b task.Task, desc bool) bool {
	ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
	if ta == tb {
		return false // stable sort keeps input order
	}
	if desc {
		return ta > tb
	}
	return ta < tb
}

func lessPriority(a, b task.Task, high bool) bool {
	ra, rb := a.Priority.Rank(), b.Priority.Rank()
	if ra != rb {
		if high {
			return ra > rb
		}
		return ra < rb
	}
	return createdAt(a).After(createdAt(b)) // newest first on equal rank
}

// lessDue orders by due date; tasks without a resolvable due date sort
// after all dated tasks regardless of direction, never dropped.
func lessDue(a, b task.Task, late bool) bool {
	da, okA := dueTime(a)
	db, okB := dueTime(b)
	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case !okA && !okB:
		return false
	}
	if da.Equal(db) {
		return false
	}
	if late {
		return da.After(db)
	}
	return da.Before(db)
}

func dueTime(t task.Task) (time.Time, bool) {
	if t.DueDate == "" {
		return time.Time{}, false
	}
	when, err := task.ParseWhen(t.DueDate)
	if err != nil {
		return time.Time{}, false
	}
	return when, true
}
