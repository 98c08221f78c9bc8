package reminder

import "sort"

// Normalize repairs a form before validation: an after_event reminder is
// always an after_meal reminder and never carries days of week. Days for the
// other kinds are deduplicated and sorted; out-of-range days are kept so that
// Validate can report them.
func Normalize(f Form) Form {
	out := f
	if f.Kind() == KindAfterEvent {
		out.Type = TypeAfterMeal
		out.DaysOfWeek = nil
		return out
	}
	out.DaysOfWeek = normalizeDays(f.DaysOfWeek)
	return out
}

func normalizeDays(days []int) []int {
	if len(days) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(days))
	out := make([]int, 0, len(days))
	for _, d := range days {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Ints(out)
	return out
}
