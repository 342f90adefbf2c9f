package casefile

// Filter selects cases by id and tag. Empty fields match everything.
type Filter struct {
	IDs  []string
	Tags []string
}

// Empty reports whether the filter selects every case.
func (f Filter) Empty() bool {
	return len(f.IDs) == 0 && len(f.Tags) == 0
}

// Match reports whether c is selected: its id is listed (when IDs are given)
// and it carries at least one of Tags (when tags are given).
func (f Filter) Match(c *Case) bool {
	if len(f.IDs) > 0 && !contains(f.IDs, c.ID) {
		return false
	}
	if len(f.Tags) > 0 {
		for _, tag := range f.Tags {
			if c.HasTag(tag) {
				return true
			}
		}
		return false
	}
	return true
}

// Apply returns the cases selected by f, preserving order.
func (f Filter) Apply(cases []*Case) []*Case {
	if f.Empty() {
		return cases
	}
	var out []*Case
	for _, c := range cases {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
