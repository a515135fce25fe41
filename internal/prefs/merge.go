package prefs

// Merge keeps the persisted ids that are still live, in persisted order,
// then appends live ids not yet present in discovery order.
func Merge(persisted, live []string) []string {
	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	out := make([]string, 0, len(live))
	kept := make(map[string]bool, len(live))
	for _, id := range persisted {
		if liveSet[id] && !kept[id] {
			kept[id] = true
			out = append(out, id)
		}
	}
	for _, id := range live {
		if !kept[id] {
			kept[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Retain drops ids that are no longer live. Pins use it so that a rescan
// never pins new apps.
func Retain(ids, live []string) []string {
	liveSet := make(map[string]bool, len(live))
	for _, id := range live {
		liveSet[id] = true
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if liveSet[id] {
			out = append(out, id)
		}
	}
	return out
}

// MoveID moves from into the position of to. Unknown or equal ids return
// ids unchanged.
func MoveID(ids []string, from, to string) []string {
	fi, ti := indexOf(ids, from), indexOf(ids, to)
	if fi < 0 || ti < 0 || fi == ti {
		return ids
	}
	next := make([]string, 0, len(ids))
	next = append(next, ids[:fi]...)
	next = append(next, ids[fi+1:]...)
	next = append(next[:ti], append([]string{from}, next[ti:]...)...)
	return next
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
