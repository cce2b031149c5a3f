package engine

import "sort"

// diffGroups returns, for every group present in cur, the ids that were not
// in the previous snapshot of that group. Groups only present in prev are
// ignored: removals never produce a signal. Added sets come back sorted;
// groups with nothing added are omitted.
func diffGroups(prev, cur map[string][]string) map[string][]string {
	added := map[string][]string{}
	for group, ids := range cur {
		seen := map[string]struct{}{}
		for _, id := range prev[group] {
			seen[id] = struct{}{}
		}
		var fresh []string
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			// Guard against duplicate ids within one fetch.
			seen[id] = struct{}{}
			fresh = append(fresh, id)
		}
		if len(fresh) > 0 {
			sort.Strings(fresh)
			added[group] = fresh
		}
	}
	return added
}
