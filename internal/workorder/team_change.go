package workorder

import (
	"sort"
	"strings"

	"github.com/SpaceTrucker2196/fieldhand/internal/directory"
)

// diffIDs compares the worker set of the just-closed segment against the
// currently assigned team's active members. Both slices are treated as
// sets; the returned slices are sorted.
func diffIDs(was, now []string) (added, removed []string) {
	wasSet := make(map[string]struct{}, len(was))
	for _, id := range was {
		wasSet[id] = struct{}{}
	}
	nowSet := make(map[string]struct{}, len(now))
	for _, id := range now {
		nowSet[id] = struct{}{}
	}

	for id := range nowSet {
		if _, ok := wasSet[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range wasSet {
		if _, ok := nowSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func workerIDs(workers []directory.Worker) []string {
	ids := make([]string, 0, len(workers))
	for _, w := range workers {
		ids = append(ids, w.WorkerID)
	}
	sort.Strings(ids)
	return ids
}

// joinWorkers renders a crew as sorted display names for audit details.
func joinWorkers(workers []directory.Worker) string {
	names := make([]string, 0, len(workers))
	for _, w := range workers {
		names = append(names, w.Name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// joinNames renders worker ids as display names where the directory
// snapshot knows them, falling back to the raw id for departed workers.
func joinNames(ids []string, known []directory.Worker) string {
	byID := make(map[string]string, len(known))
	for _, w := range known {
		byID[w.WorkerID] = w.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

func joinIDs(ids []string) string {
	return strings.Join(ids, ", ")
}
