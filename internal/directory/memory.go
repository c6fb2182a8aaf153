package directory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Memory is an in-memory Directory used for embedding and tests.
type Memory struct {
	mu      sync.RWMutex
	workers map[string]Worker
	teams   map[string]Team
}

func NewMemory() *Memory {
	return &Memory{
		workers: make(map[string]Worker),
		teams:   make(map[string]Team),
	}
}

// PutWorker adds or replaces a worker.
func (m *Memory) PutWorker(w Worker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[w.WorkerID] = w
}

// PutTeam adds or replaces a team.
func (m *Memory) PutTeam(t Team) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.MemberIDs = slices.Clone(t.MemberIDs)
	m.teams[t.TeamID] = t
}

// AddMember adds a worker to a team's membership set.
func (m *Memory) AddMember(teamID, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	if !slices.Contains(t.MemberIDs, workerID) {
		t.MemberIDs = append(t.MemberIDs, workerID)
		m.teams[teamID] = t
	}
	return nil
}

// RemoveMember removes a worker from a team's membership set.
func (m *Memory) RemoveMember(teamID, workerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.teams[teamID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}
	t.MemberIDs = slices.DeleteFunc(slices.Clone(t.MemberIDs), func(id string) bool {
		return id == workerID
	})
	m.teams[teamID] = t
	return nil
}

func (m *Memory) ActiveMembers(ctx context.Context, teamID string) ([]Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.teams[teamID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTeamNotFound, teamID)
	}

	members := make([]Worker, 0, len(t.MemberIDs))
	for _, id := range t.MemberIDs {
		w, ok := m.workers[id]
		if !ok || !w.Active {
			continue
		}
		members = append(members, w)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].WorkerID < members[j].WorkerID })
	return members, nil
}

func (m *Memory) IsActive(ctx context.Context, workerID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.workers[workerID]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrWorkerNotFound, workerID)
	}
	return w.Active, nil
}
