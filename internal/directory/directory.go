// Package directory is the read-only boundary to worker identity and team
// membership. The core only ever holds worker ids; it snapshots membership
// at the moment of each command and never writes back.
package directory

import (
	"context"
	"errors"
)

var (
	ErrWorkerNotFound = errors.New("worker not found")
	ErrTeamNotFound   = errors.New("team not found")
)

// Worker is a directory read model. The core treats it as an immutable
// snapshot taken at command time.
type Worker struct {
	WorkerID string
	Name     string
	Active   bool
}

// Team is a named set of workers. Membership ordering is irrelevant; a team
// can change independently of any work order it is assigned to.
type Team struct {
	TeamID    string
	Name      string
	Active    bool
	MemberIDs []string
}

// Directory provides worker identity and team membership lookups.
type Directory interface {
	// ActiveMembers returns the active workers currently on the team.
	ActiveMembers(ctx context.Context, teamID string) ([]Worker, error)
	// IsActive reports whether the worker exists and is active.
	IsActive(ctx context.Context, workerID string) (bool, error)
}
