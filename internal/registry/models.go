package registry

import "time"

// Allocation represents one worktree's port allocation record
type Allocation struct {
	ID         int
	RepoAlias  string
	Worktree   string
	PortOffset int
	Ports      map[string]int // service name -> external port
	CreatedAt  time.Time
}
