package registry

import (
	"path/filepath"
	"testing"
)

func openTestRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestCommitAndLookup(t *testing.T) {
	reg := openTestRegistry(t)

	ports := map[string]int{"web": 3010, "db": 5442}
	if err := reg.Commit("acme", "feature-x", 10, ports); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	alloc, err := reg.Lookup("acme", "feature-x")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if alloc == nil {
		t.Fatal("Lookup() = nil for committed allocation")
	}
	if alloc.PortOffset != 10 {
		t.Errorf("PortOffset = %d, want 10", alloc.PortOffset)
	}
	if alloc.Ports["db"] != 5442 || alloc.Ports["web"] != 3010 {
		t.Errorf("Ports = %v", alloc.Ports)
	}
	if alloc.CreatedAt.IsZero() {
		t.Error("CreatedAt not recorded")
	}
}

func TestLookupAbsent(t *testing.T) {
	reg := openTestRegistry(t)

	alloc, err := reg.Lookup("acme", "nope")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if alloc != nil {
		t.Errorf("Lookup() = %+v, want nil for absent record", alloc)
	}
}

func TestUsedOffsets(t *testing.T) {
	reg := openTestRegistry(t)

	if err := reg.Commit("acme", "a", 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Commit("acme", "b", 10, nil); err != nil {
		t.Fatal(err)
	}
	// Another repository's offsets must not leak in.
	if err := reg.Commit("other", "c", 20, nil); err != nil {
		t.Fatal(err)
	}

	used, err := reg.UsedOffsets("acme")
	if err != nil {
		t.Fatalf("UsedOffsets() error = %v", err)
	}

	if !used[0] || !used[10] || used[20] || len(used) != 2 {
		t.Errorf("UsedOffsets() = %v, want {0,10}", used)
	}
}

func TestOffsetUniquenessEnforced(t *testing.T) {
	reg := openTestRegistry(t)

	if err := reg.Commit("acme", "a", 10, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Commit("acme", "b", 10, nil); err == nil {
		t.Error("Commit() with a duplicate offset for the same repo should fail")
	}
	// The same offset for a different repository is fine.
	if err := reg.Commit("other", "b", 10, nil); err != nil {
		t.Errorf("Commit() for a different repo failed: %v", err)
	}
}

func TestRecommitReplacesRecord(t *testing.T) {
	reg := openTestRegistry(t)

	if err := reg.Commit("acme", "a", 10, map[string]int{"web": 3010}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Commit("acme", "a", 20, map[string]int{"web": 3020}); err != nil {
		t.Fatalf("re-commit failed: %v", err)
	}

	alloc, err := reg.Lookup("acme", "a")
	if err != nil {
		t.Fatal(err)
	}
	if alloc.PortOffset != 20 || alloc.Ports["web"] != 3020 {
		t.Errorf("allocation not replaced: %+v", alloc)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	reg := openTestRegistry(t)

	if err := reg.Commit("acme", "a", 0, nil); err != nil {
		t.Fatal(err)
	}

	if err := reg.Remove("acme", "a"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := reg.Remove("acme", "a"); err != nil {
		t.Fatalf("second Remove() error = %v", err)
	}

	allocations, err := reg.List("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(allocations) != 0 {
		t.Errorf("List() = %v, want empty after removal", allocations)
	}
}

func TestListFiltersByRepo(t *testing.T) {
	reg := openTestRegistry(t)

	if err := reg.Commit("acme", "a", 0, nil); err != nil {
		t.Fatal(err)
	}
	if err := reg.Commit("other", "b", 0, nil); err != nil {
		t.Fatal(err)
	}

	acme, err := reg.List("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(acme) != 1 || acme[0].Worktree != "a" {
		t.Errorf("List(acme) = %v", acme)
	}

	all, err := reg.List("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("List() = %v, want both records", all)
	}
}

func TestSequentialAllocationsDistinct(t *testing.T) {
	reg := openTestRegistry(t)

	seen := make(map[int]bool)
	for i := 0; i < 5; i++ {
		offset := i * 10
		if err := reg.Commit("acme", string(rune('a'+i)), offset, nil); err != nil {
			t.Fatalf("Commit(%d) error = %v", offset, err)
		}
		if seen[offset] {
			t.Fatalf("offset %d committed twice", offset)
		}
		seen[offset] = true
	}

	used, err := reg.UsedOffsets("acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(used) != 5 {
		t.Errorf("UsedOffsets() = %v, want 5 distinct offsets", used)
	}
}
