//go:build linux

// Package affinity pins the calling OS thread to a single logical CPU, so
// the ingestion loop's one thread never migrates and cold-misses its way
// through the scheduler's idea of "nearby" caches.
package affinity

import "golang.org/x/sys/unix"

// Pin pins the current OS thread to cpu. Errors are deliberately
// non-fatal: on a containerized or cgroup-constrained host the call may
// return EPERM/EINVAL, and running unpinned is preferable to refusing to
// start.
func Pin(cpu int) error {
	if cpu < 0 {
		return nil
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
