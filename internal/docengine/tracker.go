package docengine

import (
	"log/slog"
	"sync"
)

// ThreadDependencyTracker prevents the recursive documentation engine's
// worker pool from deadlocking on a dependency cycle. A worker about to
// recurse into a child node registers itself as a waiter for that node; if
// another worker is already processing it, and that worker is itself
// (transitively) waiting on something the first worker is processing, the
// registration is refused and the caller falls back to documenting the
// node without recursing further.
//
// Go has no native thread-id primitive, so callers pass an opaque worker
// token (their worker index), the same way a bounded worker pool elsewhere
// in this codebase threads a workerID through its goroutines.
type ThreadDependencyTracker struct {
	mu         sync.Mutex
	waiting    map[string]map[string]struct{} // worker -> set of node ids it's waiting on
	processing map[string]string              // node id -> worker processing it
	logger     *slog.Logger
}

func NewThreadDependencyTracker() *ThreadDependencyTracker {
	return &ThreadDependencyTracker{
		waiting:    make(map[string]map[string]struct{}),
		processing: make(map[string]string),
		logger:     slog.Default().With("component", "docengine.tracker"),
	}
}

// RegisterProcessor records that worker is the one documenting nodeID.
func (t *ThreadDependencyTracker) RegisterProcessor(nodeID, worker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processing[nodeID] = worker
}

// UnregisterProcessor clears the processor association once nodeID is done.
func (t *ThreadDependencyTracker) UnregisterProcessor(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.processing, nodeID)
}

// TryRegisterWaiter registers worker as waiting on nodeID, unless doing so
// would close a cycle -- in which case it registers nothing and returns
// false.
func (t *ThreadDependencyTracker) TryRegisterWaiter(nodeID, worker string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.wouldDeadlock(nodeID, worker) {
		t.logger.Warn("deadlock prevention: refusing wait", "node_id", nodeID, "worker", worker)
		return false
	}

	if t.waiting[worker] == nil {
		t.waiting[worker] = make(map[string]struct{})
	}
	t.waiting[worker][nodeID] = struct{}{}
	return true
}

// UnregisterWaiter clears a previously granted wait registration.
func (t *ThreadDependencyTracker) UnregisterWaiter(nodeID, worker string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if set, ok := t.waiting[worker]; ok {
		delete(set, nodeID)
		if len(set) == 0 {
			delete(t.waiting, worker)
		}
	}
}

// wouldDeadlock reports whether worker waiting on nodeID would close a
// cycle: nodeID's current processor is worker itself, or is transitively
// waiting (via the waiting/processing relation) on something worker
// processes. Caller must hold t.mu.
func (t *ThreadDependencyTracker) wouldDeadlock(nodeID, worker string) bool {
	processor, ok := t.processing[nodeID]
	if !ok {
		return false
	}
	if processor == worker {
		return true
	}
	return t.hasTransitiveDependency(processor, worker)
}

// hasTransitiveDependency reports whether startWorker's wait chain
// eventually reaches targetWorker, walking worker -> node -> processor
// edges depth-first. Caller must hold t.mu.
func (t *ThreadDependencyTracker) hasTransitiveDependency(startWorker, targetWorker string) bool {
	visited := make(map[string]struct{})
	stack := []string{startWorker}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		if current == targetWorker {
			return true
		}

		for nodeID := range t.waiting[current] {
			if proc, ok := t.processing[nodeID]; ok {
				if _, seen := visited[proc]; !seen {
					stack = append(stack, proc)
				}
			}
		}
	}
	return false
}

// CyclePath returns the node ids along the dependency loop that would close
// if worker waited on nodeID: nodeID itself, then each node a worker on the
// chain is waiting on, walking back until the chain reaches worker. Returns
// nil when no loop would close. Used to name the cycle's members when the
// engine documents one instead of waiting into it.
func (t *ThreadDependencyTracker) CyclePath(nodeID, worker string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	processor, ok := t.processing[nodeID]
	if !ok {
		return nil
	}
	if processor == worker {
		return []string{nodeID}
	}

	visited := make(map[string]struct{})
	var walk func(current string, path []string) []string
	walk = func(current string, path []string) []string {
		if current == worker {
			return path
		}
		if _, seen := visited[current]; seen {
			return nil
		}
		visited[current] = struct{}{}
		for waited := range t.waiting[current] {
			proc, ok := t.processing[waited]
			if !ok {
				continue
			}
			next := append(append([]string(nil), path...), waited)
			if found := walk(proc, next); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(processor, []string{nodeID})
}

// Status is a point-in-time snapshot for diagnostics.
type Status struct {
	Waiting    map[string][]string
	Processing map[string]string
}

func (t *ThreadDependencyTracker) GetStatus() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	waiting := make(map[string][]string, len(t.waiting))
	for worker, nodes := range t.waiting {
		list := make([]string, 0, len(nodes))
		for n := range nodes {
			list = append(list, n)
		}
		waiting[worker] = list
	}
	processing := make(map[string]string, len(t.processing))
	for k, v := range t.processing {
		processing[k] = v
	}
	return Status{Waiting: waiting, Processing: processing}
}
