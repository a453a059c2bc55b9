package docengine

import "testing"

func TestTryRegisterWaiter_SelfWaitIsImmediateCycle(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")

	if tr.TryRegisterWaiter("node-a", "worker-1") {
		t.Fatalf("worker waiting on a node it is itself processing must be refused")
	}
}

func TestTryRegisterWaiter_TransitiveCycleRefused(t *testing.T) {
	tr := NewThreadDependencyTracker()

	// worker-1 processes node-a, worker-2 processes node-b.
	tr.RegisterProcessor("node-a", "worker-1")
	tr.RegisterProcessor("node-b", "worker-2")

	// worker-1 waits on node-b (processed by worker-2): fine so far.
	if !tr.TryRegisterWaiter("node-b", "worker-1") {
		t.Fatalf("expected first wait registration to succeed")
	}

	// worker-2 now wants to wait on node-a, which worker-1 processes.
	// worker-1 is already waiting on node-b (worker-2's node) -- granting
	// this would close a 2-cycle.
	if tr.TryRegisterWaiter("node-a", "worker-2") {
		t.Fatalf("transitive cycle must be refused")
	}
}

func TestTryRegisterWaiter_NoProcessorYetIsSafe(t *testing.T) {
	tr := NewThreadDependencyTracker()
	if !tr.TryRegisterWaiter("node-x", "worker-1") {
		t.Fatalf("waiting on a node with no processor yet must be safe")
	}
}

func TestUnregisterWaiter_RemovesDependency(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")
	tr.TryRegisterWaiter("node-b", "worker-1")
	tr.UnregisterWaiter("node-b", "worker-1")

	status := tr.GetStatus()
	if len(status.Waiting["worker-1"]) != 0 {
		t.Fatalf("expected no remaining wait entries after unregister")
	}
}

func TestUnregisterProcessor_ClearsProcessing(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")
	tr.UnregisterProcessor("node-a")

	// Now waiting on node-a should be safe for any worker, since nobody
	// processes it any more.
	if !tr.TryRegisterWaiter("node-a", "worker-2") {
		t.Fatalf("expected wait to succeed once processor is cleared")
	}
}

func TestCyclePath_SelfWait(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")

	members := tr.CyclePath("node-a", "worker-1")
	if len(members) != 1 || members[0] != "node-a" {
		t.Fatalf("self-wait cycle must name only the node itself, got %v", members)
	}
}

func TestCyclePath_TwoWorkerLoop(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")
	tr.RegisterProcessor("node-b", "worker-2")
	tr.TryRegisterWaiter("node-b", "worker-1")

	// worker-2 waiting on node-a would close the loop through node-b.
	members := tr.CyclePath("node-a", "worker-2")
	if len(members) != 2 || members[0] != "node-a" || members[1] != "node-b" {
		t.Fatalf("expected the loop's two nodes in walk order, got %v", members)
	}
}

func TestCyclePath_NoLoop(t *testing.T) {
	tr := NewThreadDependencyTracker()
	tr.RegisterProcessor("node-a", "worker-1")

	if members := tr.CyclePath("node-a", "worker-2"); members != nil {
		t.Fatalf("no loop exists, expected nil, got %v", members)
	}
	if members := tr.CyclePath("unclaimed", "worker-2"); members != nil {
		t.Fatalf("unclaimed node cannot be in a loop, got %v", members)
	}
}
