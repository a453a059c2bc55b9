package batchdoc

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/llmclient"
)

// fakeStore is an in-memory two-level hierarchy: one root FILE containing
// three FUNCTION leaves, matching the batch scheduler's wavefront shape
// (leaf round, then one parent round).
type fakeStore struct {
	mu       sync.Mutex
	nodes    map[string]graph.Node
	children map[string][]string // nodeID -> child nodeIDs (hierarchy)
	status   map[string]string
	runOf    map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:    map[string]graph.Node{},
		children: map[string][]string{},
		status:   map[string]string{},
		runOf:    map[string]string{},
	}
}

func (s *fakeStore) addLeaf(name string) graph.Node {
	scope := graph.Scope{RepoID: "repo1", EntityID: "e1"}
	n := scope.SymbolNode(graph.LabelFunction, name+".go", name, graph.DeclarationRange{StartLine: 1, EndLine: 5})
	n.Properties = map[string]interface{}{"text": "func body"}
	s.nodes[n.ID] = n
	return n
}

func (s *fakeStore) addFile(name string, children ...graph.Node) graph.Node {
	n := graph.Scope{RepoID: "repo1", EntityID: "e1"}.FileNode(name)
	s.nodes[n.ID] = n
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID
	}
	s.children[n.ID] = ids
	return n
}

func (s *fakeStore) Leaves(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]graph.Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.Node
	for id, n := range s.nodes {
		if s.status[id] != "" {
			continue
		}
		if n.Label == graph.LabelFunction && len(s.children[id]) == 0 {
			s.status[id] = "in_progress"
			s.runOf[id] = runID
			out = append(out, n)
		}
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) ExpandFrontier(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]graph.FrontierNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []graph.FrontierNode
	for id, n := range s.nodes {
		if s.status[id] != "" {
			continue
		}
		kids := s.children[id]
		allDone := true
		var descs []graph.ChildDescription
		for _, cid := range kids {
			if s.status[cid] != "completed" {
				allDone = false
				break
			}
			c := s.nodes[cid]
			descs = append(descs, graph.ChildDescription{ID: cid, Name: c.Name, Path: c.Path, Description: "a description"})
		}
		if !allDone {
			continue
		}
		s.status[id] = "in_progress"
		s.runOf[id] = runID
		out = append(out, graph.FrontierNode{Node: n, HierarchyChildren: descs})
		if len(out) >= batchSize {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) MarkCompleted(ctx context.Context, repoID, entityID, runID string, nodeIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range nodeIDs {
		if s.runOf[id] == runID {
			s.status[id] = "completed"
		}
	}
	return nil
}

func (s *fakeStore) CountPending(ctx context.Context, repoID, entityID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.nodes {
		if s.status[id] == "" {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) ResetRun(ctx context.Context, repoID, entityID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, run := range s.runOf {
		if run == runID && s.status[id] == "in_progress" {
			s.status[id] = ""
			delete(s.runOf, id)
		}
	}
	return nil
}

type stubLLM struct{}

func (stubLLM) Chat(ctx context.Context, system, user string) (llmclient.Response, error) {
	return llmclient.Response{Text: "a description", Provider: "fake", Model: "fake"}, nil
}
func (stubLLM) Name() string { return "fake" }

// Batch scheduling terminates in leaf-rounds-then-parent-rounds order and
// documents every node exactly once.
func TestScheduler_LeafThenParentWavefront(t *testing.T) {
	store := newFakeStore()
	l1 := store.addLeaf("leaf1")
	l2 := store.addLeaf("leaf2")
	l3 := store.addLeaf("leaf3")
	root := store.addFile("root.go", l1, l2, l3)

	sched := NewScheduler(store, stubLLM{}, config.EngineConfig{BatchSize: 2})
	result, err := sched.Run(context.Background(), "repo1", "e1")
	require.NoError(t, err)

	require.Len(t, result.Nodes, 4, "one documentation node per leaf plus the root")
	require.Len(t, result.Edges, 4)
	require.GreaterOrEqual(t, result.Rounds, 2, "batch size 2 forces at least two leaf rounds before the parent round")

	described := map[string]bool{}
	for _, n := range result.Nodes {
		described[n.Name] = true
		require.Equal(t, "repo1", n.RepoID, "documentation nodes carry the run's tenancy keys")
		require.Equal(t, "e1", n.EntityID)
	}
	require.True(t, described[l1.ID])
	require.True(t, described[l2.ID])
	require.True(t, described[l3.ID])
	require.True(t, described[root.ID])

	pending, err := store.CountPending(context.Background(), "repo1", "e1")
	require.NoError(t, err)
	require.Equal(t, 0, pending)
}

// A cyclic hierarchy (impossible for real FILE/CONTAINS structure but
// exercising the stall-detection path) must surface an error instead of
// spinning forever.
func TestScheduler_StallsOnUnresolvableCycle(t *testing.T) {
	store := newFakeStore()
	a := store.addLeaf("a")
	b := store.addLeaf("b")
	store.children[a.ID] = []string{b.ID}
	store.children[b.ID] = []string{a.ID}

	sched := NewScheduler(store, stubLLM{}, config.EngineConfig{BatchSize: 10})
	_, err := sched.Run(context.Background(), "repo1", "e1")
	require.Error(t, err)
}
