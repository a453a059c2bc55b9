package docengine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/llmclient"
)

// fakeStore is an in-memory GraphReader: a function node's call children
// are whatever `calls` maps it to, by name; there is no hierarchy.
type fakeStore struct {
	nodes map[string]graph.Node
	calls map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{nodes: map[string]graph.Node{}, calls: map[string][]string{}}
}

func (s *fakeStore) addFunction(name string, calls ...string) {
	scope := graph.Scope{RepoID: "repo1", EntityID: "e1"}
	n := scope.SymbolNode(graph.LabelFunction, name+".go", name, graph.DeclarationRange{StartLine: 1, EndLine: 10})
	n.Properties = map[string]interface{}{"text": "func " + name + "() { ... }"}
	s.nodes[name] = n
	s.calls[name] = calls
}

func (s *fakeStore) idOf(name string) string { return s.nodes[name].ID }

func (s *fakeStore) GetNode(ctx context.Context, nodeID string) (graph.Node, error) {
	for _, n := range s.nodes {
		if n.ID == nodeID {
			return n, nil
		}
	}
	return graph.Node{}, fmt.Errorf("not found: %s", nodeID)
}

func (s *fakeStore) Children(ctx context.Context, nodeID string) ([]graph.Node, error) {
	return nil, nil
}

func (s *fakeStore) CallChildren(ctx context.Context, nodeID string) ([]graph.Node, error) {
	var name string
	for n, node := range s.nodes {
		if node.ID == nodeID {
			name = n
			break
		}
	}
	var out []graph.Node
	for _, callee := range s.calls[name] {
		out = append(out, s.nodes[callee])
	}
	return out, nil
}

// countingLLM returns a canned response, counts calls, and records each
// user prompt, optionally with an artificial delay to widen race windows
// in concurrent tests.
type countingLLM struct {
	calls atomic.Int64
	delay time.Duration
	mu    sync.Mutex
	users []string
}

func (c *countingLLM) Chat(ctx context.Context, system, user string) (llmclient.Response, error) {
	c.calls.Add(1)
	c.mu.Lock()
	c.users = append(c.users, user)
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	return llmclient.Response{Text: "a description", Provider: "fake", Model: "fake"}, nil
}

// sawCyclePrompt reports whether any recorded call used the
// cycle-diagnostic template.
func (c *countingLLM) sawCyclePrompt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, u := range c.users {
		if strings.HasPrefix(u, "Cycle members:") {
			return true
		}
	}
	return false
}

func (c *countingLLM) Name() string { return "fake" }

func testEngineConfig(workers int) config.EngineConfig {
	return config.EngineConfig{Workers: workers, MaxCallBudget: 1000, MaxRecursDepth: 64}
}

// Simple cycle: f0 -> f1 -> f2 -> f0, one worker.
func TestEngine_SimpleCycleOneWorker(t *testing.T) {
	store := newFakeStore()
	store.addFunction("f2", "f0")
	store.addFunction("f1", "f2")
	store.addFunction("f0", "f1")

	llm := &countingLLM{}
	eng := NewEngine(store, llm, testEngineConfig(1))

	result, err := eng.Run(context.Background(), store.idOf("f0"), "repo1", "e1")
	require.NoError(t, err)
	require.Len(t, result.Nodes, 3, "exactly one documentation node per function")
	require.Len(t, result.Edges, 3)
	require.LessOrEqual(t, result.CallCount, 6)
	require.True(t, llm.sawCyclePrompt(), "closing the loop must dispatch the cycle-diagnostic template")

	described := map[string]bool{}
	for _, n := range result.Nodes {
		described[n.Name] = true // Name on a DOCUMENTATION node is the described node's id
	}
	for _, fn := range []string{"f0", "f1", "f2"} {
		require.True(t, described[store.idOf(fn)], "%s should have a documentation node", fn)
	}
}

// Shared dependency is not a cycle: three processors each call the same
// three utilities. Each utility and each processor is described exactly
// once.
func TestEngine_SharedDependencyCachedNotCycle(t *testing.T) {
	store := newFakeStore()
	store.addFunction("util_a")
	store.addFunction("util_b")
	store.addFunction("util_c")
	store.addFunction("proc1", "util_a", "util_b", "util_c")
	store.addFunction("proc2", "util_a", "util_b", "util_c")
	store.addFunction("proc3", "util_a", "util_b", "util_c")
	store.addFunction("root", "proc1", "proc2", "proc3")

	llm := &countingLLM{delay: time.Millisecond}
	eng := NewEngine(store, llm, testEngineConfig(8))

	result, err := eng.Run(context.Background(), store.idOf("root"), "repo1", "e1")
	require.NoError(t, err)

	// root + 3 processors + 3 utilities = 7 distinct documentation nodes.
	require.Len(t, result.Nodes, 7)
	require.EqualValues(t, 7, llm.calls.Load())
	require.EqualValues(t, 7, result.CallCount)
	require.False(t, llm.sawCyclePrompt(), "a shared dependency is not a cycle and must not dispatch the cycle template")
}

// The same cycle with a larger worker budget must still terminate and
// produce exactly one documentation node per participant when workers can
// run concurrently.
func TestEngine_SimpleCycleConcurrent(t *testing.T) {
	store := newFakeStore()
	store.addFunction("f2", "f0")
	store.addFunction("f1", "f2")
	store.addFunction("f0", "f1")

	llm := &countingLLM{delay: time.Millisecond}
	eng := NewEngine(store, llm, testEngineConfig(4))

	result, err := eng.Run(context.Background(), store.idOf("f0"), "repo1", "e1")
	require.NoError(t, err)
	require.Len(t, result.Nodes, 3)
	require.LessOrEqual(t, result.CallCount, 6)
}
