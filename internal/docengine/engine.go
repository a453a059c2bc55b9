// Package docengine implements the recursive documentation engine: a
// parallel, bottom-up traversal of the code hierarchy and call graph that
// generates one description per node, tolerating cycles of arbitrary depth
// via the thread dependency tracker (tracker.go).
package docengine

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/graphforge/codegraph/internal/cache"
	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/llmclient"
	"github.com/graphforge/codegraph/internal/prompts"
	"github.com/graphforge/codegraph/internal/telemetry"
)

// docResult is one node's computed description plus the bookkeeping needed
// by its parent to choose a template: Fallback marks a description computed
// without full access to its own children (cycle avoidance, budget
// exhaustion, or depth-guard), which in turn makes the PARENT ONE LEVEL UP
// treat this child as "unavailable" for its own template choice.
type docResult struct {
	Text     string
	Template string
	Fallback bool
}

type nodeStatus int

const (
	statusInProgress nodeStatus = iota
	statusDone
)

type nodeState struct {
	mu     sync.Mutex
	status nodeStatus
	owner  string
	result docResult
	done   chan struct{}
}

// Result is the batch of documentation nodes and DESCRIBES edges produced
// by one Run, ready for graph.Backend.UpsertNodes/UpsertEdges.
type Result struct {
	Nodes     []graph.Node
	Edges     []graph.Edge
	CallCount int
}

// GraphReader is the narrow slice of graph.Backend the engine actually
// needs: fetch a node and its two flavors of children. Any graph.Backend
// implementation satisfies this automatically; tests can supply a much
// smaller fake instead of the full store contract.
type GraphReader interface {
	GetNode(ctx context.Context, nodeID string) (graph.Node, error)
	Children(ctx context.Context, nodeID string) ([]graph.Node, error)
	CallChildren(ctx context.Context, nodeID string) ([]graph.Node, error)
}

// Engine runs the recursive documentation traversal against a
// GraphReader, dispatching descriptions through an llmclient.Client.
type Engine struct {
	store GraphReader
	llm   llmclient.Client
	cfg   config.EngineConfig

	tracker *ThreadDependencyTracker
	logger  *slog.Logger

	cache  *gocache.Cache         // finalized descriptions, keyed by source node id, this run only
	shared *cache.DescriptionCache // optional cross-run/cross-instance tier

	mu     sync.Mutex
	states map[string]*nodeState

	produced   []graph.Node
	producedMu sync.Mutex
	edges      []graph.Edge

	sem       chan struct{}
	workerSeq atomic.Int64
	calls     atomic.Int64

	repoID, entityID string
}

// NewEngine constructs an Engine. cfg.Workers bounds the number of
// concurrently active recursion branches; cfg.MaxCallBudget bounds total
// LLM calls across the run; cfg.MaxRecursDepth bounds recursion depth.
func NewEngine(store GraphReader, llm llmclient.Client, cfg config.EngineConfig) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{
		store:   store,
		llm:     llm,
		cfg:     cfg,
		tracker: NewThreadDependencyTracker(),
		logger:  slog.Default().With("component", "docengine.engine"),
		cache:   gocache.New(gocache.NoExpiration, 10*time.Minute),
		states:  make(map[string]*nodeState),
		sem:     make(chan struct{}, cfg.Workers),
	}
}

// WithSharedCache attaches the cross-run description cache (Redis-backed
// when configured, local-only otherwise). Optional -- an Engine with no
// shared cache behaves exactly as before this hook existed, memoizing only
// within its own Run.
func (e *Engine) WithSharedCache(shared *cache.DescriptionCache) *Engine {
	e.shared = shared
	return e
}

// Run documents rootNodeID and every descendant reachable by hierarchy or
// call edges, returning the accumulated documentation nodes and DESCRIBES
// edges. It never returns an error for a single node's documentation
// failure -- those are absorbed as stub descriptions; it can return an
// error for context cancellation.
func (e *Engine) Run(ctx context.Context, rootNodeID, repoID, entityID string) (*Result, error) {
	e.repoID = repoID
	e.entityID = entityID

	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	worker := e.newWorkerID()

	_, err := e.describe(ctx, worker, rootNodeID, 0)
	<-e.sem
	if err != nil {
		return nil, err
	}

	return &Result{Nodes: e.produced, Edges: e.edges, CallCount: int(e.calls.Load())}, nil
}

func (e *Engine) newWorkerID() string {
	return "w" + strconv.FormatInt(e.workerSeq.Add(1), 10)
}

// describe is the core recursive step. worker identifies the
// physical execution context making this call -- the same value persists
// down an inline (non-fanned-out) recursion chain, which is what lets a
// cycle close back onto its own worker and trigger immediate fallback
// rather than a real deadlock.
func (e *Engine) describe(ctx context.Context, worker, nodeID string, depth int) (docResult, error) {
	if ctx.Err() != nil {
		return docResult{Text: "description unavailable (cancelled)", Fallback: true}, ctx.Err()
	}

	if cached, ok := e.cache.Get(nodeID); ok {
		return cached.(docResult), nil
	}

	if e.shared != nil {
		if entry, ok := e.shared.Get(ctx, nodeID); ok {
			result := docResult{Text: entry.Text, Template: entry.TemplateName}
			e.cache.Set(nodeID, result, gocache.NoExpiration)
			return result, nil
		}
	}

	if depth > e.cfg.MaxRecursDepth {
		return e.fallbackDescribe(ctx, nodeID, "maximum recursion depth exceeded"), nil
	}

	state, claimed := e.claimOrGetState(nodeID, worker)
	if !claimed {
		state.mu.Lock()
		status := state.status
		owner := state.owner
		doneCh := state.done
		state.mu.Unlock()

		if status == statusDone {
			state.mu.Lock()
			res := state.result
			state.mu.Unlock()
			return res, nil
		}

		if owner == worker {
			// Self-wait: this worker is already processing nodeID further up
			// its own call stack. Waiting would deadlock the worker against
			// itself, so degrade immediately instead of consulting the tracker.
			return e.cycleFallback(ctx, worker, nodeID), nil
		}

		if e.tracker.TryRegisterWaiter(nodeID, worker) {
			select {
			case <-doneCh:
				e.tracker.UnregisterWaiter(nodeID, worker)
				state.mu.Lock()
				res := state.result
				state.mu.Unlock()
				return res, nil
			case <-ctx.Done():
				e.tracker.UnregisterWaiter(nodeID, worker)
				return docResult{Text: "description unavailable (cancelled)", Fallback: true}, ctx.Err()
			}
		}

		// Waiting here would close a dependency cycle back to this worker.
		return e.cycleFallback(ctx, worker, nodeID), nil
	}

	e.tracker.RegisterProcessor(nodeID, worker)
	result := e.computeDescription(ctx, worker, nodeID, depth)
	e.tracker.UnregisterProcessor(nodeID)

	state.mu.Lock()
	state.status = statusDone
	state.result = result
	close(state.done)
	state.mu.Unlock()

	e.cache.Set(nodeID, result, gocache.NoExpiration)
	e.recordProduced(nodeID, result)

	if e.shared != nil && !result.Fallback {
		e.shared.Set(ctx, cache.Entry{NodeID: nodeID, Text: result.Text, TemplateName: result.Template, CachedAt: time.Now()})
	}

	return result, nil
}

func (e *Engine) claimOrGetState(nodeID, worker string) (*nodeState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.states[nodeID]; ok {
		return st, false
	}
	st := &nodeState{status: statusInProgress, owner: worker, done: make(chan struct{})}
	e.states[nodeID] = st
	return st, true
}

// recordProduced appends the documentation node and DESCRIBES edge for a
// node this worker canonically owns. Only called from describe's claimed
// branch, so at most one documentation node is ever recorded per nodeID
// per run, satisfying the documentation-uniqueness invariant.
func (e *Engine) recordProduced(nodeID string, result docResult) {
	docNode := graph.NewDocumentationNode(e.repoID, e.entityID, nodeID, result.Text, result.Template)
	edge := graph.Edge{SourceID: docNode.ID, TargetID: nodeID, Type: graph.EdgeDescribes}

	e.producedMu.Lock()
	defer e.producedMu.Unlock()
	e.produced = append(e.produced, docNode)
	e.edges = append(e.edges, edge)
}

type childOutcome struct {
	child  graph.Node
	result docResult
}

// computeDescription gathers nodeID's children, recurses into them, picks
// the template matching how many child descriptions came back, and
// invokes the LLM.
func (e *Engine) computeDescription(ctx context.Context, worker, nodeID string, depth int) docResult {
	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return docResult{Text: "description unavailable (node not found)", Fallback: true}
	}

	hierChildren, err := e.store.Children(ctx, nodeID)
	if err != nil {
		hierChildren = nil
	}
	var callChildren []graph.Node
	if node.Label == graph.LabelFunction {
		callChildren, err = e.store.CallChildren(ctx, nodeID)
		if err != nil {
			callChildren = nil
		}
	}

	children := make([]graph.Node, 0, len(hierChildren)+len(callChildren))
	children = append(children, hierChildren...)
	children = append(children, callChildren...)

	if len(children) == 0 {
		return e.invokeLeaf(ctx, node)
	}

	if e.overBudget() {
		result := e.invokeLeaf(ctx, node)
		result.Fallback = true
		return result
	}

	outcomes := e.recurseChildren(ctx, worker, children, depth)

	var available, missing []childOutcome
	for _, o := range outcomes {
		if o.result.Fallback {
			missing = append(missing, o)
		} else {
			available = append(available, o)
		}
	}

	switch {
	case len(missing) == 0:
		return e.invokeParentFull(ctx, node, available)
	case len(available) == 0:
		return e.invokeEnhancedFallback(ctx, node, fmt.Sprintf("all %d children unavailable (cycle, timeout, or budget exhaustion)", len(missing)))
	default:
		return e.invokePartial(ctx, node, available, missing)
	}
}

// recurseChildren processes every child, fanning out to a new goroutine
// (consuming one slot of the global worker budget) when a slot is free, and
// otherwise processing inline under the caller's own worker identity. This
// is what keeps a single-worker run from deadlocking on its own fan-out:
// with no spare slot, every recursive call runs serially on the same
// worker, so a cycle back to an ancestor is a same-worker self-wait rather
// than a wait on another goroutine that can never proceed.
func (e *Engine) recurseChildren(ctx context.Context, worker string, children []graph.Node, depth int) []childOutcome {
	outcomes := make([]childOutcome, len(children))
	var wg sync.WaitGroup

	for i, child := range children {
		select {
		case e.sem <- struct{}{}:
			// The caller registers as a waiter on the fanned-out child, so the
			// tracker sees this wait; a fan-out the tracker refuses runs inline
			// instead, where describe takes the cycle fallback.
			if !e.tracker.TryRegisterWaiter(child.ID, worker) {
				<-e.sem
				res, _ := e.describe(ctx, worker, child.ID, depth+1)
				outcomes[i] = childOutcome{child: child, result: res}
				continue
			}
			wg.Add(1)
			go func(i int, child graph.Node) {
				defer wg.Done()
				defer func() { <-e.sem }()
				defer e.tracker.UnregisterWaiter(child.ID, worker)
				cw := e.newWorkerID()
				res, _ := e.describe(ctx, cw, child.ID, depth+1)
				outcomes[i] = childOutcome{child: child, result: res}
			}(i, child)
		default:
			res, _ := e.describe(ctx, worker, child.ID, depth+1)
			outcomes[i] = childOutcome{child: child, result: res}
		}
	}
	wg.Wait()
	return outcomes
}

// fallbackDescribe computes a description of nodeID from its own content
// alone, without recursing into its children. describe uses it when the
// maximum recursion depth is exceeded. It does not touch the tracker, the
// node-state map, or the produced-documentation list, so this call records
// no documentation node for nodeID.
func (e *Engine) fallbackDescribe(ctx context.Context, nodeID, note string) docResult {
	node, err := e.store.GetNode(ctx, nodeID)
	if err != nil {
		return docResult{Text: "description unavailable", Fallback: true}
	}
	return e.invokeEnhancedFallback(ctx, node, note)
}

// cycleFallback documents nodeID when waiting for its owner would close a
// dependency loop. Instead of a plain leaf fallback it dispatches the
// cycle-diagnostic template with the loop's members, so the caller's parent
// description can name the cycle rather than pretending the child was
// simply unavailable. The result is transient: the node's real owner still
// publishes its canonical documentation.
func (e *Engine) cycleFallback(ctx context.Context, worker, nodeID string) docResult {
	members := e.tracker.CyclePath(nodeID, worker)
	if len(members) == 0 {
		members = []string{nodeID}
	}

	var names, paths []string
	moduleSet := make(map[string]struct{})
	var modules []string
	for _, id := range members {
		node, err := e.store.GetNode(ctx, id)
		if err != nil {
			continue
		}
		names = append(names, node.Name)
		paths = append(paths, node.Path)
		mod := path.Dir(strings.TrimPrefix(node.Path, "file://"))
		if _, seen := moduleSet[mod]; !seen {
			moduleSet[mod] = struct{}{}
			modules = append(modules, mod)
		}
	}
	if len(names) == 0 {
		return docResult{Text: "description unavailable", Fallback: true}
	}

	vars := map[string]string{
		"cycle_nodes":      strings.Join(names, ", "),
		"cycle_paths":      strings.Join(paths, ", "),
		"affected_modules": strings.Join(modules, ", "),
	}
	text := e.callLLM(ctx, prompts.CircularDependencyDetection, vars)
	return docResult{Text: text, Template: prompts.CircularDependencyDetection.Name, Fallback: true}
}

func (e *Engine) overBudget() bool {
	return e.cfg.MaxCallBudget > 0 && e.calls.Load() >= int64(e.cfg.MaxCallBudget)
}

func nodeContent(node graph.Node) string {
	if v, ok := node.Properties["text"]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func (e *Engine) invokeLeaf(ctx context.Context, node graph.Node) docResult {
	vars := map[string]string{
		"node_name":    node.Name,
		"node_labels":  string(node.Label),
		"node_path":    node.Path,
		"node_content": nodeContent(node),
	}
	text := e.callLLM(ctx, prompts.Leaf, vars)
	return docResult{Text: text, Template: prompts.Leaf.Name}
}

func (e *Engine) invokeParentFull(ctx context.Context, node graph.Node, available []childOutcome) docResult {
	vars := map[string]string{
		"node_name":          node.Name,
		"node_labels":        string(node.Label),
		"node_path":          node.Path,
		"node_content":       nodeContent(node),
		"child_descriptions": renderChildDescriptions(available),
	}
	text := e.callLLM(ctx, prompts.ParentFullContext, vars)
	return docResult{Text: text, Template: prompts.ParentFullContext.Name}
}

func (e *Engine) invokePartial(ctx context.Context, node graph.Node, available, missing []childOutcome) docResult {
	vars := map[string]string{
		"node_name":          node.Name,
		"node_labels":        string(node.Label),
		"node_path":          node.Path,
		"node_content":       nodeContent(node),
		"child_descriptions": renderChildDescriptions(available),
		"fallback_note":      fmt.Sprintf("%d of %d children could not be resolved (cycle or timeout)", len(missing), len(available)+len(missing)),
	}
	text := e.callLLM(ctx, prompts.ParentPartialContext, vars)
	return docResult{Text: text, Template: prompts.ParentPartialContext.Name, Fallback: false}
}

func (e *Engine) invokeEnhancedFallback(ctx context.Context, node graph.Node, note string) docResult {
	vars := map[string]string{
		"node_name":     node.Name,
		"node_labels":   string(node.Label),
		"node_path":     node.Path,
		"node_content":  nodeContent(node),
		"fallback_note": note,
	}
	text := e.callLLM(ctx, prompts.EnhancedLeafFallback, vars)
	return docResult{Text: text, Template: prompts.EnhancedLeafFallback.Name, Fallback: true}
}

func renderChildDescriptions(outcomes []childOutcome) string {
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", o.child.Name, o.child.Path, o.result.Text))
	}
	return strings.Join(lines, "\n")
}

// callLLM composes and invokes the template, counting against the global
// call budget. A provider failure (after the client's own fallback chain is
// exhausted) degrades to a minimal stub rather than aborting the run.
// A missing declared variable is a programming error and is logged then
// also stubbed, since surfacing it here would abort an otherwise-healthy
// traversal over one bad node.
func (e *Engine) callLLM(ctx context.Context, tmpl prompts.Template, vars map[string]string) string {
	system, user, err := tmpl.Compose(vars)
	if err != nil {
		e.logger.Error("template composition failed", "template", tmpl.Name, "error", err)
		return "description unavailable"
	}

	e.calls.Add(1)
	start := time.Now()
	resp, err := e.llm.Chat(ctx, system, user)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		outcome := "error"
		if errs.IsFatal(err) {
			e.logger.Error("llm call failed fatally", "template", tmpl.Name, "error", err)
		} else {
			outcome = "fallback"
			e.logger.Warn("llm call failed, synthesizing stub description", "template", tmpl.Name, "error", err)
		}
		telemetry.Default().RecordLLMCall(ctx, tmpl.Name, outcome, elapsed)
		return "description unavailable"
	}
	if resp.Text == "" {
		telemetry.Default().RecordLLMCall(ctx, tmpl.Name, "fallback", elapsed)
		return "description unavailable"
	}
	telemetry.Default().RecordLLMCall(ctx, tmpl.Name, "ok", elapsed)
	return resp.Text
}

// Status returns the tracker's point-in-time diagnostic snapshot.
func (e *Engine) Status() Status {
	return e.tracker.GetStatus()
}
