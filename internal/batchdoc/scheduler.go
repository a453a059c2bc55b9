// Package batchdoc implements the batch documentation scheduler: the
// store-driven alternative to the in-process recursive engine (internal/docengine),
// which offloads all traversal state to the graph store via run-scoped
// processing_status columns and walks a leaf-first wavefront.
package batchdoc

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/graphforge/codegraph/internal/cache"
	"github.com/graphforge/codegraph/internal/config"
	"github.com/graphforge/codegraph/internal/errs"
	"github.com/graphforge/codegraph/internal/graph"
	"github.com/graphforge/codegraph/internal/llmclient"
	"github.com/graphforge/codegraph/internal/prompts"
	"github.com/graphforge/codegraph/internal/rundb"
	"github.com/graphforge/codegraph/internal/telemetry"
)

// component is the name this scheduler registers its runs under in a
// rundb.RunLedger, distinguishing wavefront runs from recursive-engine
// ones (docengine never registers runs today, since it has no
// resumability hook of its own).
const component = "batchdoc"

// Store is the slice of graph.Backend the scheduler needs to drive the
// wavefront. Any graph.Backend implementation satisfies it automatically.
type Store interface {
	Leaves(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]graph.Node, error)
	ExpandFrontier(ctx context.Context, repoID, entityID, runID string, batchSize int) ([]graph.FrontierNode, error)
	MarkCompleted(ctx context.Context, repoID, entityID, runID string, nodeIDs []string) error
	CountPending(ctx context.Context, repoID, entityID string) (int, error)
	ResetRun(ctx context.Context, repoID, entityID, runID string) error
}

// Result accumulates everything a Run produced, ready for
// graph.Backend.UpsertNodes/UpsertEdges.
type Result struct {
	RunID  string
	Rounds int
	Nodes  []graph.Node
	Edges  []graph.Edge
}

// Scheduler drives the wavefront documentation pass.
type Scheduler struct {
	store  Store
	llm    llmclient.Client
	cfg    config.EngineConfig
	logger *slog.Logger
	ledger rundb.RunLedger
	shared *cache.DescriptionCache
}

func NewScheduler(store Store, llm llmclient.Client, cfg config.EngineConfig) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &Scheduler{store: store, llm: llm, cfg: cfg, logger: slog.Default().With("component", "batchdoc.scheduler")}
}

// WithLedger attaches a run ledger for resumability: Run will register
// its run id under it and skip work entirely if a completed run already
// exists for (repoID, entityID). Optional -- a Scheduler with no ledger
// always runs fresh, same as before this hook existed.
func (s *Scheduler) WithLedger(ledger rundb.RunLedger) *Scheduler {
	s.ledger = ledger
	return s
}

// WithSharedCache attaches the cross-run description cache, the same tier
// internal/docengine consults, so a wavefront run over a repo the
// recursive engine already documented reuses those descriptions instead
// of re-invoking the LLM.
func (s *Scheduler) WithSharedCache(shared *cache.DescriptionCache) *Scheduler {
	s.shared = shared
	return s
}

// Run executes one complete wavefront pass for (repoID, entityID) and
// returns the accumulated documentation nodes/edges. Every node is
// processed at most once per run; the run is identified
// by a fresh run id so a crashed run's in_progress rows can be recovered by
// a later ResetRun call before retrying.
func (s *Scheduler) Run(ctx context.Context, repoID, entityID string) (*Result, error) {
	if s.ledger != nil {
		if last, err := s.ledger.LastCompletedRun(ctx, repoID, entityID, component); err != nil {
			return nil, err
		} else if last != nil {
			s.logger.Info("skipping batch run, already completed", "repo_id", repoID, "entity_id", entityID, "prior_run_id", last.RunID)
			return &Result{RunID: last.RunID}, nil
		}
	}

	runID := uuid.New().String()
	result := &Result{RunID: runID}

	if s.ledger != nil {
		if err := s.ledger.StartRun(ctx, runID, repoID, entityID, component); err != nil {
			return result, err
		}
	}

	// Leaf rounds run until the leaf set is exhausted (ceil(leaves /
	// batch_size) rounds), then the loop switches to frontier expansion
	// for the remaining tiers.
	seeding := true
	for {
		if ctx.Err() != nil {
			s.completeRun(ctx, runID, repoID, entityID, true)
			return result, ctx.Err()
		}

		var processed int
		if seeding {
			batch, err := s.store.Leaves(ctx, repoID, entityID, runID, s.cfg.BatchSize)
			if err != nil {
				s.completeRun(ctx, runID, repoID, entityID, true)
				return result, err
			}
			if len(batch) > 0 {
				ids := s.describeLeaves(ctx, repoID, entityID, batch, result)
				if err := s.store.MarkCompleted(ctx, repoID, entityID, runID, ids); err != nil {
					s.completeRun(ctx, runID, repoID, entityID, true)
					return result, err
				}
				processed = len(batch)
			} else {
				seeding = false
			}
		}
		if !seeding {
			frontier, err := s.store.ExpandFrontier(ctx, repoID, entityID, runID, s.cfg.BatchSize)
			if err != nil {
				s.completeRun(ctx, runID, repoID, entityID, true)
				return result, err
			}
			if len(frontier) > 0 {
				ids := s.describeFrontier(ctx, repoID, entityID, frontier, result)
				if err := s.store.MarkCompleted(ctx, repoID, entityID, runID, ids); err != nil {
					s.completeRun(ctx, runID, repoID, entityID, true)
					return result, err
				}
				processed = len(frontier)
			}
		}

		result.Rounds++
		telemetry.Default().BatchRounds.Add(ctx, 1)

		pending, err := s.store.CountPending(ctx, repoID, entityID)
		if err != nil {
			s.completeRun(ctx, runID, repoID, entityID, true)
			return result, err
		}
		if pending == 0 {
			s.completeRun(ctx, runID, repoID, entityID, false)
			return result, nil
		}
		if processed == 0 {
			// Nothing was processable this round yet nodes remain pending:
			// the wavefront can't make progress. The scheduler has no
			// cycle-fallback path (that degradation lives only in the
			// recursive engine), so surface the stall rather than spin.
			s.completeRun(ctx, runID, repoID, entityID, true)
			return result, errs.InternalErrorf("batch scheduler stalled: %d nodes pending, none processable", pending)
		}
	}
}

// completeRun records the run's outcome in the ledger, if one is attached.
// A ledger write failure here is logged, not returned -- it must never mask
// the scheduler's own success/failure outcome.
func (s *Scheduler) completeRun(ctx context.Context, runID, repoID, entityID string, failed bool) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.CompleteRun(ctx, runID, repoID, entityID, component, failed); err != nil {
		s.logger.Error("failed to record run completion in ledger", "run_id", runID, "error", err)
	}
}

// workerLimit bounds how many of a round's descriptions are generated
// concurrently, the same cfg.Workers budget the recursive engine uses
// for its fan-out.
func (s *Scheduler) workerLimit() int {
	if s.cfg.Workers > 0 {
		return s.cfg.Workers
	}
	return 1
}

func (s *Scheduler) describeLeaves(ctx context.Context, repoID, entityID string, batch []graph.Node, result *Result) []string {
	ids := make([]string, len(batch))
	texts := make([]string, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit())
	for i, node := range batch {
		i, node := i, node
		g.Go(func() error {
			texts[i] = s.describeNode(gctx, node.ID, prompts.Leaf, map[string]string{
				"node_name":    node.Name,
				"node_labels":  string(node.Label),
				"node_path":    node.Path,
				"node_content": contentOf(node),
			})
			ids[i] = node.ID
			return nil
		})
	}
	g.Wait()

	for i, node := range batch {
		s.record(result, repoID, entityID, node.ID, texts[i], prompts.Leaf.Name)
	}
	return ids
}

// describeNode wraps callLLM with the shared cache: a hit returns the
// previously cached text without invoking the LLM; a miss calls through and
// populates the cache for next time.
func (s *Scheduler) describeNode(ctx context.Context, nodeID string, tmpl prompts.Template, vars map[string]string) string {
	if s.shared != nil {
		if entry, ok := s.shared.Get(ctx, nodeID); ok {
			return entry.Text
		}
	}
	text := s.callLLM(ctx, tmpl, vars)
	if s.shared != nil && text != "description unavailable" {
		s.shared.Set(ctx, cache.Entry{NodeID: nodeID, Text: text, TemplateName: tmpl.Name, CachedAt: time.Now()})
	}
	return text
}

func (s *Scheduler) describeFrontier(ctx context.Context, repoID, entityID string, frontier []graph.FrontierNode, result *Result) []string {
	ids := make([]string, len(frontier))
	texts := make([]string, len(frontier))
	templates := make([]string, len(frontier))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerLimit())
	for i, fn := range frontier {
		i, fn := i, fn
		g.Go(func() error {
			all := append(append([]graph.ChildDescription{}, fn.HierarchyChildren...), fn.CallChildren...)

			var available, missing []graph.ChildDescription
			for _, c := range all {
				if c.Description == "" {
					missing = append(missing, c)
				} else {
					available = append(available, c)
				}
			}

			var text, templateName string
			switch {
			case len(all) == 0:
				text = s.describeNode(gctx, fn.Node.ID, prompts.Leaf, map[string]string{
					"node_name": fn.Node.Name, "node_labels": string(fn.Node.Label),
					"node_path": fn.Node.Path, "node_content": contentOf(fn.Node),
				})
				templateName = prompts.Leaf.Name
			case len(missing) == 0:
				text = s.describeNode(gctx, fn.Node.ID, prompts.ParentFullContext, map[string]string{
					"node_name": fn.Node.Name, "node_labels": string(fn.Node.Label),
					"node_path": fn.Node.Path, "node_content": contentOf(fn.Node),
					"child_descriptions": renderDescriptions(available),
				})
				templateName = prompts.ParentFullContext.Name
			default:
				text = s.describeNode(gctx, fn.Node.ID, prompts.ParentPartialContext, map[string]string{
					"node_name": fn.Node.Name, "node_labels": string(fn.Node.Label),
					"node_path": fn.Node.Path, "node_content": contentOf(fn.Node),
					"child_descriptions": renderDescriptions(available),
					"fallback_note":      fmt.Sprintf("%d of %d children lack a documentation node", len(missing), len(all)),
				})
				templateName = prompts.ParentPartialContext.Name
			}

			texts[i] = text
			templates[i] = templateName
			ids[i] = fn.Node.ID
			return nil
		})
	}
	g.Wait()

	for i, fn := range frontier {
		s.record(result, repoID, entityID, fn.Node.ID, texts[i], templates[i])
	}
	return ids
}

func (s *Scheduler) record(result *Result, repoID, entityID, nodeID, text, templateName string) {
	docNode := graph.NewDocumentationNode(repoID, entityID, nodeID, text, templateName)
	result.Nodes = append(result.Nodes, docNode)
	result.Edges = append(result.Edges, graph.Edge{SourceID: docNode.ID, TargetID: nodeID, Type: graph.EdgeDescribes})
}

func (s *Scheduler) callLLM(ctx context.Context, tmpl prompts.Template, vars map[string]string) string {
	system, user, err := tmpl.Compose(vars)
	if err != nil {
		s.logger.Error("template composition failed", "template", tmpl.Name, "error", err)
		return "description unavailable"
	}

	start := time.Now()
	resp, err := s.llm.Chat(ctx, system, user)
	elapsed := time.Since(start).Seconds()
	if err != nil || resp.Text == "" {
		s.logger.Warn("llm call failed, synthesizing stub description", "template", tmpl.Name, "error", err)
		telemetry.Default().RecordLLMCall(ctx, tmpl.Name, "fallback", elapsed)
		return "description unavailable"
	}
	telemetry.Default().RecordLLMCall(ctx, tmpl.Name, "ok", elapsed)
	return resp.Text
}

func contentOf(n graph.Node) string {
	if v, ok := n.Properties["text"]; ok {
		if str, ok := v.(string); ok {
			return str
		}
	}
	return ""
}

func renderDescriptions(children []graph.ChildDescription) string {
	lines := make([]string, 0, len(children))
	for _, c := range children {
		lines = append(lines, fmt.Sprintf("- %s (%s): %s", c.Name, c.Path, c.Description))
	}
	return strings.Join(lines, "\n")
}
