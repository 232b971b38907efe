package law

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	id "fides/pkg/domain"
	"fides/pkg/platform/audit"
)

// CheckRequest describes one enforcement check. LawIDs selects the subset of
// the registry to evaluate; Context carries the facts the predicates read.
// Actor/Subject/Resource are recorded on the audit entry.
type CheckRequest struct {
	Action     audit.Action
	ActorID    string
	SubjectID  string
	ResourceID string
	LawIDs     []int
	Context    Context
}

// Result aggregates the outcome of one enforcement check. Violations lists
// every failed law, never just the first. Skipped lists requested law IDs
// with no registry entry.
type Result struct {
	Compliant  bool            `json:"compliant"`
	Violations []Violation     `json:"violations"`
	Checked    []int           `json:"laws_checked"`
	Skipped    []int           `json:"skipped_law_ids,omitempty"`
	AuditID    id.AuditID      `json:"audit_id"`
}

// Engine evaluates law subsets against action contexts. Every check emits an
// audit entry regardless of outcome, which satisfies the audit-trail law
// structurally rather than by convention.
type Engine struct {
	publisher *audit.Publisher
	logger    *slog.Logger
	metrics   *Metrics
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine creates an enforcement engine. The audit publisher is required:
// an engine that cannot record its checks must not run them.
func NewEngine(publisher *audit.Publisher, opts ...EngineOption) (*Engine, error) {
	if publisher == nil {
		return nil, fmt.Errorf("audit publisher is required")
	}
	e := &Engine{publisher: publisher, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Check evaluates every requested law against the context. Laws are
// independent of one another, so they are evaluated concurrently with no
// short-circuit: callers must see every reason an action failed.
//
// Unknown law IDs are skipped rather than treated as errors, so federated
// callers on older law tables degrade predictably. Skips are logged and
// recorded in the audit entry so they cannot pass unnoticed.
func (e *Engine) Check(ctx context.Context, req CheckRequest) (Result, error) {
	if req.Action == "" {
		req.Action = audit.ActionLawCheck
	}
	if req.Context == nil {
		req.Context = Context{}
	}

	laws := make([]Law, 0, len(req.LawIDs))
	checked := make([]int, 0, len(req.LawIDs))
	var skipped []int
	for _, lawID := range req.LawIDs {
		l, ok := Get(lawID)
		if !ok {
			skipped = append(skipped, lawID)
			continue
		}
		laws = append(laws, l)
		checked = append(checked, lawID)
	}
	if len(skipped) > 0 {
		e.logger.WarnContext(ctx, "unknown law ids skipped",
			"skipped", skipped,
			"action", string(req.Action),
		)
	}

	// Predicates are pure and laws carry no interdependencies, so ordering
	// is irrelevant. Results land in a per-law slot; no shared state.
	violations := make([]*Violation, len(laws))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range laws {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			_, violations[i] = l.Evaluate(req.Context)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("law evaluation cancelled: %w", err)
	}

	result := Result{Compliant: true, Checked: checked, Skipped: skipped}
	for _, v := range violations {
		if v != nil {
			result.Compliant = false
			result.Violations = append(result.Violations, *v)
		}
	}
	sort.Slice(result.Violations, func(i, j int) bool {
		return result.Violations[i].LawID < result.Violations[j].LawID
	})

	auditID, err := e.publisher.Emit(ctx, e.buildEntry(req, result))
	if err != nil {
		return Result{}, fmt.Errorf("record law check: %w", err)
	}
	result.AuditID = auditID

	if e.metrics != nil {
		e.metrics.ObserveCheck(result)
	}
	return result, nil
}

func (e *Engine) buildEntry(req CheckRequest, result Result) audit.Entry {
	outcome := audit.ResultSuccess
	if !result.Compliant {
		outcome = audit.ResultDenied
	}
	entry := audit.Entry{
		ActorID:       req.ActorID,
		Action:        req.Action,
		SubjectID:     req.SubjectID,
		ResourceID:    req.ResourceID,
		Result:        outcome,
		LawsChecked:   result.Checked,
		LawViolations: violationIDs(result.Violations),
	}
	if len(result.Skipped) > 0 {
		entry.Metadata = map[string]string{
			"skipped_law_ids": joinInts(result.Skipped),
		}
	}
	return entry
}

func violationIDs(violations []Violation) []int {
	out := make([]int, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.LawID)
	}
	return out
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, v := range ids {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
