// Package orchestrator drives one ingestion run end to end: fan out to
// the source adapters, normalize and validate what they fetched, then
// dedupe and persist the survivors. Adapter failures never cross the
// adapter boundary; the orchestrator only records per-source outcome
// counts.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"jobfeed-engine/internal/config"
	"jobfeed-engine/internal/dedup"
	"jobfeed-engine/internal/domain"
	"jobfeed-engine/internal/events"
	"jobfeed-engine/internal/normalize"
	"jobfeed-engine/internal/source"
	"jobfeed-engine/internal/validate"
)

// ErrRunActive means a trigger fired while a run was in flight. The
// trigger is skipped, never queued.
var ErrRunActive = errors.New("ingestion run already active")

// Source pairs one adapter with its declared config.
type Source struct {
	Cfg     config.Source
	Adapter source.Adapter
}

// RunStore persists run snapshots for observability.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.IngestionRun) error
}

type Options struct {
	Sources        []Source
	Dedup          *dedup.Deduplicator
	Runs           RunStore    // optional
	Hub            *events.Hub // optional
	MaxConcurrency int
	RunTimeout     time.Duration
}

type Orchestrator struct {
	sources    []Source
	dedup      *dedup.Deduplicator
	runs       RunStore
	hub        *events.Hub
	maxWorkers int
	runTimeout time.Duration

	mu      sync.Mutex
	current *domain.IngestionRun
	last    *domain.IngestionRun
}

func New(opts Options) *Orchestrator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 10 * time.Minute
	}
	return &Orchestrator{
		sources:    opts.Sources,
		dedup:      opts.Dedup,
		runs:       opts.Runs,
		hub:        opts.Hub,
		maxWorkers: opts.MaxConcurrency,
		runTimeout: opts.RunTimeout,
	}
}

// Status is the operator-visible snapshot.
type Status struct {
	State   domain.RunState          `json:"state"`
	Current *domain.IngestionRun     `json:"current,omitempty"`
	Last    *domain.IngestionRun     `json:"last,omitempty"`
	Sources map[string]source.Health `json:"sources"`
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{State: domain.StateIdle, Sources: map[string]source.Health{}}
	if o.current != nil {
		st.State = o.current.State
		st.Current = copyRun(o.current)
	}
	if o.last != nil {
		st.Last = copyRun(o.last)
	}
	for _, s := range o.sources {
		st.Sources[s.Cfg.ID] = s.Adapter.Health()
	}
	return st
}

// RunNow executes one run. Both the periodic timer and the manual
// trigger funnel in here; re-entry returns ErrRunActive.
func (o *Orchestrator) RunNow(ctx context.Context, filter []string) (domain.IngestionRun, error) {
	run, err := o.begin()
	if err != nil {
		return domain.IngestionRun{}, err
	}

	rctx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	o.saveRun(run)

	srcs := o.selectSources(filter)
	raws := o.fetchAll(rctx, run, srcs)

	o.setState(run, domain.StateNormalizing)
	jobs := o.normalizeAll(run, raws)

	o.setState(run, domain.StateDeduplicating)
	items := o.planAll(jobs)

	o.setState(run, domain.StatePersisting)
	persistErr := o.persistAll(rctx, run, items)

	final := domain.StateCompleted
	if persistErr != nil {
		// already-persisted records stay committed; only the tail of
		// the run was lost and the next trigger retries it
		log.Printf("[orchestrator] run=%s aborted: %v", run.RunID, persistErr)
		final = domain.StateFailedPartial
	} else if rctx.Err() != nil {
		final = domain.StateFailedPartial
	}

	out := o.finish(run, final)
	o.saveRun(&out)
	if o.hub != nil {
		o.hub.Publish(events.Make(events.TypeRunFinished, events.RunEvent{
			RunID: out.RunID,
			State: string(out.State),
		}))
	}

	t := out.Totals()
	log.Printf("[orchestrator] run=%s state=%s fetched=%d normalized=%d rejected=%d duplicates=%d persisted=%d",
		out.RunID, out.State, t.Fetched, t.Normalized, t.Rejected, t.Duplicates, t.Persisted)

	return out, nil
}

func (o *Orchestrator) begin() (*domain.IngestionRun, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current != nil {
		return nil, ErrRunActive
	}
	run := &domain.IngestionRun{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		State:     domain.StateFetching,
		Sources:   map[string]*domain.SourceStats{},
	}
	o.current = run
	return run, nil
}

func (o *Orchestrator) finish(run *domain.IngestionRun, final domain.RunState) domain.IngestionRun {
	o.mu.Lock()
	defer o.mu.Unlock()
	run.State = final
	run.FinishedAt = time.Now().UTC()
	o.last = run
	o.current = nil
	return *copyRun(run)
}

func (o *Orchestrator) setState(run *domain.IngestionRun, st domain.RunState) {
	o.mu.Lock()
	run.State = st
	o.mu.Unlock()
}

func (o *Orchestrator) selectSources(filter []string) []Source {
	if len(filter) == 0 {
		return o.sources
	}
	want := map[string]bool{}
	for _, id := range filter {
		want[id] = true
	}
	var out []Source
	for _, s := range o.sources {
		if want[s.Cfg.ID] {
			out = append(out, s)
		}
	}
	if len(out) < len(filter) {
		log.Printf("[orchestrator] source filter matched %d of %d ids", len(out), len(filter))
	}
	return out
}

// fetchAll runs every selected adapter on a bounded pool. One
// adapter's failure is contained to its own stats entry.
func (o *Orchestrator) fetchAll(ctx context.Context, run *domain.IngestionRun, srcs []Source) []domain.RawPosting {
	type fetchResult struct {
		id          string
		raws        []domain.RawPosting
		quarantined int
		failure     string
	}

	results := make(chan fetchResult, len(srcs))

	var g errgroup.Group
	g.SetLimit(o.maxWorkers)
	for _, s := range srcs {
		s := s
		g.Go(func() error {
			var fr fetchResult
			fr.id = s.Cfg.ID

			err := s.Adapter.Fetch(ctx, func(rp domain.RawPosting) {
				fr.raws = append(fr.raws, rp)
			})

			var pe *source.PartialError
			switch {
			case err == nil:
			case errors.As(err, &pe):
				fr.quarantined = pe.Quarantined
				log.Printf("[source:%s] partial: %v", s.Cfg.ID, pe)
			case source.IsPermanent(err):
				fr.failure = err.Error()
				log.Printf("[source:%s] down for this run: %v", s.Cfg.ID, err)
			default:
				// transient-exhausted or cancellation
				fr.failure = err.Error()
				log.Printf("[source:%s] failed: %v", s.Cfg.ID, err)
			}

			results <- fr
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	var all []domain.RawPosting
	o.mu.Lock()
	for fr := range results {
		st := run.StatsFor(fr.id)
		st.Fetched = len(fr.raws)
		st.Quarantined = fr.quarantined
		st.Failure = fr.failure
		all = append(all, fr.raws...)
	}
	o.mu.Unlock()
	return all
}

// normalizeAll maps raw payloads to canonical jobs, counting every
// rejection; nothing is silently dropped.
func (o *Orchestrator) normalizeAll(run *domain.IngestionRun, raws []domain.RawPosting) []domain.NormalizedJob {
	var jobs []domain.NormalizedJob
	for _, raw := range raws {
		job, err := normalize.Normalize(raw)
		if err == nil {
			err = validate.Job(job)
		}

		o.mu.Lock()
		st := run.StatsFor(raw.SourceID)
		if err != nil {
			st.Rejected++
			o.mu.Unlock()
			log.Printf("[normalize] rejected source=%s url=%s reason=%v", raw.SourceID, raw.SourceURL, err)
			continue
		}
		st.Normalized++
		o.mu.Unlock()

		jobs = append(jobs, job)
	}
	return jobs
}

type planned struct {
	job domain.NormalizedJob
	fp  dedup.Fingerprint
}

func (o *Orchestrator) planAll(jobs []domain.NormalizedJob) []planned {
	items := make([]planned, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, planned{job: job, fp: o.dedup.Plan(job)})
	}
	return items
}

// persistAll runs the matcher against the sink. A sink error cancels
// the remaining tail; per-key locks inside the deduplicator keep
// concurrent same-job writes from racing.
func (o *Orchestrator) persistAll(ctx context.Context, run *domain.IngestionRun, items []planned) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxWorkers)

	for _, it := range items {
		it := it
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			out, err := o.dedup.Apply(gctx, it.job, it.fp)
			if err != nil {
				return err
			}

			o.mu.Lock()
			st := run.StatsFor(it.job.SourceID)
			if out.Kind == dedup.Created {
				st.Persisted++
			} else {
				st.Duplicates++
			}
			o.mu.Unlock()

			if o.hub != nil {
				typ := events.TypeJobCreated
				if out.Kind == dedup.Merged {
					typ = events.TypeJobReseen
				}
				o.hub.Publish(events.Make(typ, events.JobEvent{
					JobID:    out.RecordID,
					SourceID: it.job.SourceID,
				}))
			}
			return nil
		})
	}

	return g.Wait()
}

func (o *Orchestrator) saveRun(run *domain.IngestionRun) {
	if o.runs == nil {
		return
	}
	o.mu.Lock()
	snapshot := *copyRun(run)
	o.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.runs.SaveRun(ctx, snapshot); err != nil {
		log.Printf("[orchestrator] save run %s: %v", snapshot.RunID, err)
	}
}

func copyRun(run *domain.IngestionRun) *domain.IngestionRun {
	out := *run
	out.Sources = make(map[string]*domain.SourceStats, len(run.Sources))
	for id, st := range run.Sources {
		c := *st
		out.Sources[id] = &c
	}
	return &out
}
