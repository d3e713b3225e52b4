package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AlFontal/jpinfect/internal/builder"
	"github.com/AlFontal/jpinfect/internal/fetch"
	"github.com/AlFontal/jpinfect/internal/model"
	"github.com/AlFontal/jpinfect/internal/parser"
	"github.com/AlFontal/jpinfect/internal/table"
	"github.com/AlFontal/jpinfect/internal/urlrule"
)

// Coordinator drives a whole archive import: it resolves download units from
// the URL rules, fetches them through the shared transport, parses each file
// and collects the normalized rows per channel. Files are independent, so
// units run on a bounded worker pool; only the transport throttles.
type Coordinator struct {
	engine  *urlrule.Engine
	fetcher fetch.Fetcher
	workers int
	policy  table.DeltaPolicy
}

// NewCoordinator builds a coordinator on the given transport.
func NewCoordinator(engine *urlrule.Engine, fetcher fetch.Fetcher, workers int, policy table.DeltaPolicy) *Coordinator {
	if workers <= 0 {
		workers = 4
	}
	return &Coordinator{engine: engine, fetcher: fetcher, workers: workers, policy: policy}
}

// Options selects what to import.
type Options struct {
	// Kinds defaults to all four dataset kinds.
	Kinds []model.DatasetKind
	// Years defaults to each kind's full supported range.
	Years []int
	// Weeks applies to the weekly CSV kinds; defaults to 1..52.
	Weeks []int
}

// Unit is one downloadable file.
type Unit struct {
	Kind model.DatasetKind
	Year int
	Week int // zero for yearly workbooks
	URL  string
	File model.FileKind
}

func (u Unit) name() string {
	if u.Week > 0 {
		return fmt.Sprintf("%d-%02d-%s.csv", u.Year, u.Week, u.Kind)
	}
	return fmt.Sprintf("%d-%s", u.Year, u.Kind)
}

// ProgressEvent is one entry of the import progress stream.
type ProgressEvent struct {
	Type      string    `json:"type"` // start/unit_done/unit_skipped/done/error
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is everything one import job produced.
type Result struct {
	JobID      string                `json:"jobId"`
	Historical []model.NormalizedRow `json:"-"`
	AllCase    []model.NormalizedRow `json:"-"`
	Sentinel   []model.NormalizedRow `json:"-"`
	Reports    []*parser.FileReport  `json:"reports"`
	Skipped    []string              `json:"skipped,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// Unified assembles the deduplicated unified table from the job's rows.
func (r *Result) Unified(policy table.DeltaPolicy) (*builder.Result, error) {
	return builder.Build(builder.Inputs{
		Historical: r.Historical,
		AllCase:    r.AllCase,
		Sentinel:   r.Sentinel,
	}, policy)
}

// BuildUnified assembles the unified table from a finished job using the
// coordinator's configured delta policy.
func (c *Coordinator) BuildUnified(res *Result) (*builder.Result, error) {
	return res.Unified(c.policy)
}

// Import starts the job and returns its progress stream. The final "done"
// event carries the *Result; an "error" event ends a failed job. The channel
// is buffered and slow consumers lose intermediate events, never the last
// one.
func (c *Coordinator) Import(ctx context.Context, opts Options) <-chan ProgressEvent {
	events := make(chan ProgressEvent, 100)
	go func() {
		defer close(events)
		res, err := c.run(ctx, opts, events)
		if err != nil {
			events <- ProgressEvent{
				Type:      "error",
				Message:   err.Error(),
				Timestamp: time.Now(),
			}
			return
		}
		events <- ProgressEvent{
			Type:      "done",
			Message:   fmt.Sprintf("imported %d files", len(res.Reports)),
			Data:      res,
			Timestamp: time.Now(),
		}
	}()
	return events
}

// Run executes the job synchronously, discarding intermediate progress.
func (c *Coordinator) Run(ctx context.Context, opts Options) (*Result, error) {
	var res *Result
	for ev := range c.Import(ctx, opts) {
		switch ev.Type {
		case "done":
			res = ev.Data.(*Result)
		case "error":
			return nil, errors.New(ev.Message)
		}
	}
	return res, nil
}

func (c *Coordinator) run(ctx context.Context, opts Options, events chan ProgressEvent) (*Result, error) {
	start := time.Now()
	units, err := c.units(opts)
	if err != nil {
		return nil, err
	}

	res := &Result{JobID: uuid.NewString()}
	c.send(events, ProgressEvent{
		Type:      "start",
		Message:   fmt.Sprintf("importing %d files", len(units)),
		Data:      map[string]any{"job_id": res.JobID, "units": len(units)},
		Timestamp: time.Now(),
	})

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for _, u := range units {
		u := u
		g.Go(func() error {
			rows, report, err := c.importUnit(gctx, u)
			if err != nil {
				var structural *parser.StructuralError
				if errors.As(err, &structural) {
					mu.Lock()
					res.Skipped = append(res.Skipped, u.name())
					mu.Unlock()
					c.send(events, ProgressEvent{
						Type:      "unit_skipped",
						Message:   structural.Error(),
						Timestamp: time.Now(),
					})
					return nil
				}
				return fmt.Errorf("%s: %w", u.name(), err)
			}

			mu.Lock()
			switch u.Kind {
			case model.KindSex, model.KindPlace:
				res.Historical = append(res.Historical, rows...)
			case model.KindBullet:
				res.AllCase = append(res.AllCase, rows...)
			case model.KindSentinel:
				res.Sentinel = append(res.Sentinel, rows...)
			}
			res.Reports = append(res.Reports, report)
			mu.Unlock()

			c.send(events, ProgressEvent{
				Type:      "unit_done",
				Message:   fmt.Sprintf("%s: %d rows", u.name(), len(rows)),
				Data:      map[string]any{"unit": u.name(), "rows": len(rows)},
				Timestamp: time.Now(),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res.Duration = time.Since(start)
	return res, nil
}

// units expands the options into the concrete download list. Years without
// a URL rule for a requested kind are silently outside that kind's range
// when the caller asked for defaults, but an explicit year with no rule is
// a configuration error for that unit and fails the expansion.
func (c *Coordinator) units(opts Options) ([]Unit, error) {
	kinds := opts.Kinds
	if len(kinds) == 0 {
		kinds = []model.DatasetKind{model.KindSex, model.KindPlace, model.KindBullet, model.KindSentinel}
	}
	weeks := opts.Weeks
	if len(weeks) == 0 {
		for w := 1; w <= 52; w++ {
			weeks = append(weeks, w)
		}
	}

	var units []Unit
	for _, kind := range kinds {
		years := opts.Years
		explicit := len(years) > 0
		if !explicit {
			first, last, ok := c.engine.SupportedRange(kind)
			if !ok {
				return nil, fmt.Errorf("no URL rules for kind %q", kind)
			}
			// Weekly CSV kinds are open-ended; stop at the current year.
			if now := time.Now().Year(); last > now {
				last = now
			}
			for y := first; y <= last; y++ {
				years = append(years, y)
			}
		}

		for _, year := range years {
			switch kind {
			case model.KindBullet, model.KindSentinel:
				for _, week := range weeks {
					url, file, err := c.engine.ResolveWeekly(kind, year, week)
					if err != nil {
						if !explicit && isNoRule(err) {
							continue
						}
						return nil, err
					}
					units = append(units, Unit{Kind: kind, Year: year, Week: week, URL: url, File: file})
				}
			default:
				url, file, err := c.engine.Resolve(kind, year)
				if err != nil {
					if !explicit && isNoRule(err) {
						continue
					}
					return nil, err
				}
				units = append(units, Unit{Kind: kind, Year: year, URL: url, File: file})
			}
		}
	}
	return units, nil
}

func isNoRule(err error) bool {
	var nre *urlrule.NoRuleError
	return errors.As(err, &nre)
}

func (c *Coordinator) importUnit(ctx context.Context, u Unit) ([]model.NormalizedRow, *parser.FileReport, error) {
	// The CD-ROM and early ydata epochs publish legacy BIFF workbooks that
	// no available decoder reads. Report them skipped before downloading.
	if u.File == model.FileXLS {
		return nil, nil, &parser.StructuralError{
			File:   u.name(),
			Reason: "legacy xls workbook has no decoder",
		}
	}

	body, err := c.fetcher.Fetch(ctx, u.URL)
	if err != nil {
		return nil, nil, err
	}

	switch u.Kind {
	case model.KindSex, model.KindPlace:
		p, err := parser.NewConfirmed(bytes.NewReader(body), fmt.Sprintf("%d-%s.xlsx", u.Year, u.Kind), u.Kind)
		if err != nil {
			return nil, nil, err
		}
		defer p.Close()
		return p.Parse()
	case model.KindBullet:
		return parser.ParseBulletin(bytes.NewReader(body), fmt.Sprintf("%d-%02d-zensu.csv", u.Year, u.Week))
	case model.KindSentinel:
		return parser.ParseSentinel(bytes.NewReader(body), fmt.Sprintf("%d-%02d-teiten.csv", u.Year, u.Week))
	}
	return nil, nil, fmt.Errorf("unsupported dataset kind %q", u.Kind)
}

// send delivers an event without blocking; a full buffer drops it.
func (c *Coordinator) send(ch chan ProgressEvent, ev ProgressEvent) {
	select {
	case ch <- ev:
	default:
	}
}
