package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/codeatlas/codeatlas-go/internal/cache"
	"github.com/codeatlas/codeatlas-go/internal/config"
	"github.com/codeatlas/codeatlas-go/internal/graph"
	"github.com/codeatlas/codeatlas-go/internal/linter"
	"github.com/codeatlas/codeatlas-go/internal/logging"
	"github.com/codeatlas/codeatlas-go/internal/models"
	"github.com/codeatlas/codeatlas-go/internal/parser"
	"github.com/codeatlas/codeatlas-go/internal/progress"
	"github.com/codeatlas/codeatlas-go/internal/resolver"
)

// Result summarizes one analysis run. It is returned even when the run was
// cut short; Err carries the hard failure if one occurred.
type Result struct {
	RunID          string            `json:"run_id"`
	Root           string            `json:"root"`
	FilesScanned   int               `json:"files_scanned"`
	FilesParsed    int               `json:"files_parsed"`
	FilesFromCache int               `json:"files_from_cache"`
	FilesSkipped   int               `json:"files_skipped"`
	FilesFailed    int               `json:"files_failed"`
	Stats          models.Stats      `json:"stats"`
	ResolveStats   resolver.Stats    `json:"resolve_stats"`
	CacheStats     cache.Stats       `json:"cache_stats"`
	BuildStats     *graph.BuildStats `json:"build_stats,omitempty"`
	Duration       time.Duration     `json:"duration"`
}

// Analyzer runs the full pipeline: walk, parse with caching, lint, resolve
// calls, and write the graph.
type Analyzer struct {
	cfg      *config.Config
	parsers  *parser.Registry
	linters  *linter.Registry
	cache    *cache.Manager
	store    graph.Store
	logger   *logging.Logger
	notifier progress.Notifier
}

// New creates an analyzer. store may be nil to skip the graph stage; cache
// may be nil to parse everything fresh.
func New(cfg *config.Config, parsers *parser.Registry, linters *linter.Registry, cacheMgr *cache.Manager, store graph.Store, logger *logging.Logger, notifier progress.Notifier) *Analyzer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Analyzer{
		cfg:      cfg,
		parsers:  parsers,
		linters:  linters,
		cache:    cacheMgr,
		store:    store,
		logger:   logger,
		notifier: notifier,
	}
}

type parsedFile struct {
	path      string
	file      *models.FileEntity
	findings  []models.LintError
	fromCache bool
	skipped   bool
	failed    bool
}

// Run analyzes the source tree at root. Individual file failures are
// recorded and skipped; only context cancellation or a failure of a whole
// stage aborts the run. The returned Result is valid in both cases.
func (a *Analyzer) Run(ctx context.Context, root string) (*Result, error) {
	start := time.Now()
	result := &Result{
		RunID: uuid.New().String(),
		Root:  root,
	}
	logger := a.logger.With("run_id", result.RunID)

	walker := NewWalker(root, a.cfg.Analysis.Extensions, a.cfg.Analysis.IgnorePatterns)
	paths, err := walker.Walk()
	if err != nil {
		return result, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	result.FilesScanned = len(paths)
	logger.Info("scan complete", "root", root, "files", len(paths))

	parsed, err := a.parseAll(ctx, paths)
	if err != nil {
		return result, err
	}

	cb := models.NewCodebase()
	for _, pf := range parsed {
		if pf.skipped {
			result.FilesSkipped++
		}
		if pf.failed {
			result.FilesFailed++
		}
		if pf.fromCache {
			result.FilesFromCache++
		}
		if pf.file != nil {
			cb.AddFile(pf.file)
			result.FilesParsed++
		}
		for _, finding := range pf.findings {
			cb.AddLintError(finding)
		}
	}

	if a.cfg.Analysis.EnableLinting && a.linters != nil {
		if err := a.lintAll(ctx, cb, parsed); err != nil {
			return result, err
		}
	}

	policy := resolver.PolicyFromName(a.cfg.Analysis.ResolvePolicy)
	rels, resolveStats := resolver.New(policy, logger).Resolve(cb)
	for _, rel := range rels {
		cb.AddCallRelationship(rel)
	}
	result.ResolveStats = resolveStats
	result.Stats = cb.GetStats()

	if a.store != nil {
		if err := a.store.CreateConstraints(ctx); err != nil {
			return result, fmt.Errorf("failed to create constraints: %w", err)
		}
		builder := graph.NewBuilder(a.store, logger, a.notifier)
		buildStats, err := builder.Build(ctx, cb, rels)
		result.BuildStats = buildStats
		if err != nil {
			return result, err
		}
	}

	if a.cache != nil {
		result.CacheStats = a.cache.GetStats()
	}
	result.Duration = time.Since(start)
	logger.Info("analysis complete",
		"files", result.FilesParsed,
		"from_cache", result.FilesFromCache,
		"failed", result.FilesFailed,
		"functions", result.Stats.Functions,
		"classes", result.Stats.Classes,
		"calls", result.Stats.Calls,
		"duration", result.Duration)
	return result, nil
}

// parseAll parses the files on a bounded worker pool, consulting the cache
// first. Results come back sorted by path so downstream ordering does not
// depend on completion order.
func (a *Analyzer) parseAll(ctx context.Context, paths []string) ([]parsedFile, error) {
	tracker := progress.NewTracker("parse", len(paths), a.notifier)

	var mu sync.Mutex
	parsed := make([]parsedFile, 0, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Workers)

	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pf := a.parseOne(path)
			mu.Lock()
			parsed = append(parsed, pf)
			mu.Unlock()
			tracker.Increment()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	tracker.Done()

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].path < parsed[j].path })
	return parsed, nil
}

func (a *Analyzer) parseOne(path string) parsedFile {
	pf := parsedFile{path: path}

	if a.cache != nil {
		if file, err := a.cache.GetCachedParse(path); err == nil {
			pf.file = file
			pf.fromCache = true
			return pf
		} else if !errors.Is(err, cache.ErrMiss) {
			a.logger.Debug("cache lookup failed", "path", path, "error", err)
		}
	}

	// no parser claims the file: declined, not failed
	p, ok := a.parsers.ForFile(path)
	if !ok {
		a.logger.Debug("no parser for file", "path", path)
		pf.skipped = true
		return pf
	}

	res, err := p.ParseFile(path)
	if err != nil {
		a.logger.Warn("parse failed", "path", path, "error", err)
		pf.failed = true
		return pf
	}

	pf.file = res.File
	pf.findings = res.Findings

	if a.cache != nil && res.File != nil {
		if err := a.cache.CacheParse(path, res.File); err != nil {
			a.logger.Debug("cache write failed", "path", path, "error", err)
		}
	}
	return pf
}

// lintAll runs the configured linters over every parsed file on the same
// worker pool and records their findings.
func (a *Analyzer) lintAll(ctx context.Context, cb *models.Codebase, parsed []parsedFile) error {
	tracker := progress.NewTracker("lint", len(parsed), a.notifier)

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Analysis.Workers)

	for _, pf := range parsed {
		if pf.file == nil {
			tracker.Increment()
			continue
		}
		path := pf.path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for _, l := range a.linters.ForFile(path) {
				findings, err := l.LintFile(path)
				if err != nil {
					a.logger.Warn("lint failed", "path", path, "error", err)
					continue
				}
				mu.Lock()
				for _, finding := range findings {
					cb.AddLintError(finding)
				}
				mu.Unlock()
			}
			tracker.Increment()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	tracker.Done()
	return nil
}
