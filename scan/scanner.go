// Package scan validates a rendered document corpus against an immutable
// snapshot: literal numbers next to recognized parameter labels, symbolic
// hydration markers, statement numbering, and cross-document agreement.
// Scanning is read-only with respect to the snapshot and always completes a
// full pass, accumulating every issue rather than stopping at the first.
package scan

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/paramspec/snapshot"
)

// DefaultGlobs selects the document corpus when none is configured.
var DefaultGlobs = []string{"**/*.md", "**/*.html"}

// DefaultExcludeDirs are directory names never scanned.
var DefaultExcludeDirs = []string{".git", "node_modules", "vendor"}

// Options configures a corpus scan.
type Options struct {
	// Root is the corpus root directory.
	Root string

	// Globs select documents relative to Root (doublestar patterns).
	Globs []string

	// ExcludeDirs lists directory names to skip.
	ExcludeDirs []string

	// Tolerances maps category name to its comparison tolerance.
	Tolerances map[string]ToleranceSpec

	// DefaultTolerance applies when a parameter has neither a declared nor a
	// category tolerance. Zero falls back to print-precision comparison.
	DefaultTolerance ToleranceSpec

	// NumberingPattern overrides DefaultNumberingPattern.
	NumberingPattern string

	// Workers sizes the per-document scan pool. Defaults to GOMAXPROCS.
	Workers int

	Logger *slog.Logger
}

// RefCount tracks how a parameter is referenced across the corpus.
type RefCount struct {
	// Dynamic counts symbolic marker references (hydrated at load time).
	Dynamic int `json:"dynamic"`

	// Literal counts hard-coded numbers recognized next to a label.
	Literal int `json:"literal"`
}

// Result is the outcome of one corpus scan.
type Result struct {
	Documents int                  `json:"documents"`
	Issues    []Issue              `json:"issues"`
	Refs      map[string]*RefCount `json:"references"`
}

// Scanner validates documents against one frozen snapshot.
type Scanner struct {
	snap     *snapshot.Snapshot
	opts     Options
	labels   *labelIndex
	formulas map[string]bool
	numRe    *regexp.Regexp
	logger   *slog.Logger
}

// New creates a scanner for a snapshot.
func New(snap *snapshot.Snapshot, opts Options) (*Scanner, error) {
	if opts.Root == "" {
		opts.Root = "."
	}
	if len(opts.Globs) == 0 {
		opts.Globs = DefaultGlobs
	}
	if len(opts.ExcludeDirs) == 0 {
		opts.ExcludeDirs = DefaultExcludeDirs
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	pattern := opts.NumberingPattern
	if pattern == "" {
		pattern = DefaultNumberingPattern
	}
	numRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("numbering pattern: %w", err)
	}
	if numRe.NumSubexp() != 1 {
		return nil, fmt.Errorf("numbering pattern must have exactly one capture group")
	}

	labels := make(map[string][]string, len(snap.Entries))
	formulas := make(map[string]bool)
	for id, e := range snap.Entries {
		labels[id] = e.Labels
		if e.Formula != "" {
			formulas[e.Formula] = true
		}
	}

	return &Scanner{
		snap:     snap,
		opts:     opts,
		labels:   newLabelIndex(labels),
		formulas: formulas,
		numRe:    numRe,
		logger:   opts.Logger,
	}, nil
}

// docResult is the per-document scan outcome, merged deterministically after
// the parallel phase.
type docResult struct {
	issues     []Issue
	assertions []assertion
	dynamic    map[string]int
	err        error
}

// Run scans the whole corpus. Documents are scanned in parallel against the
// immutable snapshot; a document that fails to load is reported and skipped,
// never aborting the pass.
func (s *Scanner) Run() (*Result, error) {
	paths, err := s.resolveCorpus()
	if err != nil {
		return nil, err
	}

	results := make([]docResult, len(paths))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.scanDocument(paths[i])
			}
		}()
	}
	for i := range paths {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	res := &Result{
		Documents: len(paths),
		Refs:      make(map[string]*RefCount),
	}
	for id := range s.snap.Entries {
		res.Refs[id] = &RefCount{}
	}

	var all []assertion
	for i, dr := range results {
		if dr.err != nil {
			s.logger.Warn("document skipped",
				slog.String("document", paths[i]),
				slog.String("error", dr.err.Error()))
			continue
		}
		res.Issues = append(res.Issues, dr.issues...)
		all = append(all, dr.assertions...)
		for id, n := range dr.dynamic {
			res.Refs[id].Dynamic += n
		}
		for _, a := range dr.assertions {
			if rc, ok := res.Refs[a.ParamID]; ok {
				rc.Literal++
			}
		}
	}

	res.Issues = append(res.Issues, s.crossDocument(all)...)
	sortIssues(res.Issues)
	return res, nil
}

// resolveCorpus expands the configured globs into a sorted, de-duplicated
// document list.
func (s *Scanner) resolveCorpus() ([]string, error) {
	fsys := os.DirFS(s.opts.Root)
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range s.opts.Globs {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("resolve corpus pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if seen[m] || s.excluded(m) {
				continue
			}
			info, err := fs.Stat(fsys, m)
			if err != nil || info.IsDir() {
				continue
			}
			seen[m] = true
			paths = append(paths, m)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *Scanner) excluded(path string) bool {
	for _, seg := range strings.Split(path, "/") {
		for _, ex := range s.opts.ExcludeDirs {
			if seg == ex {
				return true
			}
		}
	}
	return false
}

// scanDocument runs every per-document check.
func (s *Scanner) scanDocument(path string) docResult {
	doc, err := loadDocument(s.opts.Root, path)
	if err != nil {
		return docResult{err: err}
	}

	dr := docResult{dynamic: make(map[string]int)}

	dr.assertions = extractAssertions(doc, s.labels)
	for _, a := range dr.assertions {
		entry, ok := s.snap.Get(a.ParamID)
		if !ok {
			continue
		}
		if !withinTolerance(a.Literal, a.Value, entry.Value, entry.Tolerance, s.toleranceFor(entry.Category)) {
			dr.issues = append(dr.issues, Issue{
				Kind:        KindMismatch,
				Severity:    SeverityError,
				ParameterID: a.ParamID,
				Locations:   []Location{a.Location},
				Message: fmt.Sprintf("document states %s = %s but the canonical value is %g",
					a.ParamID, a.Literal, entry.Value),
			})
		}
	}

	for _, ref := range extractReferences(doc) {
		if ref.Formula {
			if !s.formulas[ref.ID] {
				dr.issues = append(dr.issues, Issue{
					Kind:      KindUnresolvedRef,
					Severity:  SeverityWarning,
					Locations: []Location{ref.Location},
					Message:   fmt.Sprintf("reference to unknown formula %q", ref.ID),
				})
			}
			continue
		}

		entry, ok := s.snap.Get(ref.ID)
		if !ok {
			dr.issues = append(dr.issues, Issue{
				Kind:      KindUnresolvedRef,
				Severity:  SeverityWarning,
				Locations: []Location{ref.Location},
				Message:   fmt.Sprintf("reference to unknown parameter %q", ref.ID),
			})
			continue
		}
		dr.dynamic[ref.ID]++

		if lit, v, ok := ref.renderedValue(); ok {
			if !withinTolerance(lit, v, entry.Value, entry.Tolerance, s.toleranceFor(entry.Category)) {
				dr.issues = append(dr.issues, Issue{
					Kind:        KindMismatch,
					Severity:    SeverityError,
					ParameterID: ref.ID,
					Locations:   []Location{ref.Location},
					Message: fmt.Sprintf("marker for %s renders %s but the canonical value is %g",
						ref.ID, lit, entry.Value),
				})
			}
		}
	}

	dr.issues = append(dr.issues, checkNumbering(doc, s.numRe)...)
	return dr
}

// crossDocument flags parameters for which different documents assert
// different canonical-looking values. Exactly one issue per parameter,
// carrying every claim location.
func (s *Scanner) crossDocument(assertions []assertion) []Issue {
	byParam := make(map[string][]assertion)
	for _, a := range assertions {
		byParam[a.ParamID] = append(byParam[a.ParamID], a)
	}

	ids := make([]string, 0, len(byParam))
	for id := range byParam {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var issues []Issue
	for _, id := range ids {
		claims := byParam[id]
		docs := make(map[string]bool)
		for _, c := range claims {
			docs[c.Location.Document] = true
		}
		if len(docs) < 2 {
			continue
		}

		entry, _ := s.snap.Get(id)
		cat := s.toleranceFor(entry.Category)

		disagree := false
		for i := 0; i < len(claims) && !disagree; i++ {
			for j := i + 1; j < len(claims); j++ {
				if claims[i].Location.Document == claims[j].Location.Document {
					continue
				}
				if !withinTolerance(claims[i].Literal, claims[i].Value, claims[j].Value, entry.Tolerance, cat) {
					disagree = true
					break
				}
			}
		}
		if !disagree {
			continue
		}

		locs := make([]Location, 0, len(claims))
		vals := make([]string, 0, len(claims))
		for _, c := range claims {
			locs = append(locs, c.Location)
			vals = append(vals, c.Literal)
		}
		issues = append(issues, Issue{
			Kind:        KindCrossDocument,
			Severity:    SeverityError,
			ParameterID: id,
			Locations:   locs,
			Message: fmt.Sprintf("documents disagree on %s: %s",
				id, strings.Join(vals, " vs ")),
		})
	}
	return issues
}

func (s *Scanner) toleranceFor(category string) ToleranceSpec {
	if t, ok := s.opts.Tolerances[category]; ok {
		return t
	}
	return s.opts.DefaultTolerance
}
