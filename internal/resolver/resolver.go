package resolver

import (
	"github.com/codeatlas/codeatlas-go/internal/logging"
	"github.com/codeatlas/codeatlas-go/internal/models"
)

// Policy decides which declaration a call name binds to when several share
// the name. Candidates arrive in codebase registration order.
type Policy interface {
	Name() string
	Pick(caller *models.Declaration, candidates []*models.Declaration) *models.Declaration
}

// FirstMatch binds to the first registered declaration with the name. This
// is the default and matches earlier behavior exactly.
type FirstMatch struct{}

func (FirstMatch) Name() string { return "first-match" }

func (FirstMatch) Pick(_ *models.Declaration, candidates []*models.Declaration) *models.Declaration {
	return candidates[0]
}

// SameFileFirst prefers a declaration from the caller's own file, falling
// back to first-match.
type SameFileFirst struct{}

func (SameFileFirst) Name() string { return "same-file-first" }

func (SameFileFirst) Pick(caller *models.Declaration, candidates []*models.Declaration) *models.Declaration {
	for _, c := range candidates {
		if c.FilePath == caller.FilePath {
			return c
		}
	}
	return candidates[0]
}

// PolicyFromName maps a config value to a policy, defaulting to first-match.
func PolicyFromName(name string) Policy {
	switch name {
	case "same-file-first":
		return SameFileFirst{}
	default:
		return FirstMatch{}
	}
}

// Stats summarizes one resolution pass.
type Stats struct {
	Resolved   int
	Unresolved int
	Ambiguous  int
}

// Resolver turns the call names recorded on declarations into concrete
// caller/callee relationships.
type Resolver struct {
	policy Policy
	logger *logging.Logger
}

// New creates a resolver with the given policy. A nil policy means
// first-match.
func New(policy Policy, logger *logging.Logger) *Resolver {
	if policy == nil {
		policy = FirstMatch{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{policy: policy, logger: logger}
}

// Resolve builds the name index over the whole codebase and binds every
// recorded call name. Names with no declaration are counted and skipped;
// names with several declarations are counted as ambiguous and decided by
// the policy.
//
// The relationship's call line is the caller's declaration line; call sites
// are not tracked at finer granularity.
func (r *Resolver) Resolve(cb *models.Codebase) ([]models.CallRelationship, Stats) {
	index := buildIndex(cb)

	var rels []models.CallRelationship
	var stats Stats

	for _, file := range cb.Files() {
		for _, decl := range file.Declarations() {
			for _, name := range decl.Calls {
				candidates := index[name]
				if len(candidates) == 0 {
					stats.Unresolved++
					continue
				}
				if len(candidates) > 1 {
					stats.Ambiguous++
					r.logger.Debug("ambiguous call name",
						"name", name,
						"caller", decl.QualifiedName(),
						"candidates", len(candidates),
						"policy", r.policy.Name())
				}
				callee := r.policy.Pick(decl, candidates)
				rels = append(rels, models.CallRelationship{
					Caller:     decl.Name,
					CallerKind: decl.Kind,
					CallerFile: decl.FilePath,
					CallerLine: decl.Location.StartLine,
					Callee:     callee.Name,
					CalleeKind: callee.Kind,
					CalleeFile: callee.FilePath,
					CalleeLine: callee.Location.StartLine,
					CallLine:   decl.Location.StartLine,
				})
				stats.Resolved++
			}
		}
	}

	r.logger.Debug("call resolution complete",
		"resolved", stats.Resolved,
		"unresolved", stats.Unresolved,
		"ambiguous", stats.Ambiguous)
	return rels, stats
}

// buildIndex maps callable names to declarations in registration order.
// Methods are indexed under both the bare name and Class.name so qualified
// call names also resolve.
func buildIndex(cb *models.Codebase) map[string][]*models.Declaration {
	index := make(map[string][]*models.Declaration)
	for _, file := range cb.Files() {
		for _, fn := range file.Functions {
			index[fn.Name] = append(index[fn.Name], fn)
		}
		for _, class := range file.Classes {
			for _, m := range class.Methods {
				index[m.Name] = append(index[m.Name], m)
				qualified := class.Name + "." + m.Name
				index[qualified] = append(index[qualified], m)
			}
		}
	}
	return index
}
