package pattern

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
)

// OwnedPattern is a pattern together with the activity of the record that owns it.
type OwnedPattern struct {
	OwnerID     string
	OwnerActive bool
	Active      bool
	Spec        Spec
}

func (p OwnedPattern) live() bool {
	return p.Active && p.OwnerActive && !p.Spec.Empty()
}

// Resolve returns the sorted ids of owners with at least one live pattern
// matching candidate.
func Resolve(candidate string, patterns []OwnedPattern) []string {
	owners := map[string]struct{}{}
	for _, p := range patterns {
		if !p.live() {
			continue
		}
		if _, done := owners[p.OwnerID]; done {
			continue
		}
		if Matches(p.Spec, candidate) {
			owners[p.OwnerID] = struct{}{}
		}
	}
	return sortedKeys(owners)
}

// Index is a prepared set of live patterns. Owners sharing a pattern are
// grouped so each distinct spec is matched once per candidate.
type Index struct {
	specs  []Spec
	owners map[Spec][]string
}

// NewIndex drops dead patterns and groups the rest by spec.
func NewIndex(patterns []OwnedPattern) *Index {
	idx := &Index{owners: map[Spec][]string{}}
	seen := map[Spec]map[string]bool{}
	for _, p := range patterns {
		if !p.live() {
			continue
		}
		if seen[p.Spec] == nil {
			seen[p.Spec] = map[string]bool{}
			idx.specs = append(idx.specs, p.Spec)
		}
		if !seen[p.Spec][p.OwnerID] {
			seen[p.Spec][p.OwnerID] = true
			idx.owners[p.Spec] = append(idx.owners[p.Spec], p.OwnerID)
		}
	}
	return idx
}

// Len returns the number of distinct live specs.
func (idx *Index) Len() int { return len(idx.specs) }

// Resolve is equivalent to Resolve(candidate, patterns) for the patterns the
// index was built from.
func (idx *Index) Resolve(candidate string) []string {
	owners := map[string]struct{}{}
	for _, s := range idx.specs {
		if !Matches(s, candidate) {
			continue
		}
		for _, id := range idx.owners[s] {
			owners[id] = struct{}{}
		}
	}
	return sortedKeys(owners)
}

// ResolveAll resolves every candidate against idx using up to workers
// goroutines. The result is keyed like candidates.
func ResolveAll(ctx context.Context, candidates map[string]string, idx *Index, workers int) (map[string][]string, error) {
	if workers < 1 {
		workers = 1
	}
	type result struct {
		key    string
		owners []string
	}
	p := pool.NewWithResults[result]().WithContext(ctx).WithMaxGoroutines(workers)
	for key, text := range candidates {
		p.Go(func(ctx context.Context) (result, error) {
			if err := ctx.Err(); err != nil {
				return result{}, err
			}
			return result{key: key, owners: idx.Resolve(text)}, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, len(results))
	for _, r := range results {
		out[r.key] = r.owners
	}
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
