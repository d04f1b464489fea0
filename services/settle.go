package services

import (
	"sort"

	"github.com/sourcegraph/conc/pool"
)

type indexed[T any] struct {
	i   int
	val T
}

// settle runs fn for every item on at most limit goroutines, waits for all of
// them and returns the results in item order. fn must not panic.
func settle[In, Out any](limit int, items []In, fn func(In) Out) []Out {
	if len(items) == 0 {
		return nil
	}

	p := pool.NewWithResults[indexed[Out]]().WithMaxGoroutines(max(limit, 1))
	for i, item := range items {
		i, item := i, item
		p.Go(func() indexed[Out] {
			return indexed[Out]{i: i, val: fn(item)}
		})
	}

	// ResultPool does not keep submission order.
	results := p.Wait()
	sort.Slice(results, func(a, b int) bool { return results[a].i < results[b].i })

	out := make([]Out, len(results))
	for i, r := range results {
		out[i] = r.val
	}
	return out
}

// dedupe drops empty strings and repeats, keeping first-seen order.
func dedupe(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// difference returns the members of a that are not in b, in a's order.
func difference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, id := range b {
		inB[id] = struct{}{}
	}
	var out []string
	for _, id := range a {
		if _, ok := inB[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
