package routing

import (
	"sort"

	"github.com/ashish-admin/stra-tech-sub002/internal/domain"
)

// capability orders service kinds from most to least capable.
func capability(kind domain.ServiceKind) int {
	switch kind {
	case domain.KindReasoning:
		return 0
	case domain.KindRetrieval:
		return 1
	case domain.KindLocal:
		return 3
	default:
		return 2
	}
}

// selection is the outcome of ServiceSelection.
type selection struct {
	chain      []domain.ServiceDescriptor
	collectors []domain.ServiceDescriptor
	score      float64
	bucket     domain.ComplexityBucket
	suppressed string
	forceLocal bool
}

func (s selection) names() []string {
	out := make([]string, 0, len(s.chain))
	for _, d := range s.chain {
		out = append(out, d.Name)
	}
	return out
}

// selectChain maps complexity and budget remediation onto an ordered chain.
// The local fallback is always the last element.
func (r *Router) selectChain(q *domain.Query, rem domain.Remediation) selection {
	score, bucket := r.classifier.Classify(q)
	sel := selection{score: score, bucket: bucket}

	var fallback *domain.ServiceDescriptor
	var candidates []domain.ServiceDescriptor
	var retrieval, embedding *domain.ServiceDescriptor
	costs := make(map[string]float64)

	for _, desc := range r.catalog.All() {
		costs[desc.Name] = r.budget.EstimateCost(desc.Name, q)

		switch desc.Kind {
		case domain.KindLocal:
			if fallback == nil {
				fallback = &desc
			}
		case domain.KindEmbedding:
			if embedding == nil {
				embedding = &desc
			}
		default:
			candidates = append(candidates, desc)
			if desc.Kind == domain.KindRetrieval && retrieval == nil {
				retrieval = &desc
			}
		}
	}

	restricted := !q.Critical
	if rem.ForceLocal && restricted {
		sel.forceLocal = true
		if fallback != nil {
			sel.chain = []domain.ServiceDescriptor{*fallback}
		}
		return sel
	}

	if rem.SuppressMostExpensive && restricted {
		sel.suppressed = mostExpensive(r.catalog.All(), costs)
	}

	kept := candidates[:0:0]
	for _, desc := range candidates {
		if desc.Name != sel.suppressed {
			kept = append(kept, desc)
		}
	}

	byCost := func(a, b domain.ServiceDescriptor) bool {
		if costs[a.Name] != costs[b.Name] {
			return costs[a.Name] < costs[b.Name]
		}
		return capability(a.Kind) < capability(b.Kind)
	}
	byCapability := func(a, b domain.ServiceDescriptor) bool {
		if capability(a.Kind) != capability(b.Kind) {
			return capability(a.Kind) < capability(b.Kind)
		}
		return costs[a.Name] < costs[b.Name]
	}

	var less func(a, b domain.ServiceDescriptor) bool
	switch {
	case rem.CheapestFirst, bucket == domain.BucketLow:
		less = byCost
	case bucket == domain.BucketHigh:
		less = byCapability
	default:
		// Services tuned for this complexity go first.
		less = func(a, b domain.ServiceDescriptor) bool {
			fitA, fitB := a.Complexity.Contains(score), b.Complexity.Contains(score)
			if fitA != fitB {
				return fitA
			}
			return byCapability(a, b)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return less(kept[i], kept[j]) })

	sel.chain = kept
	if fallback != nil {
		sel.chain = append(sel.chain, *fallback)
	}

	if q.Depth == domain.DepthDeep {
		for _, collector := range []*domain.ServiceDescriptor{retrieval, embedding} {
			if collector != nil && collector.Name != sel.suppressed {
				sel.collectors = append(sel.collectors, *collector)
			}
		}
	}

	return sel
}

// mostExpensive returns the paid service with the highest estimated cost.
func mostExpensive(descs []domain.ServiceDescriptor, costs map[string]float64) string {
	var name string
	var highest float64
	for _, desc := range descs {
		if desc.Kind == domain.KindLocal {
			continue
		}
		if c := costs[desc.Name]; c > highest {
			name, highest = desc.Name, c
		}
	}
	return name
}
