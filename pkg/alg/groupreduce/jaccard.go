package groupreduce

// WeightedJaccard computes the similarity of two weighted sets keyed by a
// shared identity (for example, file paths carrying fractional membership).
// Each set is normalized so its total weight is 1.0 before comparison, which
// keeps sets of unequal cardinality comparable. The result is
// intersection-weight over union-weight, always in [0, 1]; a non-empty set
// compared with itself yields 1.0. Two sets without any positive weight
// yield 0.
func WeightedJaccard(a, b map[string]float64) float64 {
	na := normalize(a)
	nb := normalize(b)

	if na == nil || nb == nil {
		return 0
	}

	var intersection, union float64

	for key, wa := range na {
		if wb, ok := nb[key]; ok {
			intersection += min(wa, wb)
			union += max(wa, wb)
		} else {
			union += wa
		}
	}

	for key, wb := range nb {
		if _, ok := na[key]; !ok {
			union += wb
		}
	}

	if union == 0 {
		return 0
	}

	return intersection / union
}

// normalize scales weights to sum to 1.0, dropping non-positive entries.
// Returns nil when no positive weight remains.
func normalize(set map[string]float64) map[string]float64 {
	var total float64

	for _, w := range set {
		if w > 0 {
			total += w
		}
	}

	if total == 0 {
		return nil
	}

	normalized := make(map[string]float64, len(set))

	for key, w := range set {
		if w > 0 {
			normalized[key] = w / total
		}
	}

	return normalized
}
