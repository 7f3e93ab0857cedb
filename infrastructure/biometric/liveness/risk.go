package liveness

// Aggregator accumulates spoof evidence for one session.
// The score never decreases and the aggregator latches blocked once it reaches the threshold.
type Aggregator struct {
	blockThreshold float64
	score          float64
	contributions  map[Indicator]float64
	order          []Indicator
}

func NewAggregator(blockThreshold float64) *Aggregator {
	return &Aggregator{
		blockThreshold: blockThreshold,
		contributions:  make(map[Indicator]float64),
	}
}

// Add records weight for indicator and reports whether the session is now blocked.
// Non-positive weights are ignored.
func (a *Aggregator) Add(indicator Indicator, weight float64) bool {
	if weight > 0 {
		if _, ok := a.contributions[indicator]; !ok {
			a.order = append(a.order, indicator)
		}
		a.contributions[indicator] += weight
		a.score += weight
	}
	return a.Blocked()
}

func (a *Aggregator) Score() float64 {
	return a.score
}

func (a *Aggregator) Blocked() bool {
	return a.score >= a.blockThreshold
}

func (a *Aggregator) Contribution(indicator Indicator) float64 {
	return a.contributions[indicator]
}

// Contributors lists indicators that added weight, in the order they first did.
func (a *Aggregator) Contributors() []string {
	out := make([]string, len(a.order))
	for i, ind := range a.order {
		out[i] = string(ind)
	}
	return out
}
