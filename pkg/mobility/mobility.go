// Copyright 2026 TRIP Verifier Project
//
// Mobility Profiler - §4.5: per-identity anchor detection, Markov
// transition counting between anchors, circadian/weekday histograms, and
// epoch-boundary predictability. Grounded on pkg/batch/collector.go's
// accumulate-then-seal pattern: observations accrue into an open profile
// until RebuildEpoch "seals" a Markov matrix and a predictability score
// from them, the same shape as an activeBatch accumulating until closed.

package mobility

import (
	"sync"
	"time"

	"github.com/gns-foundation/trip-verifier/pkg/cellgrid"
)

// AnchorThreshold is the cell visit count at which a cell is registered as
// an anchor.
const AnchorThreshold = 5

type transitionObservation struct {
	from, to cellgrid.Cell
}

// Profile is the mutable per-identity mobility state the profiler
// maintains across accepted breadcrumbs.
type Profile struct {
	mu sync.Mutex

	cellCounts map[cellgrid.Cell]int
	anchors    map[cellgrid.Cell]struct{}

	prevAnchor    cellgrid.Cell
	havePrevAnchor bool

	transitionCounts map[cellgrid.Cell]map[cellgrid.Cell]int
	recent           []transitionObservation

	hourHistogram    [24]int
	weekdayHistogram [7]int

	matrix         map[cellgrid.Cell]map[cellgrid.Cell]float64
	predictability float64
}

// NewProfile returns an empty per-identity mobility profile.
func NewProfile() *Profile {
	return &Profile{
		cellCounts:       map[cellgrid.Cell]int{},
		anchors:          map[cellgrid.Cell]struct{}{},
		transitionCounts: map[cellgrid.Cell]map[cellgrid.Cell]int{},
	}
}

// Observe records one accepted breadcrumb: updates the anchor table,
// the anchor-to-anchor transition count, and the circadian/weekday
// histograms. useUTC selects which clock the circadian bin is drawn from;
// it is a fixed per-deployment policy choice, not per-call.
func (p *Profile) Observe(cell cellgrid.Cell, timestamp int64, useUTC bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cellCounts[cell]++
	if p.cellCounts[cell] >= AnchorThreshold {
		p.anchors[cell] = struct{}{}
	}

	if nearest, ok := p.nearestAnchorLocked(cell); ok {
		if p.havePrevAnchor && p.prevAnchor != nearest {
			p.recordTransitionLocked(p.prevAnchor, nearest)
		}
		p.prevAnchor = nearest
		p.havePrevAnchor = true
	}

	t := time.Unix(timestamp, 0)
	if useUTC {
		t = t.UTC()
	} else {
		t = t.Local()
	}
	p.hourHistogram[t.Hour()]++
	p.weekdayHistogram[int(t.Weekday())]++
}

func (p *Profile) recordTransitionLocked(from, to cellgrid.Cell) {
	if p.transitionCounts[from] == nil {
		p.transitionCounts[from] = map[cellgrid.Cell]int{}
	}
	p.transitionCounts[from][to]++
	p.recent = append(p.recent, transitionObservation{from: from, to: to})
}

// nearestAnchorLocked finds the registered anchor with the smallest grid
// distance to cell. If cell is itself an anchor, it is its own nearest
// anchor.
func (p *Profile) nearestAnchorLocked(cell cellgrid.Cell) (cellgrid.Cell, bool) {
	if _, ok := p.anchors[cell]; ok {
		return cell, true
	}
	var best cellgrid.Cell
	bestDist := -1
	found := false
	for a := range p.anchors {
		d, err := cellgrid.GridDistance(cell, a)
		if err != nil {
			continue
		}
		if !found || d < bestDist {
			best, bestDist, found = a, d, true
		}
	}
	return best, found
}

// RebuildEpoch rebuilds the row-normalized Markov transition matrix from
// the cumulative transition counts, computes predictability Π over the
// transitions observed since the previous RebuildEpoch, and clears that
// observation window.
func (p *Profile) RebuildEpoch() (predictability float64, observedTransitions int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.matrix = make(map[cellgrid.Cell]map[cellgrid.Cell]float64, len(p.transitionCounts))
	argmax := make(map[cellgrid.Cell]cellgrid.Cell, len(p.transitionCounts))
	for from, row := range p.transitionCounts {
		total := 0
		for _, n := range row {
			total += n
		}
		normRow := make(map[cellgrid.Cell]float64, len(row))
		var bestTo cellgrid.Cell
		bestCount := -1
		for to, n := range row {
			if total > 0 {
				normRow[to] = float64(n) / float64(total)
			}
			if n > bestCount {
				bestTo, bestCount = to, n
			}
		}
		p.matrix[from] = normRow
		argmax[from] = bestTo
	}

	if len(p.recent) == 0 {
		p.predictability = 0
		return 0, 0
	}
	hits := 0
	for _, obs := range p.recent {
		if best, ok := argmax[obs.from]; ok && best == obs.to {
			hits++
		}
	}
	p.predictability = float64(hits) / float64(len(p.recent))
	observed := len(p.recent)
	p.recent = nil
	return p.predictability, observed
}

// NearestAnchor returns the registered anchor nearest to cell (cell itself,
// if cell is already a registered anchor).
func (p *Profile) NearestAnchor(cell cellgrid.Cell) (cellgrid.Cell, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nearestAnchorLocked(cell)
}

// CurrentAnchor returns the anchor associated with the most recently
// observed breadcrumb, i.e. the state Observe will treat as "from" on its
// next call.
func (p *Profile) CurrentAnchor() (cellgrid.Cell, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prevAnchor, p.havePrevAnchor
}

// TransitionProbability returns T[from][to]: the empirical probability of
// moving from anchor `from` to anchor `to`, computed from the cumulative
// transition counts observed so far. Unlike Predictability, which only
// updates at epoch boundaries, this reflects every transition recorded up
// to the current call, so it tracks the specific from/to pair a caller is
// scoring rather than an aggregate. ok is false when no transition has yet
// been observed out of `from`.
func (p *Profile) TransitionProbability(from, to cellgrid.Cell) (prob float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	row, exists := p.transitionCounts[from]
	if !exists {
		return 0, false
	}
	total := 0
	for _, n := range row {
		total += n
	}
	if total == 0 {
		return 0, false
	}
	return float64(row[to]) / float64(total), true
}

// Predictability returns the most recently computed Π.
func (p *Profile) Predictability() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.predictability
}

// AnchorCount returns the number of registered anchors.
func (p *Profile) AnchorCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.anchors)
}

// HourHistogram returns a copy of the 24-bin hour-of-day histogram.
func (p *Profile) HourHistogram() [24]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hourHistogram
}

// WeekdayHistogram returns a copy of the 7-bin weekday histogram.
func (p *Profile) WeekdayHistogram() [7]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.weekdayHistogram
}
