// Copyright 2026 TRIP Verifier Project
//
// Chain Validator - §4.1: verifies an append-only, signed breadcrumb chain
// one breadcrumb at a time, either from genesis or extending an already
// validated prefix. Keeps only the last-verified head hash/index and a
// per-cell visit counter — it never re-walks the full chain on each
// append, matching the "no repair, fatal on first failure" contract.

package breadcrumb

import (
	"fmt"
	"time"
)

const (
	// DefaultPerCellCap is the maximum number of breadcrumbs the chain may
	// record at a single cell before CELL_CAP_EXCEEDED is raised.
	DefaultPerCellCap = 10
	// DefaultMinInterval is the hard floor on B.timestamp - prev.timestamp.
	DefaultMinInterval = 5 * time.Minute
	// DefaultWarnInterval is the soft threshold below which a policy
	// warning is emitted unless the exploration meta flag is set.
	DefaultWarnInterval = 15 * time.Minute
)

// ValidatorConfig tunes the chain validator's interval and cap policy.
type ValidatorConfig struct {
	PerCellCap   int
	MinInterval  time.Duration
	WarnInterval time.Duration
}

// DefaultValidatorConfig returns the spec's default thresholds.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		PerCellCap:   DefaultPerCellCap,
		MinInterval:  DefaultMinInterval,
		WarnInterval: DefaultWarnInterval,
	}
}

// Chain is a validated, append-only breadcrumb chain for a single identity.
// It retains only what the validator needs to extend itself: the head
// hash/index/timestamp/cell of the last verified breadcrumb, and a count of
// breadcrumbs seen per cell.
type Chain struct {
	cfg ValidatorConfig

	headIndex     uint64
	headSet       bool
	headHash      BlockHash
	headTimestamp int64
	headCell      uint64

	cellCounts map[uint64]int

	// Warnings accumulates non-fatal policy warnings raised during Append,
	// most recent last. Callers may inspect and clear it between calls.
	Warnings []string
}

// NewChain constructs an empty Chain using cfg.
func NewChain(cfg ValidatorConfig) *Chain {
	return &Chain{cfg: cfg, cellCounts: map[uint64]int{}}
}

// HeadIndex returns the index of the last validated breadcrumb and whether
// the chain has accepted at least one.
func (c *Chain) HeadIndex() (uint64, bool) {
	return c.headIndex, c.headSet
}

// HeadHash returns the block hash of the last validated breadcrumb.
func (c *Chain) HeadHash() (BlockHash, bool) {
	return c.headHash, c.headSet
}

// HeadCell returns the cell of the last validated breadcrumb.
func (c *Chain) HeadCell() (uint64, bool) {
	return c.headCell, c.headSet
}

// HeadTimestamp returns the timestamp of the last validated breadcrumb.
func (c *Chain) HeadTimestamp() (int64, bool) {
	return c.headTimestamp, c.headSet
}

// UniqueCells returns the number of distinct cells the chain has recorded a
// breadcrumb at.
func (c *Chain) UniqueCells() int {
	return len(c.cellCounts)
}

// TotalCount returns the number of breadcrumbs the chain has accepted.
func (c *Chain) TotalCount() int {
	if !c.headSet {
		return 0
	}
	return int(c.headIndex) + 1
}

// Append validates b against the chain's current head (or as a genesis
// breadcrumb, if the chain is empty) and, on success, extends the head.
// It validates at most one breadcrumb per call; AppendAll drives a batch.
func (c *Chain) Append(b *Breadcrumb) error {
	ok, err := b.VerifySignature()
	if err != nil {
		return err
	}
	if !ok {
		return errInvalidSignature(b.Index)
	}

	if !c.headSet {
		if b.Index != 0 {
			return errIndexGap(b.Index, 0)
		}
		if b.PredecessorHash != nil {
			return errBrokenLink(b.Index)
		}
	} else {
		expected := c.headIndex + 1
		if b.Index != expected {
			return errIndexGap(b.Index, expected)
		}
		if b.Timestamp < c.headTimestamp {
			return errTimestampRegress(b.Index)
		}
		if b.PredecessorHash == nil || *b.PredecessorHash != c.headHash {
			return errBrokenLink(b.Index)
		}
		if uint64(b.Cell) == c.headCell {
			return errDuplicateCell(b.Index)
		}

		delta := time.Duration(b.Timestamp-c.headTimestamp) * time.Second
		if delta < c.cfg.MinInterval {
			return errIntervalTooShort(b.Index)
		}
		if delta < c.cfg.WarnInterval && !b.Meta[ExplorationFlag] {
			c.Warnings = append(c.Warnings, warnShortInterval(b.Index))
		}
	}

	count := c.cellCounts[uint64(b.Cell)] + 1
	if count > c.cfg.PerCellCap {
		return errCellCapExceeded(uint64(b.Cell))
	}
	c.cellCounts[uint64(b.Cell)] = count

	hash, err := b.Hash()
	if err != nil {
		return err
	}
	c.headIndex = b.Index
	c.headHash = hash
	c.headTimestamp = b.Timestamp
	c.headCell = uint64(b.Cell)
	c.headSet = true
	return nil
}

// AppendAll validates each breadcrumb in order, stopping at the first
// failure. It reports the index of whichever breadcrumb in the batch
// failed via the returned error (see ValidationError).
func (c *Chain) AppendAll(crumbs []*Breadcrumb) error {
	for _, b := range crumbs {
		if err := c.Append(b); err != nil {
			return err
		}
	}
	return nil
}

func warnShortInterval(index uint64) string {
	return fmt.Sprintf("breadcrumb: index %d: collection interval below warn threshold", index)
}
