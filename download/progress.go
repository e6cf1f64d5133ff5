package download

import "github.com/willf/bitset"

// progress is the client's own record of which piece indices have been
// written to the output so far. It is deliberately not the wire
// Bitfield type (helpers/bitfield): that type's byte layout is the
// literal Bitfield message payload, while this is a local bookkeeping
// set with no wire counterpart, so it is free to use a general-purpose
// set (github.com/willf/bitset, as uber-kraken's dispatch.peer uses it
// for exactly this kind of local piece-ownership tracking).
type progress struct {
	set *bitset.BitSet
}

func newProgress(numPieces int) *progress {
	return &progress{set: bitset.New(uint(numPieces))}
}

func (p *progress) markDone(index int) { p.set.Set(uint(index)) }

func (p *progress) isDone(index int) bool { return p.set.Test(uint(index)) }

func (p *progress) doneCount() int { return int(p.set.Count()) }
