package sampler

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/exp/rand"

	"github.com/btracey/surrogate/comm"
	"github.com/btracey/surrogate/distribution"
)

// MonteCarlo draws each row independently from a product of distributions.
// The random stream of a row is seeded from the sampler seed and the row
// index, so rows do not depend on the partitioning.
type MonteCarlo struct {
	Base
	dists distribution.Independent
	seed  uint64
}

// NewMonteCarlo returns a sampler with rows random rows, one column per
// distribution.
func NewMonteCarlo(rows int, dists distribution.Independent, seed uint64, c comm.Comm) *MonteCarlo {
	if rows < 0 {
		panic("sampler: negative number of rows")
	}
	if len(dists) == 0 {
		panic("sampler: no distributions")
	}
	m := &MonteCarlo{dists: dists, seed: seed}
	m.init(c, rows, len(dists), false, m.fillRow)
	return m
}

func (m *MonteCarlo) fillRow(row int, dst []float64) {
	rnd := rand.New(rand.NewSource(rowSeed(m.seed, uint64(row))))
	p := make([]float64, len(dst))
	for i := range p {
		for p[i] == 0 {
			p[i] = rnd.Float64()
		}
	}
	m.dists.Quantile(dst, p)
}

// rowSeed derives the seed of an independent stream from a base seed and a
// counter.
func rowSeed(seed, n uint64) uint64 {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[:8], seed)
	binary.LittleEndian.PutUint64(buf[8:], n)
	return xxhash.Sum64(buf[:])
}
