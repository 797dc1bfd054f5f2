// Package noise provides deterministic integer hash noise. Every value is a
// pure function of its coordinates and seed, so frames re-rendered with the
// same tick produce identical shake offsets and noise grain.
package noise

// Hash combines the coordinates and seed into a well mixed integer
func Hash(x, y, z int, seed uint32) uint32 {
	h := seed + uint32(x)*374761393 + uint32(y)*668265263 + uint32(z)*374761393
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// ToUnit converts a hash to a float in range [0, 1)
func ToUnit(h uint32) float64 {
	return float64(h&0xFFFFFF) / 16777216.0
}

// Unit returns the [0, 1) noise value of a 2D lattice point
func Unit(x, y int, seed uint32) float64 {
	return ToUnit(Hash(x, y, 0, seed))
}

// Range returns an integer in [lo, hi] for the given lattice point
func Range(x, y, z int, seed uint32, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	span := uint32(hi - lo + 1)
	return lo + int(Hash(x, y, z, seed)%span)
}

// Offset is one jitter entry of a shake table
type Offset struct {
	X, Y int
}

// ShakeTableSize is the number of distinct offsets in a shake table
const ShakeTableSize = 64

const shakeUnit = 64

// ShakeTable is a fixed set of jitter offsets re-rolled on a cadence rather
// than every frame. Entries are stored in [-shakeUnit, shakeUnit].
type ShakeTable struct {
	offsets [ShakeTableSize]Offset
	seed    uint32
	rolled  bool
}

// Roll fills the table from seed. Rolling twice with the same seed is a no-op.
func (t *ShakeTable) Roll(seed uint32) {
	if t.rolled && t.seed == seed {
		return
	}
	for i := range t.offsets {
		t.offsets[i] = Offset{
			X: Range(i, 0, 1, seed, -shakeUnit, shakeUnit),
			Y: Range(i, 0, 2, seed, -shakeUnit, shakeUnit),
		}
	}
	t.seed = seed
	t.rolled = true
}

// At returns entry i scaled to [-magnitude, magnitude]. i wraps around the table.
func (t *ShakeTable) At(i, magnitude int) (int, int) {
	o := t.offsets[((i%ShakeTableSize)+ShakeTableSize)%ShakeTableSize]
	return roundDiv(o.X*magnitude, shakeUnit), roundDiv(o.Y*magnitude, shakeUnit)
}

func roundDiv(a, b int) int {
	if a < 0 {
		return -((-a + b/2) / b)
	}
	return (a + b/2) / b
}

// Seed returns the seed of the current roll
func (t *ShakeTable) Seed() uint32 {
	return t.seed
}
