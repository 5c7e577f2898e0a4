package replay

import "math/rand/v2"

// Split exposes chunking with a fixed seed.
func Split(s string, lo, hi int, seed uint64) []string {
	return split(s, lo, hi, rand.New(rand.NewPCG(seed, seed)))
}
