package maze

// rand32 is a small seeded generator (mulberry32 mixing) used for every
// random decision during maze generation. Identical seeds produce identical
// sequences on every platform, which is what lets the server, both clients
// and any bot regenerate the same maze from the seed alone.
type rand32 struct {
	state uint32
}

func newRand32(seed uint32) *rand32 {
	return &rand32{state: seed}
}

// next returns a float in [0, 1).
func (r *rand32) next() float64 {
	r.state += 0x6D2B79F5
	z := r.state
	z = (z ^ (z >> 15)) * (z | 1)
	z ^= z + (z^(z>>7))*(z|61)
	z ^= z >> 14
	return float64(z) / 4294967296.0
}

// intn returns an int in [0, n).
func (r *rand32) intn(n int) int {
	return int(r.next() * float64(n))
}

// shuffle permutes s in place, Fisher-Yates driven by the seeded generator.
func (r *rand32) shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.intn(i + 1)
		swap(i, j)
	}
}
