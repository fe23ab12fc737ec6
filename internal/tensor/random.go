package tensor

// Sampler draws one random variate per call.
//
// gonum's distuv distributions satisfy it, e.g.
// distuv.Normal{Mu: 0, Sigma: 1, Src: src}.
type Sampler interface {
	Rand() float64
}

// Sample creates a tensor whose elements are independent draws from s.
func Sample(shape Shape, s Sampler) *Tensor {
	t := Zeros(shape)
	for i := range t.data {
		t.data[i] = s.Rand()
	}
	return t
}
