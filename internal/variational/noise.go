package variational

import (
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/born-ml/bnn/internal/tensor"
)

// noiseSource hands out standard-normal tensors. The underlying sampler
// is not required to be goroutine safe, so draws are serialized.
type noiseSource struct {
	mu      sync.Mutex
	sampler tensor.Sampler
}

func newNoiseSource(s tensor.Sampler) *noiseSource {
	return &noiseSource{sampler: s}
}

// standardNormal returns an N(0, 1) sampler. A nil src uses the global
// source of golang.org/x/exp/rand.
func standardNormal(src rand.Source) distuv.Normal {
	return distuv.Normal{Mu: 0, Sigma: 1, Src: src}
}

// normal returns a tensor of independent N(0, 1) draws.
func (n *noiseSource) normal(shape tensor.Shape) *tensor.Tensor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return tensor.Sample(shape, n.sampler)
}
