package variational

// KLDivergence returns KL(posterior || prior) summed over every weight and
// bias element.
func (l *Layer[A]) KLDivergence() float64 {
	return l.weight.kl() + l.bias.kl()
}

// KLBackward adds scale·∂KL/∂θ to the gradient of every trainable
// parameter θ, allocating gradients that are still nil.
//
// Training code typically calls it with scale = 1/N alongside the data
// loss gradients, then steps an optimizer over Parameters.
func (l *Layer[A]) KLBackward(scale float64) {
	l.weight.klBackward(scale)
	l.bias.klBackward(scale)
}
