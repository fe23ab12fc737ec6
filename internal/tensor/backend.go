package tensor

// Backend defines the compute kernels the layers delegate to.
//
// Implementations:
//   - CPU: gonum BLAS for matmul, im2col for convolution
type Backend interface {
	// MatMul computes (M, K) @ (K, N) -> (M, N).
	MatMul(a, b *Tensor) *Tensor

	// Conv2D convolves input [N, C_in, H, W] with kernel
	// [C_out, C_in, K_h, K_w] and returns [N, C_out, H_out, W_out].
	Conv2D(input, kernel *Tensor, stride, padding int) *Tensor

	// Name returns a human-readable backend name.
	Name() string
}
