// Package cpu implements the CPU backend on top of gonum's BLAS-backed
// dense matrices.
package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/bnn/internal/parallel"
	"github.com/born-ml/bnn/internal/tensor"
)

// CPUBackend implements tensor.Backend on the CPU.
//
//nolint:revive // CPUBackend mirrors the naming of the other backends.
type CPUBackend struct {
	parallel parallel.Config
}

// New creates a new CPU backend that splits convolutions across
// GOMAXPROCS goroutines.
func New() *CPUBackend {
	return &CPUBackend{parallel: parallel.DefaultConfig()}
}

// NewSequential creates a CPU backend that runs every operation on the
// calling goroutine.
func NewSequential() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// MatMul performs matrix multiplication.
// For 2D tensors: (M, K) @ (K, N) -> (M, N).
func (cpu *CPUBackend) MatMul(a, b *tensor.Tensor) *tensor.Tensor {
	aShape := a.Shape()
	bShape := b.Shape()

	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("matmul: only 2D tensors supported, got %dD and %dD", len(aShape), len(bShape)))
	}

	m, k := aShape[0], aShape[1]
	kAlt, n := bShape[0], bShape[1]

	if k != kAlt {
		panic(fmt.Sprintf("matmul: shape mismatch [%d,%d] @ [%d,%d]", m, k, kAlt, n))
	}

	// mat.NewDense wraps the slices without copying; Mul writes into a
	// fresh receiver so the operands are left untouched.
	var c mat.Dense
	c.Mul(mat.NewDense(m, k, a.Data()), mat.NewDense(k, n, b.Data()))

	return denseToTensor(&c, tensor.Shape{m, n})
}

// denseToTensor copies a gonum matrix into a tensor of the given shape.
func denseToTensor(d *mat.Dense, shape tensor.Shape) *tensor.Tensor {
	rows, cols := d.Dims()
	out := tensor.Zeros(shape)
	data := out.Data()
	for i := 0; i < rows; i++ {
		copy(data[i*cols:(i+1)*cols], d.RawRowView(i))
	}
	return out
}
