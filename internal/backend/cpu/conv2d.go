package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/bnn/internal/parallel"
	"github.com/born-ml/bnn/internal/tensor"
)

// Conv2D performs 2D convolution using im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Algorithm: Im2col
//  1. Transform input patches into columns (im2col)
//  2. View kernel as a [C_out, C_in*K_h*K_w] matrix
//  3. GEMM: cols @ kernel.T -> [N*H_out*W_out, C_out]
//  4. Rearrange to [N, C_out, H_out, W_out]
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.Tensor, stride, padding int) *tensor.Tensor {
	inputShape := input.Shape()
	kernelShape := kernel.Shape()

	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: input must be 4D [N,C,H,W], got %dD", len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("conv2d: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("conv2d: invalid stride=%d padding=%d", stride, padding))
	}

	N := inputShape[0]     // batch size
	CIn := inputShape[1]   // input channels
	H := inputShape[2]     // input height
	W := inputShape[3]     // input width
	COut := kernelShape[0] // output channels
	CInK := kernelShape[1] // kernel input channels (must match CIn)
	KH := kernelShape[2]   // kernel height
	KW := kernelShape[3]   // kernel width

	if CIn != CInK {
		panic(fmt.Sprintf("conv2d: input channels %d != kernel channels %d", CIn, CInK))
	}

	HOut := (H+2*padding-KH)/stride + 1
	WOut := (W+2*padding-KW)/stride + 1

	if HOut <= 0 || WOut <= 0 {
		panic(fmt.Sprintf("conv2d: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", HOut, WOut))
	}

	colWidth := CIn * KH * KW
	colHeight := N * HOut * WOut
	colBuf := make([]float64, colHeight*colWidth)
	im2col(colBuf, input.Data(), N, CIn, H, W, KH, KW, HOut, WOut, stride, padding, cpu.parallel)

	var prod mat.Dense
	prod.Mul(mat.NewDense(colHeight, colWidth, colBuf), mat.NewDense(COut, colWidth, kernel.Data()).T())

	// prod row j is output position (n, h, w); column c is the channel.
	output := tensor.Zeros(tensor.Shape{N, COut, HOut, WOut})
	outputData := output.Data()
	spatial := HOut * WOut
	parallel.For(colHeight, cpu.parallel, func(j int) {
		n, pos := j/spatial, j%spatial
		row := prod.RawRowView(j)
		for c := 0; c < COut; c++ {
			outputData[(n*COut+c)*spatial+pos] = row[c]
		}
	})

	return output
}

// im2col transforms input tensor into column matrix.
//
// Input: [N, C, H, W]
// Output: colBuf [N * H_out * W_out, C * K_h * K_w]
//
// Each row of colBuf corresponds to one output position; each column to one
// kernel weight. Positions falling into the padding read as zero. Rows are
// filled independently, split across goroutines by cfg.
func im2col(colBuf, inputData []float64, N, C, H, W, KH, KW, HOut, WOut, stride, padding int, cfg parallel.Config) {
	colWidth := C * KH * KW
	spatial := HOut * WOut

	parallel.For(N*spatial, cfg, func(colIdx int) {
		n := colIdx / spatial
		outH := (colIdx % spatial) / WOut
		outW := colIdx % WOut
		hStart := outH*stride - padding
		wStart := outW*stride - padding
		bufIdx := colIdx * colWidth

		for c := 0; c < C; c++ {
			for kh := 0; kh < KH; kh++ {
				for kw := 0; kw < KW; kw++ {
					h := hStart + kh
					w := wStart + kw

					if h >= 0 && h < H && w >= 0 && w < W {
						colBuf[bufIdx] = inputData[n*C*H*W+c*H*W+h*W+w]
					} else {
						colBuf[bufIdx] = 0.0
					}
					bufIdx++
				}
			}
		}
	})
}
