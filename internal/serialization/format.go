package serialization

import (
	"fmt"

	"github.com/born-ml/bnn/internal/tensor"
)

// SafeTensors dtype strings.
const (
	DTypeF64  = "F64"
	DTypeF32  = "F32"
	DTypeF16  = "F16"
	DTypeBF16 = "BF16"
)

// Reserved header keys.
const (
	metadataKey = "__metadata__"

	// MetadataChecksum holds the hex SHA-256 of the data section.
	MetadataChecksum = "sha256"
)

// TensorHeader is one tensor entry of the JSON header.
type TensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// File is a decoded SafeTensors file.
type File struct {
	Tensors  map[string]*tensor.Tensor
	DTypes   map[string]string // On-disk dtype per tensor
	Metadata map[string]string
}

// dtypeSize returns the element size in bytes of a SafeTensors dtype.
func dtypeSize(dtype string) (int, error) {
	switch dtype {
	case DTypeF64:
		return 8, nil
	case DTypeF32:
		return 4, nil
	case DTypeF16, DTypeBF16:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedDType, dtype)
	}
}
