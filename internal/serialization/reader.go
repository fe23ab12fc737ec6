package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/exp/maps"

	"github.com/born-ml/bnn/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// ReadSafeTensors reads a SafeTensors file with strict validation.
func ReadSafeTensors(path string) (*File, error) {
	return ReadSafeTensorsWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// ReadSafeTensorsWithOptions reads a SafeTensors file with custom options.
func ReadSafeTensorsWithOptions(path string, opts ReaderOptions) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = file.Close() // Best effort close
	}()

	f, err := Decode(file, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Decode reads a SafeTensors stream, widening every tensor to float64.
func Decode(r io.Reader, opts ReaderOptions) (*File, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if n > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, n)
	}

	headerJSON := make([]byte, n)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	f := &File{
		Tensors:  make(map[string]*tensor.Tensor, len(raw)),
		DTypes:   make(map[string]string, len(raw)),
		Metadata: map[string]string{},
	}

	entries := make(map[string]TensorHeader, len(raw))
	for name, msg := range raw {
		if name == metadataKey {
			if err := json.Unmarshal(msg, &f.Metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %w", ErrInvalidHeader, err)
			}
			continue
		}
		var h TensorHeader
		if err := json.Unmarshal(msg, &h); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %w", ErrInvalidHeader, name, err)
		}
		entries[name] = h
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}

	if err := ValidateHeader(entries, int64(len(data)), opts.ValidationLevel); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if sum, ok := f.Metadata[MetadataChecksum]; ok && !opts.SkipChecksumValidation {
		if err := ValidateChecksum(ComputeChecksum(data), sum); err != nil {
			return nil, err
		}
	}

	names := maps.Keys(entries)
	slices.Sort(names)
	for _, name := range names {
		t, err := decodeTensor(name, entries[name], data)
		if err != nil {
			return nil, err
		}
		f.Tensors[name] = t
		f.DTypes[name] = entries[name].DType
	}

	return f, nil
}

// decodeTensor slices one tensor out of the data section and converts it.
func decodeTensor(name string, h TensorHeader, data []byte) (*tensor.Tensor, error) {
	size, err := dtypeSize(h.DType)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	shape := make(tensor.Shape, len(h.Shape))
	for i, dim := range h.Shape {
		if dim < 0 {
			return nil, fmt.Errorf("%w: tensor %q has negative dimension %d", ErrInvalidHeader, name, dim)
		}
		shape[i] = int(dim)
	}

	begin, end := h.DataOffsets[0], h.DataOffsets[1]
	if begin < 0 || end < begin {
		return nil, fmt.Errorf("%w: tensor %q offsets [%d, %d]", ErrNegativeOffset, name, begin, end)
	}
	if end > int64(len(data)) {
		return nil, fmt.Errorf("%w: tensor %q ends at %d, data is %d bytes", ErrOutOfBounds, name, end, len(data))
	}
	if want := int64(shape.NumElements() * size); end-begin != want {
		return nil, fmt.Errorf("%w: tensor %q has %d bytes, shape %v %s needs %d",
			ErrInvalidHeader, name, end-begin, shape, h.DType, want)
	}
	b := data[begin:end]

	values := make([]float64, shape.NumElements())
	switch h.DType {
	case DTypeF64:
		for i := range values {
			values[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
		}
	case DTypeF32:
		for i := range values {
			values[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:])))
		}
	case DTypeF16:
		for i := range values {
			values[i] = float64(float16.Frombits(binary.LittleEndian.Uint16(b[2*i:])).Float32())
		}
	case DTypeBF16:
		for i, v := range bfloat16.DecodeFloat32(b) {
			values[i] = float64(v)
		}
	}

	return tensor.FromSlice(values, shape)
}
