package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"

	"github.com/born-ml/bnn/internal/tensor"
)

// rawFile assembles a SafeTensors stream from a header and data section.
func rawFile(t *testing.T, header map[string]any, data []byte) []byte {
	t.Helper()

	headerJSON, err := json.Marshal(header)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(len(headerJSON))))
	buf.Write(headerJSON)
	buf.Write(data)
	return buf.Bytes()
}

// TestSafeTensors_RoundTrip writes and reads back a state dict through a file.
func TestSafeTensors_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layer.safetensors")

	tensors := map[string]*tensor.Tensor{
		"weight_mean":      tensor.MustFromSlice([]float64{1, -2.5, math.Pi, 1e-300, -0, 7}, tensor.Shape{2, 3}),
		"weight_raw_scale": tensor.Full(tensor.Shape{2, 3}, -9.21),
		"bias_mean":        tensor.MustFromSlice([]float64{0.5, -0.5}, tensor.Shape{2}),
	}
	require.NoError(t, WriteSafeTensors(path, tensors, map[string]string{"kind": "linear"}))

	f, err := ReadSafeTensors(path)
	require.NoError(t, err)

	require.Len(t, f.Tensors, 3)
	for name, want := range tensors {
		got := f.Tensors[name]
		require.NotNil(t, got, name)
		assert.True(t, got.Shape().Equal(want.Shape()), name)
		assert.Equal(t, want.Data(), got.Data(), name)
		assert.Equal(t, DTypeF64, f.DTypes[name])
	}
	assert.Equal(t, "linear", f.Metadata["kind"])
	assert.Len(t, f.Metadata[MetadataChecksum], 64)
}

func TestEncode_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]*tensor.Tensor{
		"b": tensor.Ones(tensor.Shape{1}),
		"a": tensor.Zeros(tensor.Shape{2}),
	}, nil))

	b := buf.Bytes()
	n := binary.LittleEndian.Uint64(b[:8])
	assert.Zero(t, n%headerAlignment, "header is padded to 8 bytes")
	assert.Len(t, b, 8+int(n)+3*8)

	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b[8:8+n], &header))

	var a, bh TensorHeader
	require.NoError(t, json.Unmarshal(header["a"], &a))
	require.NoError(t, json.Unmarshal(header["b"], &bh))
	assert.Equal(t, [2]int64{0, 16}, a.DataOffsets, "tensors are laid out alphabetically")
	assert.Equal(t, [2]int64{16, 24}, bh.DataOffsets)
	assert.Equal(t, []int64{2}, a.Shape)
}

// TestDecode_ReducedPrecision reads F32, F16 and BF16 tensors as float64.
func TestDecode_ReducedPrecision(t *testing.T) {
	values := []float32{1, -2, 0.5, 3.25}

	var f32, f16, bf16 bytes.Buffer
	for _, v := range values {
		require.NoError(t, binary.Write(&f32, binary.LittleEndian, math.Float32bits(v)))
		require.NoError(t, binary.Write(&f16, binary.LittleEndian, float16.Fromfloat32(v).Bits()))
		// BF16 is the upper half of the float32 bit pattern.
		require.NoError(t, binary.Write(&bf16, binary.LittleEndian, uint16(math.Float32bits(v)>>16)))
	}

	data := append(append(append([]byte{}, f32.Bytes()...), f16.Bytes()...), bf16.Bytes()...)
	header := map[string]any{
		"f32":  TensorHeader{DType: DTypeF32, Shape: []int64{2, 2}, DataOffsets: [2]int64{0, 16}},
		"f16":  TensorHeader{DType: DTypeF16, Shape: []int64{4}, DataOffsets: [2]int64{16, 24}},
		"bf16": TensorHeader{DType: DTypeBF16, Shape: []int64{4}, DataOffsets: [2]int64{24, 32}},
	}

	f, err := Decode(bytes.NewReader(rawFile(t, header, data)), ReaderOptions{})
	require.NoError(t, err)

	want := []float64{1, -2, 0.5, 3.25}
	for _, name := range []string{"f32", "f16", "bf16"} {
		assert.Equal(t, want, f.Tensors[name].Data(), name)
	}
	assert.True(t, f.Tensors["f32"].Shape().Equal(tensor.Shape{2, 2}))
	assert.Equal(t, DTypeBF16, f.DTypes["bf16"])
	assert.Empty(t, f.Metadata)
}

func TestDecode_ChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, map[string]*tensor.Tensor{"w": tensor.Ones(tensor.Shape{4})}, nil))

	b := buf.Bytes()
	b[len(b)-1] ^= 0xff // corrupt the last data byte

	_, err := Decode(bytes.NewReader(b), ReaderOptions{})
	assert.True(t, errors.Is(err, ErrChecksumMismatch))

	_, err = Decode(bytes.NewReader(b), ReaderOptions{SkipChecksumValidation: true})
	assert.NoError(t, err)
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]any
		data   []byte
		want   error
	}{
		{
			name:   "unsupported dtype",
			header: map[string]any{"w": TensorHeader{DType: "I8", Shape: []int64{2}, DataOffsets: [2]int64{0, 2}}},
			data:   make([]byte, 2),
			want:   ErrUnsupportedDType,
		},
		{
			name:   "size does not match shape",
			header: map[string]any{"w": TensorHeader{DType: DTypeF32, Shape: []int64{3}, DataOffsets: [2]int64{0, 8}}},
			data:   make([]byte, 8),
			want:   ErrInvalidHeader,
		},
		{
			name:   "out of bounds",
			header: map[string]any{"w": TensorHeader{DType: DTypeF64, Shape: []int64{2}, DataOffsets: [2]int64{0, 16}}},
			data:   make([]byte, 8),
			want:   ErrOutOfBounds,
		},
		{
			name: "overlap",
			header: map[string]any{
				"a": TensorHeader{DType: DTypeF32, Shape: []int64{2}, DataOffsets: [2]int64{0, 8}},
				"b": TensorHeader{DType: DTypeF32, Shape: []int64{2}, DataOffsets: [2]int64{4, 12}},
			},
			data: make([]byte, 12),
			want: ErrOffsetOverlap,
		},
		{
			name:   "path-like name",
			header: map[string]any{"../w": TensorHeader{DType: DTypeF32, Shape: []int64{1}, DataOffsets: [2]int64{0, 4}}},
			data:   make([]byte, 4),
			want:   ErrInvalidTensorName,
		},
		{
			name:   "malformed entry",
			header: map[string]any{"w": "not a tensor"},
			want:   ErrInvalidHeader,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(bytes.NewReader(rawFile(t, tt.header, tt.data)), ReaderOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestDecode_HeaderTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint64(MaxHeaderSize+1)))

	_, err := Decode(&buf, ReaderOptions{})
	assert.ErrorIs(t, err, ErrHeaderTooLarge)

	_, err = Decode(bytes.NewReader([]byte{1, 2}), ReaderOptions{})
	assert.Error(t, err)
}

func TestReadSafeTensors_MissingFile(t *testing.T) {
	_, err := ReadSafeTensors(filepath.Join(t.TempDir(), "missing.safetensors"))
	assert.Error(t, err)
}
