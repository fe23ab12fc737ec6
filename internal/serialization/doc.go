// Package serialization reads and writes state dicts in the SafeTensors
// format.
//
//	Format Structure:
//	  [8 bytes: Header Size (uint64 LE)]
//	  [Header: JSON, tensor name -> {dtype, shape, data_offsets}]
//	  [Tensor data: raw little-endian bytes]
//
// Tensors are always written as F64. F64, F32, F16 and BF16 tensors are
// read and widened to float64, so checkpoints exported by other tools can
// warm-start a layer.
//
// The writer stores a SHA-256 checksum of the data section under the
// "sha256" metadata key; the reader verifies it when present.
//
// Example usage:
//
//	if err := serialization.WriteSafeTensors("layer.safetensors", layer.StateDict(), nil); err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := serialization.ReadSafeTensors("layer.safetensors")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = layer.LoadStateDict(f.Tensors)
package serialization
