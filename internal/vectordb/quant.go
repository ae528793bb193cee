package vectordb

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"
)

// Codebook is a trained quantization codec for fixed-dimension float32
// vectors: per-dimension statistics plus (for Binary+RaBitQ) a random
// orthogonal rotation, sufficient to encode, decode, and compute distances
// entirely in the quantized domain.
type Codebook struct {
	Dimension        int
	Type             QuantType
	Mode             QuantMode
	TernaryThreshold float32

	Min  []float32
	Max  []float32
	Mean []float32
	Std  []float32

	UseRaBitQ  bool
	RaBitQSeed uint64
	Rotation   [][]float32 // d×d row-major, only set when UseRaBitQ
}

// codeBytes returns the packed code length in bytes for d dimensions at the
// codebook's bit width: ceil(d * bitsPerValue / 8).
func codeBytes(d int, t QuantType) int {
	bits := d * t.bitsPerValue()
	return (bits + 7) / 8
}

// TrainCodebook runs the two-pass statistics accumulation described in
// §4.1: pass one for min/max/mean, pass two for std (clamped to a minimum
// of 1e-9 to keep later divisions well-defined). When cfg selects
// Binary+RaBitQ, a fresh random-orthogonal rotation matrix is generated from
// cfg.RaBitQSeed.
func TrainCodebook(vectors [][]float32, dimension int, cfg *QuantConfig) (*Codebook, error) {
	if cfg == nil {
		return nil, newErr(KindNullInput, "config must not be nil")
	}
	if dimension <= 0 {
		return nil, newErr(KindInvalidArgument, "dimension must be positive")
	}
	for _, v := range vectors {
		if len(v) != dimension {
			return nil, newErr(KindInvalidArgument, "vector dimension mismatch")
		}
	}

	cb := &Codebook{
		Dimension:        dimension,
		Type:             cfg.Type,
		Mode:             cfg.Mode,
		TernaryThreshold: cfg.TernaryThreshold,
		Min:              make([]float32, dimension),
		Max:              make([]float32, dimension),
		Mean:             make([]float32, dimension),
		Std:              make([]float32, dimension),
		UseRaBitQ:        cfg.Type == QuantBinary && cfg.UseRaBitQ,
		RaBitQSeed:       cfg.RaBitQSeed,
	}

	for d := 0; d < dimension; d++ {
		cb.Min[d] = math32.Inf(1)
		cb.Max[d] = math32.Inf(-1)
	}

	// Pass 1: min, max, running sum -> mean.
	n := float32(len(vectors))
	for _, v := range vectors {
		for d := 0; d < dimension; d++ {
			x := v[d]
			if x < cb.Min[d] {
				cb.Min[d] = x
			}
			if x > cb.Max[d] {
				cb.Max[d] = x
			}
			cb.Mean[d] += x
		}
	}
	if n > 0 {
		for d := range cb.Mean {
			cb.Mean[d] /= n
		}
	} else {
		for d := 0; d < dimension; d++ {
			cb.Min[d] = 0
			cb.Max[d] = 0
		}
	}

	// Pass 2: sum of squared deviations -> std.
	for _, v := range vectors {
		for d := 0; d < dimension; d++ {
			diff := v[d] - cb.Mean[d]
			cb.Std[d] += diff * diff
		}
	}
	for d := range cb.Std {
		if n > 0 {
			cb.Std[d] = math32.Sqrt(cb.Std[d] / n)
		}
		if cb.Std[d] < 1e-9 {
			cb.Std[d] = 1e-9
		}
	}

	if cb.UseRaBitQ {
		cb.Rotation = randomOrthogonal(cb.RaBitQSeed, dimension)
	}

	return cb, nil
}

// bounds returns the (lo, hi) quantization range for dimension d, per the
// codebook's mode: observed (min, max) in Asymmetric mode, or
// (mean-3std, mean+3std) in Symmetric mode.
func (cb *Codebook) bounds(d int) (lo, hi float32) {
	if cb.Mode == QuantSymmetric {
		return cb.Mean[d] - 3*cb.Std[d], cb.Mean[d] + 3*cb.Std[d]
	}
	return cb.Min[d], cb.Max[d]
}

// Encode quantizes vec into a packed code buffer per the codebook's type.
func (cb *Codebook) Encode(vec []float32) ([]byte, error) {
	if len(vec) != cb.Dimension {
		return nil, newErr(KindInvalidArgument, "vector dimension mismatch")
	}

	if cb.UseRaBitQ {
		vec = applyRotation(cb.Rotation, vec)
	}

	switch cb.Type {
	case QuantBinary:
		return cb.encodeBinary(vec), nil
	case QuantTernary:
		return cb.encodeTernary(vec), nil
	default:
		return cb.encodeScalar(vec), nil
	}
}

func (cb *Codebook) encodeBinary(vec []float32) []byte {
	out := make([]byte, codeBytes(cb.Dimension, QuantBinary))
	bs := bitset.New(uint(cb.Dimension))
	for d, v := range vec {
		if v >= 0 {
			bs.Set(uint(d))
		}
	}
	packBits(out, bs, cb.Dimension)
	return out
}

func (cb *Codebook) encodeTernary(vec []float32) []byte {
	out := make([]byte, codeBytes(cb.Dimension, QuantTernary))
	for d, v := range vec {
		thresh := cb.TernaryThreshold * cb.Std[d]
		var code byte
		switch {
		case v > thresh:
			code = 0b10
		case v < -thresh:
			code = 0b00
		default:
			code = 0b01
		}
		put2Bits(out, d, code)
	}
	return out
}

func (cb *Codebook) encodeScalar(vec []float32) []byte {
	levels := cb.Type.levels()
	out := make([]byte, codeBytes(cb.Dimension, cb.Type))
	for d, v := range vec {
		lo, hi := cb.bounds(d)
		var q int
		if hi-lo < 1e-9 {
			q = 0
		} else {
			norm := (v - lo) / (hi - lo)
			if norm < 0 {
				norm = 0
			} else if norm > 1 {
				norm = 1
			}
			q = int(norm*float32(levels-1) + 0.5)
		}
		putBits(out, d, cb.Type.bitsPerValue(), q)
	}
	return out
}

// Decode reconstructs an approximate vector from a packed code buffer.
func (cb *Codebook) Decode(codes []byte) ([]float32, error) {
	if len(codes) != codeBytes(cb.Dimension, cb.Type) {
		return nil, newErr(KindInvalidArgument, "code buffer size mismatch")
	}

	var out []float32
	switch cb.Type {
	case QuantBinary:
		out = cb.decodeBinary(codes)
	case QuantTernary:
		out = cb.decodeTernary(codes)
	default:
		out = cb.decodeScalar(codes)
	}

	if cb.UseRaBitQ {
		out = applyRotationTranspose(cb.Rotation, out)
	}
	return out, nil
}

func (cb *Codebook) decodeBinary(codes []byte) []float32 {
	out := make([]float32, cb.Dimension)
	bs := unpackBits(codes, cb.Dimension)
	for d := 0; d < cb.Dimension; d++ {
		if bs.Test(uint(d)) {
			out[d] = 1
		} else {
			out[d] = -1
		}
	}
	return out
}

func (cb *Codebook) decodeTernary(codes []byte) []float32 {
	out := make([]float32, cb.Dimension)
	for d := 0; d < cb.Dimension; d++ {
		switch get2Bits(codes, d) {
		case 0b10:
			out[d] = cb.Std[d]
		case 0b00:
			out[d] = -cb.Std[d]
		default:
			out[d] = 0
		}
	}
	return out
}

func (cb *Codebook) decodeScalar(codes []byte) []float32 {
	out := make([]float32, cb.Dimension)
	bits := cb.Type.bitsPerValue()
	levels := cb.Type.levels()
	for d := 0; d < cb.Dimension; d++ {
		lo, hi := cb.bounds(d)
		if hi-lo < 1e-9 {
			out[d] = lo
			continue
		}
		q := getBits(codes, d, bits)
		out[d] = lo + float32(q)/float32(levels-1)*(hi-lo)
	}
	return out
}

// Distance computes the asymmetric distance between a raw query vector and
// a code buffer: for Binary, a masked popcount of the XOR between the
// query's own encoding and codes; for scalar/ternary types, the squared
// Euclidean distance between query and the decoded code vector, computed
// directly from the decoded values (no per-dimension lookup table is built).
func (cb *Codebook) Distance(query []float32, codes []byte) (float32, error) {
	if len(query) != cb.Dimension {
		return 0, newErr(KindInvalidArgument, "query dimension mismatch")
	}
	if len(codes) != codeBytes(cb.Dimension, cb.Type) {
		return 0, newErr(KindInvalidArgument, "code buffer size mismatch")
	}

	if cb.Type == QuantBinary {
		qCodes, err := cb.Encode(query)
		if err != nil {
			return 0, err
		}
		return float32(maskedPopcountXOR(qCodes, codes, cb.Dimension)), nil
	}

	decoded, err := cb.Decode(codes)
	if err != nil {
		return 0, err
	}
	diff := vek32.Sub(query, decoded)
	return vek32.Dot(diff, diff), nil
}

// DistanceQQ computes the distance between two code buffers of the same
// codebook: masked XOR popcount for Binary, squared Euclidean distance
// between the two dequantized vectors otherwise.
func (cb *Codebook) DistanceQQ(a, b []byte) (float32, error) {
	if len(a) != codeBytes(cb.Dimension, cb.Type) || len(b) != codeBytes(cb.Dimension, cb.Type) {
		return 0, newErr(KindInvalidArgument, "code buffer size mismatch")
	}
	if cb.Type == QuantBinary {
		return float32(maskedPopcountXOR(a, b, cb.Dimension)), nil
	}
	da, err := cb.Decode(a)
	if err != nil {
		return 0, err
	}
	db, err := cb.Decode(b)
	if err != nil {
		return 0, err
	}
	diff := vek32.Sub(da, db)
	return vek32.Dot(diff, diff), nil
}
