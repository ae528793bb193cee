package vectordb

import (
	"encoding/binary"
	"io"
	"math"
)

var quantMagic = [4]byte{'G', 'V', 'Q', 'T'}

const quantVersion uint32 = 1

func writeU32(w io.Writer, v uint32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeU64(w io.Writer, v uint64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func writeF32(w io.Writer, v float32) error {
	return binary.Write(w, binary.LittleEndian, math.Float32bits(v))
}

func writeF32Slice(w io.Writer, vs []float32) error {
	for _, v := range vs {
		if err := writeF32(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, err
}

func readF32(r io.Reader) (float32, error) {
	var bits uint32
	if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func readF32Slice(r io.Reader, n int) ([]float32, error) {
	out := make([]float32, n)
	for i := range out {
		v, err := readF32(r)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Save writes cb to w in the specification's quant codebook file format
// (§6): magic "GVQT", u32 version, type/mode/dimension/use_rabitq as u32,
// rabitq_seed as u64, ternary_threshold as f32, then the four per-dimension
// f32 arrays (min, max, mean, std), and — if UseRaBitQ — the D×D rotation
// matrix row-major.
func (cb *Codebook) Save(w io.Writer) error {
	if _, err := w.Write(quantMagic[:]); err != nil {
		return wrapErr(KindIoError, "write magic", err)
	}
	if err := writeU32(w, quantVersion); err != nil {
		return wrapErr(KindIoError, "write version", err)
	}
	if err := writeU32(w, uint32(cb.Type)); err != nil {
		return wrapErr(KindIoError, "write type", err)
	}
	if err := writeU32(w, uint32(cb.Mode)); err != nil {
		return wrapErr(KindIoError, "write mode", err)
	}
	if err := writeU32(w, uint32(cb.Dimension)); err != nil {
		return wrapErr(KindIoError, "write dimension", err)
	}
	useRaBitQ := uint32(0)
	if cb.UseRaBitQ {
		useRaBitQ = 1
	}
	if err := writeU32(w, useRaBitQ); err != nil {
		return wrapErr(KindIoError, "write use_rabitq", err)
	}
	if err := writeU64(w, cb.RaBitQSeed); err != nil {
		return wrapErr(KindIoError, "write rabitq_seed", err)
	}
	if err := writeF32(w, cb.TernaryThreshold); err != nil {
		return wrapErr(KindIoError, "write ternary_threshold", err)
	}

	for _, arr := range [][]float32{cb.Min, cb.Max, cb.Mean, cb.Std} {
		if err := writeF32Slice(w, arr); err != nil {
			return wrapErr(KindIoError, "write statistics array", err)
		}
	}

	if cb.UseRaBitQ {
		for _, row := range cb.Rotation {
			if err := writeF32Slice(w, row); err != nil {
				return wrapErr(KindIoError, "write rotation matrix", err)
			}
		}
	}

	return nil
}

// LoadCodebook reads a Codebook from r in the format written by Save.
func LoadCodebook(r io.Reader) (*Codebook, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, wrapErr(KindIoError, "read magic", err)
	}
	if magic != quantMagic {
		return nil, newErr(KindCorrupt, "bad magic")
	}

	version, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read version", err)
	}
	if version != quantVersion {
		return nil, newErr(KindCorrupt, "unsupported version")
	}

	typeRaw, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read type", err)
	}
	modeRaw, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read mode", err)
	}
	dimRaw, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read dimension", err)
	}
	dimension := int(dimRaw)
	if dimension <= 0 {
		return nil, newErr(KindCorrupt, "non-positive dimension")
	}

	useRaBitQRaw, err := readU32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read use_rabitq", err)
	}
	rabitqSeed, err := readU64(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read rabitq_seed", err)
	}
	ternaryThreshold, err := readF32(r)
	if err != nil {
		return nil, wrapErr(KindIoError, "read ternary_threshold", err)
	}

	cb := &Codebook{
		Dimension:        dimension,
		Type:             QuantType(typeRaw),
		Mode:             QuantMode(modeRaw),
		UseRaBitQ:        useRaBitQRaw != 0,
		RaBitQSeed:       rabitqSeed,
		TernaryThreshold: ternaryThreshold,
	}

	for _, dst := range []*[]float32{&cb.Min, &cb.Max, &cb.Mean, &cb.Std} {
		arr, err := readF32Slice(r, dimension)
		if err != nil {
			return nil, wrapErr(KindIoError, "read statistics array", err)
		}
		*dst = arr
	}

	for d := 0; d < dimension; d++ {
		if cb.Max[d] < cb.Min[d] {
			return nil, newErr(KindCorrupt, "max < min for a dimension")
		}
	}

	if cb.UseRaBitQ {
		rotation := make([][]float32, dimension)
		for i := range rotation {
			row, err := readF32Slice(r, dimension)
			if err != nil {
				return nil, wrapErr(KindIoError, "read rotation matrix", err)
			}
			rotation[i] = row
		}
		cb.Rotation = rotation
	}

	return cb, nil
}
