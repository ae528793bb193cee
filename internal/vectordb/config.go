package vectordb

// SparseConfig configures a LearnedSparseIndex. Defaults mirror §6 of the
// specification.
type SparseConfig struct {
	VocabSize      uint64 `yaml:"vocab_size" json:"vocab_size"`
	MaxNonzeros    uint64 `yaml:"max_nonzeros" json:"max_nonzeros"`
	UseWAND        bool   `yaml:"use_wand" json:"use_wand"`
	WANDBlockSize  uint64 `yaml:"wand_block_size" json:"wand_block_size"`
}

// DefaultSparseConfig returns the specification's default learned-sparse
// configuration.
func DefaultSparseConfig() *SparseConfig {
	return &SparseConfig{
		VocabSize:     30522,
		MaxNonzeros:   256,
		UseWAND:       true,
		WANDBlockSize: 128,
	}
}

// LSHConfig configures an LSHIndex.
type LSHConfig struct {
	NumTables    int    `yaml:"num_tables" json:"num_tables"`
	NumHashBits  int    `yaml:"num_hash_bits" json:"num_hash_bits"`
	Seed         uint64 `yaml:"seed" json:"seed"`
}

// DefaultLSHConfig returns the specification's default LSH configuration.
func DefaultLSHConfig() *LSHConfig {
	return &LSHConfig{
		NumTables:   8,
		NumHashBits: 16,
		Seed:        42,
	}
}

// NumBuckets is min(2^NumHashBits, 65536), per §3.
func (c *LSHConfig) NumBuckets() int {
	if c.NumHashBits >= 16 {
		return 65536
	}
	return 1 << uint(c.NumHashBits)
}

// QuantType selects the codebook's bit width / scheme.
type QuantType int

const (
	QuantBinary QuantType = iota
	QuantTernary
	Quant2Bit
	Quant4Bit
	Quant8Bit
)

func (t QuantType) bitsPerValue() int {
	switch t {
	case QuantBinary:
		return 1
	case QuantTernary:
		return 2
	case Quant2Bit:
		return 2
	case Quant4Bit:
		return 4
	case Quant8Bit:
		return 8
	default:
		return 8
	}
}

func (t QuantType) levels() int {
	switch t {
	case Quant2Bit:
		return 4
	case Quant4Bit:
		return 16
	case Quant8Bit:
		return 256
	default:
		return 0 // binary/ternary don't use the level ladder
	}
}

// QuantMode selects how scalar (lo, hi) bounds are derived.
type QuantMode int

const (
	// QuantAsymmetric derives (lo, hi) from the observed (min, max).
	QuantAsymmetric QuantMode = iota
	// QuantSymmetric derives (lo, hi) from (mean-3std, mean+3std).
	QuantSymmetric
)

// QuantConfig configures QuantCodec training.
type QuantConfig struct {
	Type             QuantType `yaml:"type" json:"type"`
	Mode             QuantMode `yaml:"mode" json:"mode"`
	UseRaBitQ        bool      `yaml:"use_rabitq" json:"use_rabitq"`
	RaBitQSeed       uint64    `yaml:"rabitq_seed" json:"rabitq_seed"`
	TernaryThreshold float32   `yaml:"ternary_threshold" json:"ternary_threshold"`
}

// DefaultQuantConfig returns the specification's default scalar-quant
// configuration: 8-bit, symmetric, per-dimension.
func DefaultQuantConfig() *QuantConfig {
	return &QuantConfig{
		Type:             Quant8Bit,
		Mode:             QuantSymmetric,
		UseRaBitQ:        false,
		RaBitQSeed:       42,
		TernaryThreshold: 0.5,
	}
}
