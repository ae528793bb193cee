package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffsec/gigavector/internal/vectordb"
)

var quantCodebookPath string

var quantCmd = &cobra.Command{
	Use:   "quant",
	Short: "Train and apply a vector quantization codebook",
}

func init() {
	quantCmd.PersistentFlags().StringVar(&quantCodebookPath, "codebook", "codebook.bin", "path to the codebook file")
	quantCmd.AddCommand(quantTrainCmd, quantEncodeCmd, quantDistanceCmd)
	rootCmd.AddCommand(quantCmd)
}

var quantTrainType string

var quantTrainCmd = &cobra.Command{
	Use:   "train <vectors-json>",
	Short: "Train a codebook from a JSON array of vectors",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var vectors [][]float32
		if err := json.Unmarshal([]byte(args[0]), &vectors); err != nil {
			exitError("invalid vectors JSON: %v", err)
			return
		}
		if len(vectors) == 0 {
			exitError("at least one vector is required")
			return
		}

		cfg := vectordb.DefaultQuantConfig()
		switch quantTrainType {
		case "binary":
			cfg.Type = vectordb.QuantBinary
		case "ternary":
			cfg.Type = vectordb.QuantTernary
		case "2bit":
			cfg.Type = vectordb.Quant2Bit
		case "4bit":
			cfg.Type = vectordb.Quant4Bit
		case "8bit", "":
			cfg.Type = vectordb.Quant8Bit
		default:
			exitError("unknown type %q", quantTrainType)
			return
		}

		cb, err := vectordb.TrainCodebook(vectors, len(vectors[0]), cfg)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		f, err := os.Create(quantCodebookPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}
		defer f.Close()
		if err := cb.Save(f); err != nil {
			exitErrorJSON(err)
			return
		}
	},
}

var quantEncodeCmd = &cobra.Command{
	Use:   "encode <vector-json>",
	Short: "Encode a vector with the trained codebook, printed as hex",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var vec []float32
		if err := json.Unmarshal([]byte(args[0]), &vec); err != nil {
			exitError("invalid vector JSON: %v", err)
			return
		}

		cb, err := loadCodebook(quantCodebookPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		codes, err := cb.Encode(vec)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		output(codes, func(v interface{}) string {
			return fmt.Sprintf("%x\n", v.([]byte))
		})
	},
}

var quantDistanceQQ bool

var quantDistanceCmd = &cobra.Command{
	Use:   "distance <query-vector-json-or-codes-hex> <codes-hex>",
	Short: "Compute the distance between a query and an encoded code, or between two encoded codes with --qq",
	Args:  cobra.ExactArgs(2),
	Run: func(c *cobra.Command, args []string) {
		cb, err := loadCodebook(quantCodebookPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		codesB, err := hex.DecodeString(args[1])
		if err != nil {
			exitError("invalid hex codes: %v", err)
			return
		}

		var dist float32
		if quantDistanceQQ {
			codesA, err := hex.DecodeString(args[0])
			if err != nil {
				exitError("invalid hex codes: %v", err)
				return
			}
			dist, err = cb.DistanceQQ(codesA, codesB)
			if err != nil {
				exitErrorJSON(err)
				return
			}
		} else {
			var query []float32
			if err := json.Unmarshal([]byte(args[0]), &query); err != nil {
				exitError("invalid vector JSON: %v", err)
				return
			}
			dist, err = cb.Distance(query, codesB)
			if err != nil {
				exitErrorJSON(err)
				return
			}
		}

		output(dist, func(v interface{}) string {
			return fmt.Sprintf("%f\n", v.(float32))
		})
	},
}

func loadCodebook(path string) (*vectordb.Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vectordb.LoadCodebook(f)
}

func init() {
	quantTrainCmd.Flags().StringVar(&quantTrainType, "type", "8bit", "codebook type: binary|ternary|2bit|4bit|8bit")
	quantDistanceCmd.Flags().BoolVar(&quantDistanceQQ, "qq", false, "treat the first argument as hex-encoded codes and compute code-to-code distance")
}
