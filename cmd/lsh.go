package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffsec/gigavector/internal/vectordb"
)

var (
	lshIndexPath string
	lshDimension int
)

var lshCmd = &cobra.Command{
	Use:   "lsh",
	Short: "Operate on a random-hyperplane LSH index",
}

func init() {
	lshCmd.PersistentFlags().StringVar(&lshIndexPath, "index", "lsh.idx", "path to the index file")
	lshCmd.PersistentFlags().IntVar(&lshDimension, "dim", 0, "vector dimension (required to load an existing index)")
	lshCmd.AddCommand(lshInsertCmd, lshSearchCmd, lshDeleteCmd)
	rootCmd.AddCommand(lshCmd)
}

func loadOrCreateLSH(path string, dim int) (*vectordb.LSHIndex, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if dim <= 0 {
			return nil, fmt.Errorf("--dim is required to create a new index")
		}
		return vectordb.NewLSH(dim, vectordb.DefaultLSHConfig(), nil)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if dim <= 0 {
		return nil, fmt.Errorf("--dim is required to load an existing index")
	}
	return vectordb.LoadLSH(f, dim)
}

func saveLSH(path string, idx *vectordb.LSHIndex) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return idx.Save(f)
}

var lshInsertCmd = &cobra.Command{
	Use:   "insert <vector-json> [metadata-json]",
	Short: "Insert a dense vector with optional metadata pairs",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(c *cobra.Command, args []string) {
		var vec []float32
		if err := json.Unmarshal([]byte(args[0]), &vec); err != nil {
			exitError("invalid vector JSON: %v", err)
			return
		}
		var meta vectordb.MetaList
		if len(args) == 2 {
			if err := json.Unmarshal([]byte(args[1]), &meta); err != nil {
				exitError("invalid metadata JSON: %v", err)
				return
			}
		}

		if lshDimension <= 0 {
			lshDimension = len(vec)
		}
		idx, err := loadOrCreateLSH(lshIndexPath, lshDimension)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		id, err := idx.Insert(vec, meta)
		if err != nil {
			exitErrorJSON(err)
			return
		}
		if err := saveLSH(lshIndexPath, idx); err != nil {
			exitErrorJSON(err)
			return
		}

		output(map[string]int{"id": id}, func(v interface{}) string {
			return fmt.Sprintf("id: %d\n", v.(map[string]int)["id"])
		})
	},
}

var (
	lshSearchK           int
	lshSearchFilterKey   string
	lshSearchFilterValue string
)

var lshSearchCmd = &cobra.Command{
	Use:   "search <query-vector-json>",
	Short: "Search for the k nearest neighbors under squared Euclidean distance",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var query []float32
		if err := json.Unmarshal([]byte(args[0]), &query); err != nil {
			exitError("invalid query JSON: %v", err)
			return
		}

		idx, err := loadOrCreateLSH(lshIndexPath, len(query))
		if err != nil {
			exitErrorJSON(err)
			return
		}

		var filter *vectordb.Filter
		if lshSearchFilterKey != "" {
			filter = &vectordb.Filter{Key: lshSearchFilterKey, Value: lshSearchFilterValue}
		}

		results, err := idx.Search(query, lshSearchK, vectordb.Metric(vectordb.MetricEuclideanSq), filter)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		output(results, func(v interface{}) string {
			s := ""
			for _, r := range v.([]vectordb.LSHResult) {
				s += fmt.Sprintf("%d\t%f\n", r.ID, r.Distance)
			}
			return s
		})
	},
}

var lshDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Soft-delete a vector",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var id int
		if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
			exitError("invalid id: %v", err)
			return
		}

		idx, err := loadOrCreateLSH(lshIndexPath, lshDimension)
		if err != nil {
			exitErrorJSON(err)
			return
		}
		if err := idx.Delete(id); err != nil {
			exitErrorJSON(err)
			return
		}
		if err := saveLSH(lshIndexPath, idx); err != nil {
			exitErrorJSON(err)
			return
		}
	},
}

func init() {
	lshSearchCmd.Flags().IntVar(&lshSearchK, "k", 10, "number of results")
	lshSearchCmd.Flags().StringVar(&lshSearchFilterKey, "filter-key", "", "optional metadata key to filter on")
	lshSearchCmd.Flags().StringVar(&lshSearchFilterValue, "filter-value", "", "required metadata value when --filter-key is set")
}
