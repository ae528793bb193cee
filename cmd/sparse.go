package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diffsec/gigavector/internal/vectordb"
)

var sparseIndexPath string

var sparseCmd = &cobra.Command{
	Use:   "sparse",
	Short: "Operate on a learned-sparse inverted index",
}

func init() {
	sparseCmd.PersistentFlags().StringVar(&sparseIndexPath, "index", "sparse.idx", "path to the index file")
	sparseCmd.AddCommand(sparseInsertCmd, sparseSearchCmd, sparseDeleteCmd, sparseStatsCmd)
	rootCmd.AddCommand(sparseCmd)
}

func loadOrCreateSparse(path string) (*vectordb.LearnedSparseIndex, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return vectordb.NewLearnedSparseIndex(vectordb.DefaultSparseConfig()), nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return vectordb.LoadLearnedSparseIndex(f)
}

func saveSparse(path string, idx *vectordb.LearnedSparseIndex) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return idx.Save(f)
}

var sparseInsertCmd = &cobra.Command{
	Use:   "insert <entries-json>",
	Short: "Insert one document's (token_id, weight) entries",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var entries []vectordb.SparseEntry
		if err := json.Unmarshal([]byte(args[0]), &entries); err != nil {
			exitError("invalid entries JSON: %v", err)
			return
		}

		idx, err := loadOrCreateSparse(sparseIndexPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		docID, err := idx.Insert(entries)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		if err := saveSparse(sparseIndexPath, idx); err != nil {
			exitErrorJSON(err)
			return
		}

		output(map[string]uint64{"doc_id": docID}, func(v interface{}) string {
			return fmt.Sprintf("doc_id: %d\n", v.(map[string]uint64)["doc_id"])
		})
	},
}

var (
	sparseSearchK        int
	sparseSearchMinScore float64
)

var sparseSearchCmd = &cobra.Command{
	Use:   "search <query-entries-json>",
	Short: "Search the index for the top-k scoring documents",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var entries []vectordb.SparseEntry
		if err := json.Unmarshal([]byte(args[0]), &entries); err != nil {
			exitError("invalid query JSON: %v", err)
			return
		}

		idx, err := loadOrCreateSparse(sparseIndexPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}

		results, err := idx.SearchWithThreshold(entries, sparseSearchK, float32(sparseSearchMinScore))
		if err != nil {
			exitErrorJSON(err)
			return
		}

		output(results, func(v interface{}) string {
			s := ""
			for _, r := range v.([]vectordb.ScoredDoc) {
				s += fmt.Sprintf("%d\t%f\n", r.DocID, r.Score)
			}
			return s
		})
	},
}

var sparseDeleteCmd = &cobra.Command{
	Use:   "delete <doc-id>",
	Short: "Soft-delete a document",
	Args:  cobra.ExactArgs(1),
	Run: func(c *cobra.Command, args []string) {
		var docID uint64
		if _, err := fmt.Sscanf(args[0], "%d", &docID); err != nil {
			exitError("invalid doc_id: %v", err)
			return
		}

		idx, err := loadOrCreateSparse(sparseIndexPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}
		if err := idx.Delete(docID); err != nil {
			exitErrorJSON(err)
			return
		}
		if err := saveSparse(sparseIndexPath, idx); err != nil {
			exitErrorJSON(err)
			return
		}
	},
}

var sparseStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print index counters",
	Run: func(c *cobra.Command, args []string) {
		idx, err := loadOrCreateSparse(sparseIndexPath)
		if err != nil {
			exitErrorJSON(err)
			return
		}
		stats := idx.Stats()
		output(stats, func(v interface{}) string {
			s := v.(vectordb.SparseStats)
			return fmt.Sprintf("doc_count=%d active_docs=%d total_postings=%d non_empty_posting_lists=%d\n",
				s.DocCount, s.ActiveDocs, s.TotalPostings, s.NonEmptyPostingLists)
		})
	},
}

func init() {
	sparseSearchCmd.Flags().IntVar(&sparseSearchK, "k", 10, "number of results")
	sparseSearchCmd.Flags().Float64Var(&sparseSearchMinScore, "min-score", 0, "minimum score filter")
}
