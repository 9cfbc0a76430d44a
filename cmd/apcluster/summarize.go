package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/evaluation"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
)

func newSummarizeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <similarity-file> <exemplars-file>",
		Short: "Print a JSON summary of a clustering against its similarity matrix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			simFile, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer simFile.Close()
			sim, err := sparse.ReadSimilarity(simFile)
			if err != nil {
				return err
			}

			exFile, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer exFile.Close()
			exemplars, err := apcluster.ReadExemplars(exFile)
			if err != nil {
				return err
			}

			summary, err := evaluation.Summarize(sim, exemplars)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(a.stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
}
