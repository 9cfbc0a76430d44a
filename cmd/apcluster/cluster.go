package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
	"github.com/gilchrisn/affinity-clustering-service/pkg/similarity"
	"github.com/gilchrisn/affinity-clustering-service/pkg/sparse"
	"github.com/gilchrisn/affinity-clustering-service/pkg/tfidf"
)

var algorithmFlags = map[string]string{
	"preference-mode": "algorithm.preference_mode",
	"damping":         "algorithm.damping",
	"max-iterations":  "algorithm.max_iterations",
	"convergence":     "algorithm.convergence_iterations",
	"seed":            "algorithm.random_seed",
	"parallel":        "performance.parallel",
	"workers":         "performance.num_workers",
	"track":           "analysis.track_iterations",
	"track-file":      "analysis.output_file",
}

var tfidfFlags = map[string]string{
	"min-df":       "tfidf.min_df",
	"max-df-ratio": "tfidf.max_df_ratio",
}

var similarityFlags = map[string]string{
	"min-similarity": "similarity.min_similarity",
	"parallel":       "performance.parallel",
	"workers":        "performance.num_workers",
}

func addAlgorithmFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("preference-mode", "median", "preference statistic: median, min or spread")
	f.Float64("damping", 0.95, "damping factor in (0.5, 1)")
	f.Int("max-iterations", 3000, "maximum number of iterations")
	f.Int("convergence", 20, "consecutive unchanged iterations required to stop")
	f.Int64("seed", 0, "seed for the tie-breaking noise (default time based)")
	f.Bool("parallel", false, "update messages with several workers")
	f.Int("workers", 0, "number of workers when parallel (default NumCPU)")
	f.Bool("track", false, "write per-iteration statistics as JSON lines")
	f.String("track-file", "iterations.jsonl", "iteration statistics file")
}

func addTFIDFFlags(cmd *cobra.Command) {
	cmd.Flags().Int("min-df", 5, "drop words found in fewer documents")
	cmd.Flags().Float64("max-df-ratio", 0.1, "drop words found in a larger share of documents")
}

func addSimilarityFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("min-similarity", 0.1, "drop document pairs scoring below this")
	if cmd.Flags().Lookup("parallel") == nil {
		cmd.Flags().Bool("parallel", false, "score documents with several workers")
		cmd.Flags().Int("workers", 0, "number of workers when parallel (default NumCPU)")
	}
}

func newClusterCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cluster [similarity-file]",
		Short: "Cluster a CSC similarity matrix and print every item's exemplar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags(), algorithmFlags); err != nil {
				return err
			}
			if err := a.config.Validate(); err != nil {
				return err
			}

			in, err := a.openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			sim, err := sparse.ReadSimilarity(in)
			if err != nil {
				return err
			}

			return a.cluster(cmd, sim)
		},
	}
	addAlgorithmFlags(cmd)
	return cmd
}

func newTFIDFCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tfidf [corpus-file]",
		Short: "Weight document/word occurrences into a row-normalised CSR matrix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags(), tfidfFlags); err != nil {
				return err
			}

			in, err := a.openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			weights, err := a.weigh(in)
			if err != nil {
				return err
			}
			return sparse.WriteWeights(a.stdout, weights)
		},
	}
	addTFIDFFlags(cmd)
	return cmd
}

func newSimilarityCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similarity [weights-file]",
		Short: "Compute document inner products and print the CSC similarity matrix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bindFlags(cmd.Flags(), similarityFlags); err != nil {
				return err
			}

			in, err := a.openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			weights, err := sparse.ReadWeights(in)
			if err != nil {
				return err
			}

			sim, err := a.similarity(cmd, weights)
			if err != nil {
				return err
			}
			return sparse.WriteSimilarity(a.stdout, sim)
		},
	}
	addSimilarityFlags(cmd)
	return cmd
}

func newPipelineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline [corpus-file]",
		Short: "Weight, compare and cluster a corpus in one pass",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, keys := range []map[string]string{algorithmFlags, tfidfFlags, similarityFlags} {
				if err := a.bindFlags(cmd.Flags(), keys); err != nil {
					return err
				}
			}
			if err := a.config.Validate(); err != nil {
				return err
			}

			in, err := a.openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()

			weights, err := a.weigh(in)
			if err != nil {
				return err
			}
			sim, err := a.similarity(cmd, weights)
			if err != nil {
				return err
			}
			return a.cluster(cmd, sim)
		},
	}
	addAlgorithmFlags(cmd)
	addTFIDFFlags(cmd)
	addSimilarityFlags(cmd)
	return cmd
}

func (a *app) weigh(in io.Reader) (*sparse.Matrix, error) {
	logger := a.config.CreateLogger()

	corpus, err := tfidf.ReadCorpus(in)
	if err != nil {
		return nil, err
	}
	opts := tfidf.DefaultOptions(corpus.DocCount, a.config.MinDF(), a.config.MaxDFRatio())
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	weights, err := corpus.Weights(opts)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Int("documents", corpus.DocCount).
		Int("words", corpus.WordCount).
		Int("min_df", opts.MinDF).
		Int("max_df", opts.MaxDF).
		Int("weights", weights.NNZ()).
		Msg("Corpus weighted")
	return weights, nil
}

func (a *app) similarity(cmd *cobra.Command, weights *sparse.Matrix) (*sparse.Matrix, error) {
	opts := similarity.DefaultOptions()
	opts.MinSimilarity = a.config.MinSimilarity()
	if a.config.Parallel() {
		opts.Workers = a.config.NumWorkers()
	}
	return similarity.InnerProduct(cmd.Context(), weights, opts, a.config.CreateLogger())
}

func (a *app) cluster(cmd *cobra.Command, sim *sparse.Matrix) error {
	result, err := apcluster.Run(cmd.Context(), sim, a.config)
	if err != nil {
		return err
	}
	if !result.Converged {
		logger := a.config.CreateLogger()
		logger.Warn().
			Int("iterations", result.Iterations).
			Msg("Stopped at the iteration limit before converging")
	}
	if err := apcluster.WriteExemplars(a.stdout, result.Exemplars); err != nil {
		return fmt.Errorf("writing exemplars: %w", err)
	}
	return nil
}
