package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/gilchrisn/affinity-clustering-service/pkg/apcluster"
)

// app carries what every subcommand shares: streams, global flags and the
// configuration loaded before the subcommand runs.
type app struct {
	stdin  io.Reader
	stdout io.Writer

	configPath string
	logLevel   string

	config *apcluster.Config
}

func newRootCmd(stdin io.Reader, stdout io.Writer) *cobra.Command {
	a := &app{stdin: stdin, stdout: stdout}

	rootCmd := &cobra.Command{
		Use:   "apcluster",
		Short: "Affinity propagation clustering over sparse similarity matrices",
		Long: `apcluster finds exemplars among items connected by a sparse similarity
matrix. Besides clustering it can weight a document/word corpus, derive
document similarities from those weights and serve jobs over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(os.Stderr)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error or disabled")

	rootCmd.AddCommand(
		newClusterCmd(a),
		newTFIDFCmd(a),
		newSimilarityCmd(a),
		newPipelineCmd(a),
		newSummarizeCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

func (a *app) loadConfig() error {
	a.config = apcluster.NewConfig()
	if a.configPath != "" {
		if err := a.config.LoadFromFile(a.configPath); err != nil {
			return fmt.Errorf("loading config %s: %w", a.configPath, err)
		}
	}
	if a.logLevel != "" {
		a.config.Set("logging.level", a.logLevel)
	}
	return nil
}

// bindFlags makes the named flags override their configuration keys when set
// on the command line.
func (a *app) bindFlags(flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := a.config.Viper().BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// openInput opens the file named by the first argument, or stdin when there
// is none or it is "-".
func (a *app) openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(a.stdin), nil
	}
	return os.Open(args[0])
}
