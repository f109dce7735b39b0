package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vaibhaw-/auditgrep/internal/auditgen"
)

var (
	flagConfig   string
	flagOutput   string
	flagSchema   string
	flagSeed     uint64
	flagSessions int
)

var rootCmd = &cobra.Command{
	Use:   "auditgen",
	Short: "Generate synthetic MySQL Enterprise Audit logs",
	Long: "auditgen writes an audit log of interleaved user sessions for trying out auditgrep.\n" +
		"Settings come from --config (YAML); flags override them.",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flagConfig, "config", "", "generator config file (YAML)")
	f.StringVarP(&flagOutput, "output", "o", "", "output file (default stdout)")
	f.StringVar(&flagSchema, "schema", "", "record schema: legacy or new")
	f.Uint64Var(&flagSeed, "seed", 0, "random seed (0 = random)")
	f.IntVar(&flagSessions, "sessions", 0, "number of sessions")
}

func run(cmd *cobra.Command, args []string) error {
	var cfg auditgen.Config
	if flagConfig != "" {
		var err error
		cfg, err = auditgen.ReadConfig(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if flagSchema != "" {
		cfg.Schema = auditgen.Schema(flagSchema)
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = flagSeed
	}
	if flagSessions > 0 {
		cfg.Sessions = flagSessions
	}
	if flagOutput != "" {
		cfg.Output = flagOutput
	}

	var out io.Writer = cmd.OutOrStdout()
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	sum, err := auditgen.Generate(out, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d records in %d sessions (%d failed connects)\n",
		sum.Records, sum.Sessions, sum.Failed)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
