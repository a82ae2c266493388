package main

import (
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// globalOptions override the environment configuration when set.
type globalOptions struct {
	env        string
	logPath    string
	backend    string
	baseURL    string
	model      string
	timeout    time.Duration
	timeoutSet bool
	structured bool
}

func newRootCmd() *cobra.Command {
	return buildRootCmd(&globalOptions{})
}

func buildRootCmd(opts *globalOptions) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reflect",
		Short:         "A private journal that reads your entries back to you.",
		Long:          `reflect records journal entries to a local JSONL log and asks a language model for a short summary, the emotions, the thinking patterns and the themes of each one.`,
		Version:       fmt.Sprintf("v%s", version),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// An explicit --timeout 0 disables the bound.
			opts.timeoutSet = cmd.Flags().Changed("timeout")
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.env, "env", "", "Environment: development, production or test (overrides JOURNAL_ENV)")
	pf.StringVar(&opts.logPath, "log-path", "", "Path to the journal JSONL log (overrides JOURNAL_LOG_PATH)")
	pf.StringVar(&opts.backend, "backend", "", "Model backend: ollama or openai (overrides LLM_BACKEND)")
	pf.StringVar(&opts.baseURL, "base-url", "", "Model endpoint base URL (overrides LLM_BASE_URL)")
	pf.StringVar(&opts.model, "model", "", "Model name (overrides LLM_MODEL)")
	pf.DurationVar(&opts.timeout, "timeout", 0, "Per-call model timeout, 0 disables it (overrides LLM_TIMEOUT)")
	pf.BoolVar(&opts.structured, "structured", false, "Request schema-constrained JSON from the model")

	rootCmd.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newChatCmd(opts),
		newInsightsCmd(opts),
		newExportCmd(opts),
		newReindexCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of reflect",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
