// Package main provides the sandboxagent CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/richinex/sandboxagent/cli"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string
	provider   string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "sandboxagent",
		Short: "LLM agent with file tools confined to a sandbox directory",
		Long: `An LLM agent that completes tasks with three file tools
(list_files, read_file, write_file) confined to one sandbox directory.

Configuration comes from environment variables, an optional .env file
and an optional YAML file (--config or SANDBOXAGENT_CONFIG).`,
		SilenceUsage: true,
	}

	defaults := cli.DefaultOptions()
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaults.ConfigPath, "Path to YAML config file")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging and run statistics")

	rootCmd.AddCommand(serveCmd(ctx))
	rootCmd.AddCommand(runCmd(ctx))
	rootCmd.AddCommand(toolsCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func options() cli.Options {
	return cli.Options{
		ConfigPath: configPath,
		Provider:   provider,
		Verbose:    verbose,
	}
}

func serveCmd(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service (POST /run)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Serve(ctx, options())
		},
	}
}

func runCmd(ctx context.Context) *cobra.Command {
	var steps bool
	var maxIter int

	cmd := &cobra.Command{
		Use:   "run [task]",
		Short: "Execute one task in-process and print the answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := options()
			opts.MaxIter = maxIter
			return cli.RunTask(ctx, args[0], steps, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&steps, "steps", false, "Print the step trace")
	cmd.Flags().IntVarP(&maxIter, "max-iter", "m", 0, "Maximum tool iterations (0 uses AGENT_MAX_ITERATIONS)")

	return cmd
}

func toolsCmd() *cobra.Command {
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListTools(options(), verboseTools, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&verboseTools, "verbose-tools", "V", false, "Show tool parameters")

	return cmd
}
