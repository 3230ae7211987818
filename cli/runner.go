// Command execution for CLI commands.
//
// Information Hiding:
// - Settings -> sandbox -> registry -> agent wiring hidden
// - Lazy provider construction hidden behind the agent's completer
// - Journal backend selection hidden
// - Output formatting hidden

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/richinex/sandboxagent/agent"
	"github.com/richinex/sandboxagent/config"
	"github.com/richinex/sandboxagent/llm"
	"github.com/richinex/sandboxagent/logging"
	"github.com/richinex/sandboxagent/model"
	"github.com/richinex/sandboxagent/sandbox"
	"github.com/richinex/sandboxagent/server"
	"github.com/richinex/sandboxagent/storage"
	"github.com/richinex/sandboxagent/tools"
)

// Options holds CLI execution options.
type Options struct {
	// ConfigPath names a YAML settings file; empty means environment only.
	ConfigPath string
	// Provider overrides LLM_PROVIDER when set.
	Provider string
	// MaxIter overrides the per-run iteration cap when positive.
	MaxIter int
	Verbose bool
}

// DefaultOptions returns default CLI options.
func DefaultOptions() Options {
	return Options{
		ConfigPath: os.Getenv(config.EnvConfigPath),
	}
}

// Runtime is the wired application shared by every command.
type Runtime struct {
	Settings config.Settings
	Logger   *slog.Logger
	Sandbox  sandbox.Sandbox
	Registry *tools.Registry
	Provider *llm.Shared
	Agent    *agent.Agent

	closers []io.Closer
}

// LoadSettings reads settings and applies command-line overrides.
func LoadSettings(opts Options) (config.Settings, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Settings{}, err
	}

	if opts.Provider != "" {
		if err := overrideProvider(&settings, opts.Provider); err != nil {
			return config.Settings{}, err
		}
	}
	if opts.Verbose {
		settings.Log.Level = "debug"
	}
	return settings, settings.Validate()
}

func overrideProvider(settings *config.Settings, provider string) error {
	providerType, err := llm.ParseProviderType(provider)
	if err != nil {
		return fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	name := providerType.String()
	if name == settings.LLM.Provider {
		return nil
	}

	modelName, err := config.ModelFor(name)
	if err != nil {
		return err
	}
	baseURL, err := config.BaseURLFor(name)
	if err != nil {
		return err
	}
	// A missing key is reported when the provider is first used.
	apiKey, _ := config.APIKeyFor(name)

	settings.LLM.Provider = name
	settings.LLM.Model = modelName
	settings.LLM.BaseURL = baseURL
	settings.LLM.APIKey = apiKey
	return nil
}

// NewRuntime wires settings into a ready agent. logOutput receives console logs.
func NewRuntime(settings config.Settings, logOutput io.Writer) (*Runtime, error) {
	logger, logCloser, err := logging.New(logging.Options{
		Level:  settings.Log.Level,
		Format: settings.Log.Format,
		File:   settings.Log.File,
		Output: logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	sb, err := sandbox.New(settings.Sandbox.Root, settings.Sandbox.MaxFileBytes)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	registry, err := tools.WithDefaults(sb)
	if err != nil {
		logCloser.Close()
		return nil, err
	}

	shared := llm.NewShared(providerFactory(settings.LLM))

	a, err := agent.NewBuilder("sandbox-agent").
		MaxIterations(settings.Agent.MaxIterations).
		MaxIterationsLimit(settings.Agent.MaxIterationsLimit).
		Completer(sharedCompleter{shared: shared}).
		Executor(tools.NewExecutor(registry, logger)).
		Logger(logger).
		Build()
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}

	return &Runtime{
		Settings: settings,
		Logger:   logger,
		Sandbox:  sb,
		Registry: registry,
		Provider: shared,
		Agent:    a,
		closers:  []io.Closer{logCloser},
	}, nil
}

// Close releases the journal and log file.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i].Close())
	}
	return errors.Join(errs...)
}

// OpenJournal opens the configured run journal and ties it to the runtime's lifetime.
func (r *Runtime) OpenJournal(ctx context.Context) (storage.RunJournal, error) {
	journal, err := openJournal(ctx, r.Settings.Journal)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, journal)
	return journal, nil
}

func openJournal(ctx context.Context, cfg config.JournalConfig) (storage.RunJournal, error) {
	switch cfg.Backend {
	case config.JournalMemory:
		return storage.NewMemoryJournal(cfg.Capacity)
	case config.JournalSqlite:
		return storage.OpenSqlite(cfg.DSN)
	case config.JournalRedis:
		return storage.OpenRedis(ctx, cfg.DSN)
	case config.JournalNone:
		return storage.Discard{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown journal backend: %q", config.ErrConfiguration, cfg.Backend)
	}
}

func providerFactory(cfg config.LLMConfig) func() (llm.Provider, error) {
	return func() (llm.Provider, error) {
		providerType, err := llm.ParseProviderType(cfg.Provider)
		if err != nil {
			return nil, err
		}
		temperature := float32(cfg.Temperature)
		return llm.NewProvider(llm.ProviderConfig{
			Type:        providerType,
			Model:       cfg.Model,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			MaxTokens:   cfg.MaxTokens,
			Temperature: &temperature,
		})
	}
}

// sharedCompleter builds the provider on first use. Build failures are
// configuration errors and are retried on the next call.
type sharedCompleter struct {
	shared *llm.Shared
}

func (c sharedCompleter) Complete(ctx context.Context, messages []llm.ChatMessage) (string, *llm.TokenUsage, error) {
	client, err := c.shared.Client()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", config.ErrConfiguration, err)
	}
	return client.Complete(ctx, messages)
}

// Serve runs the HTTP service until ctx is cancelled.
func Serve(ctx context.Context, opts Options) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(settings, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	journal, err := rt.OpenJournal(ctx)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	metrics := server.NewMetrics()
	api, err := server.New(server.Options{
		Agent:              rt.Agent,
		Registry:           rt.Registry,
		Journal:            journal,
		Metrics:            metrics,
		Logger:             rt.Logger,
		MaxIterationsLimit: settings.Agent.MaxIterationsLimit,
	})
	if err != nil {
		return err
	}

	app, err := server.NewApp(settings.HTTP.Addr, api, metrics, settings.HTTP.ShutdownTimeout, rt.Logger)
	if err != nil {
		return err
	}

	rt.Logger.Info("starting sandbox agent",
		"provider", settings.LLM.Provider,
		"model", settings.LLM.Model,
		"sandbox", rt.Sandbox.Root(),
		"journal", settings.Journal.Backend,
	)
	return app.Run(ctx)
}

// RunTask executes a single task in-process and prints the answer to out.
func RunTask(ctx context.Context, task string, includeSteps bool, opts Options, out io.Writer) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(settings, os.Stderr)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := rt.Agent.Run(ctx, agent.Request{
		Input:         task,
		IncludeSteps:  includeSteps,
		MaxIterations: opts.MaxIter,
	})
	if includeSteps && len(result.Steps) > 0 {
		printAgentSteps(out, result.Steps)
	}
	if err != nil {
		return fmt.Errorf("task failed: %w", err)
	}

	fmt.Fprintf(out, "%s\n", result.Output)
	if opts.Verbose {
		printRunStats(out, result.Metadata)
	}
	return nil
}

// ListTools prints the registered tools.
// Tool definitions do not depend on the provider, so no API key is needed.
func ListTools(opts Options, verbose bool, out io.Writer) error {
	settings, err := LoadSettings(opts)
	if err != nil {
		return err
	}
	sb, err := sandbox.New(settings.Sandbox.Root, settings.Sandbox.MaxFileBytes)
	if err != nil {
		return err
	}
	registry, err := tools.WithDefaults(sb)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Available tools:")
	fmt.Fprintln(out)

	for _, name := range registry.Names() {
		tool, _ := registry.Get(name)
		meta := tool.Metadata()
		fmt.Fprintf(out, "  %s\n", meta.Name)
		fmt.Fprintf(out, "    %s\n", meta.Description)

		if verbose && len(meta.Parameters) > 0 {
			fmt.Fprintln(out, "    Parameters:")
			for _, param := range meta.Parameters {
				req := ""
				if param.Required {
					req = "*"
				}
				fmt.Fprintf(out, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}

const maxObservationLen = 400

func printAgentSteps(out io.Writer, steps []agent.Step) {
	fmt.Fprintln(out, "--- Steps ---")
	for i, step := range steps {
		switch step.Type {
		case model.StepTool:
			args, err := json.Marshal(step.Args)
			if err != nil {
				args = []byte("{}")
			}
			fmt.Fprintf(out, "[%d] %s %s\n", i+1, step.Name, args)
			fmt.Fprintf(out, "    Observation: %s\n", truncateString(step.Result, maxObservationLen))
		case model.StepFinal:
			fmt.Fprintf(out, "[%d] final\n", i+1)
		}
	}
	fmt.Fprintln(out, "-------------")
	fmt.Fprintln(out)
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", "\\n")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func printRunStats(out io.Writer, meta agent.Metadata) {
	fmt.Fprintf(out, "\n(%d iterations, %d model calls, %d tokens, %dms)\n",
		meta.Iterations, meta.LLMCalls, meta.TokenUsage.TotalTokens, meta.ExecutionTimeMs)
	for _, call := range meta.ToolCalls {
		status := "ok"
		if !call.Success {
			status = "failed"
		}
		fmt.Fprintf(out, "  %s: %s in %dms (%d bytes in, %d bytes out)\n",
			call.Name, status, call.DurationMs, call.InputSize, call.OutputSize)
	}
}
