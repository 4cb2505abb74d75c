package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"kbmcp/internal/adapter"
	"kbmcp/internal/adapter/gemini"
	"kbmcp/internal/adapter/openai"
	"kbmcp/internal/config"
	"kbmcp/internal/credentials"
	"kbmcp/internal/knowledge"
	"kbmcp/internal/logging"
	"kbmcp/internal/matcher"
	kbserver "kbmcp/internal/mcp"
	"kbmcp/internal/toolhost"
	"kbmcp/internal/usage"

	"github.com/spf13/cobra"
)

// app holds what every subcommand shares. Config is loaded lazily so that
// `config init` works without a valid file.
type app struct {
	configPath string
	logger     *logging.AppLogger
	creds      *credentials.Manager
	cfg        *config.Config

	// executable spawns `kbmcp serve` for stdio sessions; swapped in tests.
	executable func() (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{
		logger:     logging.GetDefault(),
		creds:      credentials.NewManager(),
		executable: os.Executable,
	}

	root := &cobra.Command{
		Use:           "kbmcp",
		Short:         "Knowledge base lookup over MCP",
		Long:          "kbmcp serves a question/answer knowledge base over the Model Context Protocol and answers questions with an LLM that retrieves from it.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Exported so a spawned `kbmcp serve` reads the same file.
			if a.configPath != "" {
				return os.Setenv(config.ConfigPathEnv, a.configPath)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/kbmcp/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newMatchCmd(a),
		newBenchCmd(a),
		newKBCmd(a),
		newAuthCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg
	return cfg, nil
}

func (a *app) gitSource(cfg *config.Config) knowledge.GitSource {
	return knowledge.GitSource{
		URL:    cfg.Knowledge.GitURL,
		Branch: cfg.Knowledge.GitBranch,
		Dir:    filepath.Join(config.DataDir(), "knowledge"),
		Path:   cfg.Knowledge.Path,
		Tokens: a.creds,
		Logger: a.logger,
	}
}

// loadKnowledge reads the knowledge base from override when set, otherwise
// from the configured path or git source.
func (a *app) loadKnowledge(ctx context.Context, override string) (matcher.KnowledgeBase, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}

	opts := knowledge.Options{MaxFileSize: cfg.Knowledge.MaxFileSize, Logger: a.logger}
	if override != "" {
		return knowledge.LoadWithOptions(override, opts)
	}
	if cfg.Knowledge.GitURL != "" {
		return a.gitSource(cfg).Load(ctx, cfg.Knowledge.MaxFileSize)
	}
	return knowledge.LoadWithOptions(cfg.Knowledge.Path, opts)
}

// clientFlags select the model and the server for ask and chat.
type clientFlags struct {
	provider  string
	model     string
	serverURL string
	kbPath    string
}

func (f *clientFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.provider, "provider", "p", "", "model vendor: openai or gemini (default from config)")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model name (default from config)")
	cmd.Flags().StringVar(&f.serverURL, "server-url", "", "URL of a running sse or http server; spawns `kbmcp serve` over stdio when empty")
	cmd.Flags().StringVar(&f.kbPath, "kb", "", "knowledge base path passed to the spawned server")
}

// newModel builds the adapter for provider. The key is checked here so a
// missing key fails before the server is started.
func (a *app) newModel(ctx context.Context, cfg *config.Config, provider, name string) (adapter.Model, error) {
	if name == "" {
		name = cfg.ModelName(provider)
	}

	switch provider {
	case config.ProviderOpenAI:
		key, err := a.apiKey(credentials.OpenAI)
		if err != nil {
			return nil, err
		}
		opts := []openai.Option{openai.WithAPIKey(key)}
		if cfg.Models.OpenAIBaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.Models.OpenAIBaseURL))
		}
		return openai.New(name, opts...), nil

	case config.ProviderGemini:
		key, err := a.apiKey(credentials.Gemini)
		if err != nil {
			return nil, err
		}
		return gemini.New(ctx, name, gemini.WithAPIKey(key))
	}
	return nil, fmt.Errorf("%w: unknown provider %q", config.ErrInvalidConfig, provider)
}

func (a *app) apiKey(name string) (string, error) {
	key, err := a.creds.Get(name)
	if errors.Is(err, credentials.ErrNotFound) {
		return "", fmt.Errorf("%w: %v", adapter.ErrMissingAPIKey, err)
	}
	return key, err
}

// endpoint picks how to reach the server: the URL when given, otherwise this
// binary re-executed as `kbmcp serve --transport stdio`.
func (a *app) endpoint(serverURL, kbPath string) (toolhost.Endpoint, error) {
	if serverURL != "" {
		transport := config.TransportHTTP
		if strings.HasSuffix(strings.TrimRight(serverURL, "/"), kbserver.SSEPath) {
			transport = config.TransportSSE
		}
		return toolhost.Endpoint{Transport: transport, URL: serverURL}, nil
	}

	exe, err := a.executable()
	if err != nil {
		return toolhost.Endpoint{}, fmt.Errorf("locate kbmcp executable: %w", err)
	}
	args := []string{"serve", "--transport", config.TransportStdio}
	if kbPath != "" {
		args = append(args, "--kb", kbPath)
	}
	return toolhost.Endpoint{Transport: config.TransportStdio, Command: exe, Args: args}, nil
}

// newAssistant wires model, server session and tracker. The caller closes
// the returned session.
func (a *app) newAssistant(ctx context.Context, f clientFlags) (*adapter.Assistant, *toolhost.Session, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}
	provider := f.provider
	if provider == "" {
		provider = cfg.Models.Provider
	}

	model, err := a.newModel(ctx, cfg, provider, f.model)
	if err != nil {
		return nil, nil, err
	}

	ep, err := a.endpoint(f.serverURL, f.kbPath)
	if err != nil {
		return nil, nil, err
	}
	session, err := toolhost.Connect(ctx, ep, a.logger)
	if err != nil {
		return nil, nil, err
	}

	assistant := adapter.NewAssistant(model, session,
		adapter.WithPrompts(adapter.PromptsFor(provider)),
		adapter.WithTemperature(cfg.Models.Temperature),
		adapter.WithTracker(usage.NewTracker()),
		adapter.WithLogger(a.logger),
	)
	return assistant, session, nil
}
