package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"reactagent/agent"
	"reactagent/catalog"
	"reactagent/llmgate"
	"reactagent/store"
)

const defaultConfigPath = "reactagent.yaml"

var (
	configPath    string
	aiConfigID    string
	resourceID    string
	taskID        string
	maxIterations int
	verbose       bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "reactagent",
	Short: "Tool-using agent loop for transcribed audio and video content",
	Long: `reactagent drives a language model through iterative think, act,
and observe phases. Each iteration the model analyzes the conversation,
optionally calls tools, and summarizes what the results contribute,
until it decides the question is answered.

Run without arguments to start an interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(strings.Join(args, " "))
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the known models",
	Run: func(cmd *cobra.Command, args []string) {
		for _, m := range llmgate.Models {
			tools := ""
			if m.SupportsTools {
				tools = "tools"
			}
			fmt.Printf("%-28s %-10s %8dk  %s\n", m.ID, m.Provider, m.ContextWindow/1000, tools)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file")
	rootCmd.PersistentFlags().StringVar(&aiConfigID, "ai", "default", "AI config id to use")
	rootCmd.PersistentFlags().StringVar(&resourceID, "resource", "", "active resource id")
	rootCmd.PersistentFlags().StringVar(&taskID, "task", "", "active task id")
	rootCmd.PersistentFlags().IntVar(&maxIterations, "max-iterations", 0, "iteration cap per run (0 uses the config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(askCmd, modelsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// appEngine bundles the wired components of one CLI session.
type appEngine struct {
	engine *agent.Engine
	cfg    *Config
	db     *store.SQLiteStore
}

func buildEngine() (*appEngine, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	gatewayConfigs, err := cfg.gatewayConfigs()
	if err != nil {
		return nil, err
	}
	gateway := llmgate.NewGollmGateway(gatewayConfigs, logger.Named("gateway"))

	var db *store.SQLiteStore
	if cfg.Database != "" {
		db, err = store.Open(cfg.Database, logger.Named("store"))
		if err != nil {
			return nil, err
		}
	}

	registry := catalog.NewRegistry()
	if err := registerLocalTools(registry, db, cfg.AutoConfirmTools); err != nil {
		if db != nil {
			db.Close()
		}
		return nil, err
	}

	prompts := agent.NewPromptManager()
	cfg.applyContexts(prompts)

	opts := []agent.Option{
		agent.WithCatalog(registry),
		agent.WithRunner(registry),
		agent.WithPrompts(prompts),
	}
	if db != nil {
		opts = append(opts, agent.WithStore(db))
	}
	return &appEngine{
		engine: agent.NewEngine(gateway, opts...),
		cfg:    cfg,
		db:     db,
	}, nil
}

func (a *appEngine) close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *appEngine) runOptions(conversationID string, history []agent.Message) agent.RunOptions {
	iterations := maxIterations
	if iterations <= 0 {
		iterations = a.cfg.MaxIterations
	}
	return agent.RunOptions{
		ConfigID:       aiConfigID,
		ConversationID: conversationID,
		History:        history,
		ResourceID:     resourceID,
		TaskID:         taskID,
		MaxIterations:  iterations,
	}
}

// streamPrinter renders history snapshots as an incremental stream.
type streamPrinter struct {
	lastIndex int
	printed   int
	history   []agent.Message
}

func newStreamPrinter() *streamPrinter {
	return &streamPrinter{lastIndex: -1}
}

func (p *streamPrinter) onHistory(history []agent.Message) {
	p.history = history
	if len(history) == 0 {
		return
	}
	idx := len(history) - 1
	last := history[idx]
	if idx != p.lastIndex {
		if p.lastIndex >= 0 {
			fmt.Println()
		}
		p.lastIndex = idx
		p.printed = 0
		if last.Role == llmgate.RoleTool {
			fmt.Printf("[tool %s] %s", last.ToolName, summarize(last.Content))
			p.printed = len(last.Content)
			return
		}
	}
	if last.Role != llmgate.RoleAssistant {
		return
	}
	if len(last.Content) < p.printed {
		// Final-answer substitution replaced the streamed text.
		fmt.Printf("\n%s", last.Content)
		p.printed = len(last.Content)
		return
	}
	fmt.Print(last.Content[p.printed:])
	p.printed = len(last.Content)
}

func summarize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}

func makeEvents(printer *streamPrinter) agent.Events {
	return agent.Events{
		OnHistory: printer.onHistory,
		OnPhaseChange: func(phase agent.Phase) {
			if phase != agent.PhaseIdle {
				fmt.Printf("\n--- %s ---\n", phase)
			}
		},
		OnIterationChange: func(iteration int) {
			logger.Debug("iteration", zap.Int("n", iteration))
		},
		OnLog: func(message string) {
			logger.Info(message)
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
		},
	}
}

// pendingCalls returns the confirmation-gated calls parked on the last
// assistant message, if any.
func pendingCalls(history []agent.Message) []llmgate.ToolCall {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llmgate.RoleAssistant {
			return history[i].PendingToolCalls
		}
	}
	return nil
}

func confirmCalls(calls []llmgate.ToolCall, in *bufio.Reader) bool {
	fmt.Println("\nThe model wants to run the following tools:")
	for _, call := range calls {
		fmt.Printf("  %s(%s)\n", call.Name, call.Arguments)
	}
	fmt.Print("Approve? [y/N] ")
	line, err := in.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// runTurn executes one user turn including any confirmation round
// trips, and returns the resulting history.
func runTurn(ctx context.Context, app *appEngine, conversationID string, history []agent.Message, in *bufio.Reader) ([]agent.Message, error) {
	printer := newStreamPrinter()
	printer.history = history
	events := makeEvents(printer)

	if err := app.engine.Run(ctx, app.runOptions(conversationID, history), events); err != nil {
		return history, err
	}

	for {
		calls := pendingCalls(printer.history)
		if len(calls) == 0 {
			break
		}
		if in == nil || !confirmCalls(calls, in) {
			fmt.Println("Tool calls declined.")
			break
		}
		opts := app.runOptions(conversationID, printer.history)
		if err := app.engine.ResumeAfterConfirmation(ctx, calls, opts, events); err != nil {
			return printer.history, err
		}
	}
	fmt.Println()
	return printer.history, nil
}

func runAsk(question string) error {
	app, err := buildEngine()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signalContext(app.engine)
	defer stop()

	history := []agent.Message{agent.NewUserMessage(question)}
	conversationID := uuid.New().String()
	if app.db != nil {
		_ = app.db.Save(ctx, conversationID, history[0])
	}
	_, err = runTurn(ctx, app, conversationID, history, bufio.NewReader(os.Stdin))
	return err
}

func runChat() error {
	app, err := buildEngine()
	if err != nil {
		return err
	}
	defer app.close()

	ctx, stop := signalContext(app.engine)
	defer stop()

	conversationID := uuid.New().String()
	fmt.Printf("Conversation %s. Type a question, or 'exit' to quit.\n", conversationID)

	in := bufio.NewReader(os.Stdin)
	var history []agent.Message
	for {
		fmt.Print("> ")
		line, err := in.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		userMsg := agent.NewUserMessage(line)
		history = append(history, userMsg)
		if app.db != nil {
			_ = app.db.Save(ctx, conversationID, userMsg)
		}
		history, err = runTurn(ctx, app, conversationID, history, in)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// signalContext cancels the returned context and stops the engine on
// SIGINT or SIGTERM.
func signalContext(engine *agent.Engine) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			engine.Stop()
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}
