// taulechat is the CLI front end for the streaming chat core: a line-based
// chat REPL plus listing commands for models and stored conversations.
package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aaleccoder/taulechat-sub000/internal/attachment"
	"github.com/aaleccoder/taulechat-sub000/internal/config"
	"github.com/aaleccoder/taulechat-sub000/internal/conversation"
	"github.com/aaleccoder/taulechat-sub000/internal/credentials"
	"github.com/aaleccoder/taulechat-sub000/internal/logging"
	"github.com/aaleccoder/taulechat-sub000/internal/orchestrator"
	"github.com/aaleccoder/taulechat-sub000/internal/registry"
	"github.com/aaleccoder/taulechat-sub000/internal/store"
	"github.com/aaleccoder/taulechat-sub000/internal/types"
)

var (
	flagConfig string
	flagDebug  bool
	flagModel  string
	flagFiles  []string
	flagResume string
)

type app struct {
	cfg     *config.Config
	log     *zap.Logger
	gateway store.Gateway
	orch    *orchestrator.Orchestrator
	reg     *registry.Registry
	convs   *conversation.Store
	sidebar *conversation.Sidebar
}

// stderrNotifier surfaces warnings and errors on the terminal.
type stderrNotifier struct{}

func (stderrNotifier) Warn(msg string)  { fmt.Fprintf(os.Stderr, "warning: %s\n", msg) }
func (stderrNotifier) Error(msg string) { fmt.Fprintf(os.Stderr, "error: %s\n", msg) }

func newApp() (*app, error) {
	path := flagConfig
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if flagDebug {
		cfg.Logging.Debug = true
	}

	if err := logging.Initialize(cfg.DataDir, cfg.LoggingOptions()); err != nil {
		return nil, err
	}

	var zlog *zap.Logger
	if cfg.Logging.Debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	gateway, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	for _, mc := range cfg.Models {
		desc := types.ModelDescriptor{
			ID:       mc.ID,
			Name:     mc.Name,
			Provider: types.ProviderName(mc.Provider),
			Capabilities: types.ModelCapabilities{
				ImageInput:  mc.ImageInput,
				ImageOutput: mc.ImageOutput,
				Thinking:    mc.Thinking,
			},
			SupportedGenerationMethods: mc.SupportedGenerationMethods,
			ContextTokens:              mc.ContextTokens,
			MaxOutputTokens:            mc.MaxOutputTokens,
		}
		if err := reg.Register(desc); err != nil {
			zlog.Warn("skipping configured model", zap.String("id", mc.ID), zap.Error(err))
		}
	}

	convs := conversation.NewStore()
	sidebar := conversation.NewSidebar()
	encoder := attachment.NewEncoder(attachment.OSReader{}, stderrNotifier{})
	creds := credentials.NewConfigStore(cfg.Credentials)
	orch := orchestrator.New(reg, convs, sidebar, gateway, creds, encoder, stderrNotifier{})

	logging.Boot("taulechat started: db=%s debug=%v", cfg.DatabasePath, cfg.Logging.Debug)
	return &app{
		cfg:     cfg,
		log:     zlog,
		gateway: gateway,
		orch:    orch,
		reg:     reg,
		convs:   convs,
		sidebar: sidebar,
	}, nil
}

func (a *app) close() {
	if err := a.gateway.Close(); err != nil {
		a.log.Warn("closing database", zap.Error(err))
	}
	a.log.Sync()
	logging.CloseAll()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taulechat",
		Short:         "Chat with LLM backends over streaming wire protocols",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default ~/.taulechat/config.yaml)")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat REPL",
		RunE:  runChat,
	}
	chatCmd.Flags().StringVarP(&flagModel, "model", "m", "google/gemini-2.5-flash", "model id")
	chatCmd.Flags().StringSliceVarP(&flagFiles, "file", "f", nil, "attach a file to the first prompt")
	chatCmd.Flags().StringVar(&flagResume, "resume", "", "resume an existing conversation id")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "List available models",
		RunE:  runModels,
	}

	conversationsCmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"convs"},
		Short:   "List stored conversations",
		RunE:    runConversations,
	}
	conversationsCmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored conversation",
		Args:  cobra.ExactArgs(1),
		RunE:  runDeleteConversation,
	})

	root.AddCommand(chatCmd, modelsCmd, conversationsCmd)
	return root
}

func runChat(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conversationID := ""
	if flagResume != "" {
		conv, err := a.orch.OpenConversation(ctx, flagResume)
		if err != nil {
			return err
		}
		conversationID = conv.ID
		fmt.Printf("resumed %q (%d messages)\n", conv.Title, len(conv.Messages))
	}

	// Print only the bytes appended since the previous snapshot.
	var printed int
	var printedThoughts int
	a.orch.OnChunk = func(_ string, snapshot types.Message) {
		if len(snapshot.Thoughts) > printedThoughts {
			fmt.Fprint(os.Stderr, snapshot.Thoughts[printedThoughts:])
			printedThoughts = len(snapshot.Thoughts)
		}
		if len(snapshot.Content) > printed {
			fmt.Print(snapshot.Content[printed:])
			printed = len(snapshot.Content)
		}
	}

	attachments := flagFiles
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Printf("model: %s  (ctrl-d to quit)\n", flagModel)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		printed, printedThoughts = 0, 0

		handle, err := a.orch.StartStream(ctx, orchestrator.Request{
			ConversationID:  conversationID,
			Prompt:          prompt,
			ModelID:         flagModel,
			AttachmentPaths: attachments,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		attachments = nil

		outcome, streamErr := handle.Wait()
		conversationID = handle.ConversationID
		fmt.Println()
		switch outcome {
		case orchestrator.OutcomeAborted:
			fmt.Println("(cancelled)")
		case orchestrator.OutcomeFailed:
			a.log.Warn("stream failed", zap.String("stream", handle.StreamID), zap.Error(streamErr))
			if a.convs.OpenID() == "" {
				// The conversation was rolled back with the failure.
				conversationID = ""
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func runModels(_ *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	for _, m := range a.reg.List() {
		caps := []string{}
		if m.Capabilities.ImageInput {
			caps = append(caps, "image-in")
		}
		if m.Capabilities.ImageOutput {
			caps = append(caps, "image-out")
		}
		if m.Capabilities.Thinking {
			caps = append(caps, "thinking")
		}
		fmt.Printf("%-40s %-12s %s\n", m.ID, m.Provider, strings.Join(caps, ","))
	}
	return nil
}

func runConversations(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	records, err := a.gateway.GetConversations(cmd.Context())
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  %-24s %s\n", r.ID, r.ModelID, r.Title)
	}
	return nil
}

func runDeleteConversation(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	return a.gateway.DeleteConversation(cmd.Context(), args[0])
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
