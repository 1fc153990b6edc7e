package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/hubdeck/hubdeck/internal/config"
	"github.com/hubdeck/hubdeck/internal/hub"
	"github.com/hubdeck/hubdeck/internal/logger"
)

var (
	assistAgent       string
	assistList        bool
	assistNew         bool
	assistInteractive bool
	assistPlain       bool
	assistSession     string
)

var assistReplyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50"))

var assistCmd = &cobra.Command{
	Use:   "assist [text]",
	Short: "Converse with the hub's assist pipeline",
	Long: `assist sends text through the hub's assist pipeline and prints the
spoken reply. With no text it drops into a conversation loop; exit or
quit leaves it.

The conversation id from each reply is threaded into the next turn, so
follow-up questions keep their context. With --session the id persists
across invocations.

Example:
  hubdeck assist "turn off the kitchen lights"
  hubdeck assist --session morning "good morning"
  hubdeck assist -l`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAssist,
}

func init() {
	rootCmd.AddCommand(assistCmd)
	assistCmd.Flags().StringVarP(&assistAgent, "agent", "a", "", "assist pipeline id")
	assistCmd.Flags().BoolVarP(&assistList, "list", "l", false, "list available pipelines")
	assistCmd.Flags().BoolVarP(&assistNew, "new", "n", false, "start a new conversation")
	assistCmd.Flags().BoolVarP(&assistInteractive, "interactive", "i", false, "stay in the conversation loop after the first reply")
	assistCmd.Flags().BoolVarP(&assistPlain, "plain", "p", false, "bare replies for scripting")
	assistCmd.Flags().StringVarP(&assistSession, "session", "s", "", "name of a conversation persisted across invocations")
}

func runAssist(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if assistAgent != "" {
		cfg.Assist.Pipeline = assistAgent
	}
	adapter := logger.NewLogrusAdapter(logger.WithComponent(log, "assist"))
	assist := hub.NewAssist(&cfg.Hub, &cfg.Assist, adapter)

	if assistList {
		return listPipelines(ctx, assist)
	}

	convFile := conversationFile(&cfg.Assist)
	conversationID := ""
	if !assistNew {
		conversationID = loadConversation(convFile)
	}

	if len(args) > 0 {
		reply, err := assist.Converse(ctx, args[0], conversationID)
		if err != nil {
			return err
		}
		conversationID = reply.ConversationID
		saveConversation(convFile, conversationID, adapter)
		printReply(reply.Speech)
		if !assistInteractive {
			return nil
		}
	}

	return converseLoop(ctx, assist, convFile, conversationID, adapter)
}

func listPipelines(ctx context.Context, assist *hub.Assist) error {
	pipelines, err := assist.Pipelines(ctx)
	if err != nil {
		return err
	}
	for _, p := range pipelines {
		if assistPlain {
			fmt.Println(p.ID)
			continue
		}
		line := fmt.Sprintf("%s (ID: %s)", p.Name, p.ID)
		if p.Preferred {
			line += " [preferred]"
		}
		fmt.Println(line)
	}
	return nil
}

// converseLoop reads lines from stdin until EOF or an exit command,
// threading the conversation id from each reply into the next turn.
func converseLoop(ctx context.Context, assist *hub.Assist, convFile, conversationID string, log logger.Logger) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !assistPlain {
			fmt.Print("😊: ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "exit") || strings.EqualFold(text, "quit") {
			return nil
		}

		reply, err := assist.Converse(ctx, text, conversationID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		conversationID = reply.ConversationID
		saveConversation(convFile, conversationID, log)
		printReply(reply.Speech)
	}
}

// conversationFile resolves where the conversation id persists: a
// temp file derived from --session, or the configured path. Empty
// means the conversation lives only as long as the process.
func conversationFile(cfg *config.AssistConfig) string {
	if assistSession != "" {
		return filepath.Join(os.TempDir(), "hubdeck_conversation_"+assistSession+".txt")
	}
	return cfg.ConversationFile
}

func loadConversation(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveConversation(path, id string, log logger.Logger) {
	if path == "" || id == "" {
		return
	}
	if err := os.WriteFile(path, []byte(id), 0o600); err != nil {
		log.WithError(err).Debug("Cannot persist conversation id")
	}
}

func printReply(speech string) {
	if assistPlain {
		fmt.Println(speech)
		return
	}
	fmt.Println(assistReplyStyle.Render("🤖: " + speech))
}
