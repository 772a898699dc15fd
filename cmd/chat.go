/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bazaar-market/apiserver/client"
	"github.com/bazaar-market/apiserver/types"
	"github.com/c-bata/go-prompt"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	chatWith     string
	chatEmail    string
	chatPassword string
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with another user from the terminal",
	Long: `Opens an interactive conversation with another user. Usage:

	BAZAAR_API_URL=http://localhost:8080 BAZAAR_TOKEN=<jwt> bazaar chat --with <profile id>

Type a line to send it, /retry to resend the last failed message,
/history to reprint the conversation and /quit to leave.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		other, err := uuid.Parse(strings.TrimSpace(chatWith))
		if err != nil {
			return errors.New("--with must be a profile id")
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		api := client.New(client.Config{
			BaseURL: envOr("BAZAAR_API_URL", "http://localhost:8080"),
			Token:   os.Getenv("BAZAAR_TOKEN"),
		})
		if chatEmail != "" {
			if _, err := api.Login(ctx, chatEmail, chatPassword); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
		}
		me, err := api.Me(ctx)
		if err != nil {
			return fmt.Errorf("not signed in: %w", err)
		}
		peer, err := api.Profile(ctx, other)
		if err != nil {
			return fmt.Errorf("unknown user %s: %w", other, err)
		}

		conv := client.NewConversation(api, me.ID, other)
		if err := conv.Load(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "could not load conversation: %v\n", err)
		}
		session := &chatSession{conv: conv, self: me, peer: peer}
		session.printHistory()

		feed := api.Feed()
		feed.Since(conv.Newest())
		go func() {
			_ = feed.Run(ctx, func(event types.RowEvent) {
				if conv.Apply(event) {
					if msg, err := event.DecodeMessage(); err == nil && msg.SenderID != me.ID {
						session.printMessage(msg)
					}
				}
			})
		}()

		p := prompt.New(
			func(input string) { session.execute(ctx, input) },
			func(prompt.Document) []prompt.Suggest { return []prompt.Suggest{} },
			prompt.OptionPrefix(me.Username+"> "),
			prompt.OptionTitle("bazaar chat with "+peer.Username),
			prompt.OptionHistory([]string{}),
			prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
				return breakline && strings.TrimSpace(in) == "/quit"
			}),
		)
		p.Run()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVar(&chatWith, "with", "", "profile id of the other user")
	chatCmd.Flags().StringVar(&chatEmail, "email", "", "sign in with this email instead of BAZAAR_TOKEN")
	chatCmd.Flags().StringVar(&chatPassword, "password", "", "password for --email")
	_ = chatCmd.MarkFlagRequired("with")
}

type chatSession struct {
	conv       *client.Conversation
	self       types.Profile
	peer       types.Profile
	lastFailed string
}

func (s *chatSession) execute(ctx context.Context, input string) {
	switch strings.TrimSpace(input) {
	case "", "/quit":
		return
	case "/history":
		s.printHistory()
		return
	case "/retry":
		if s.lastFailed == "" {
			fmt.Println("nothing to retry")
			return
		}
		input = s.lastFailed
	}

	sendCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if _, err := s.conv.Send(sendCtx, input); err != nil {
		var sendErr *client.SendError
		if errors.As(err, &sendErr) {
			s.lastFailed = sendErr.Content
			fmt.Printf("! not sent (%v), type /retry to resend\n", sendErr.Err)
			return
		}
		fmt.Printf("! %v\n", err)
		return
	}
	s.lastFailed = ""
}

func (s *chatSession) printHistory() {
	state, err := s.conv.State()
	switch state {
	case client.StateFailed:
		fmt.Printf("-- could not load conversation: %v\n", err)
		return
	case client.StateLoading:
		fmt.Println("-- loading...")
		return
	}
	entries := s.conv.Messages()
	if len(entries) == 0 {
		fmt.Printf("-- no messages with %s yet\n", s.peer.Username)
		return
	}
	for _, entry := range entries {
		s.printMessage(entry.Message)
	}
}

func (s *chatSession) printMessage(msg types.Message) {
	name := s.peer.Username
	if msg.SenderID == s.self.ID {
		name = s.self.Username
	}
	fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Local().Format("15:04"), name, msg.Content)
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
