package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IsaacEduardo/chat-umn/internal/client"
)

// chat <peer-id>: interactive session. Lines from stdin go to the peer;
// deliveries from anyone are printed as they arrive.
func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer-id>",
		Short: "Open an interactive chat with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerID := args[0]

			chatClient.OnMessage = func(_ string, msg client.Message) {
				fmt.Printf("[%s] %s\n", msg.SenderUsername, msg.Content)
			}
			chatClient.OnError = func(message, tempID string) {
				if tempID != "" {
					fmt.Printf("!! send %s failed: %s\n", tempID, message)
					return
				}
				fmt.Printf("!! %s\n", message)
			}

			chatClient.Start(cmd.Context())
			defer chatClient.Close()

			if err := waitConnected(cmd.Context()); err != nil {
				return err
			}
			chatClient.Store().SelectConversation(peerID)
			fmt.Println("connected, type to chat (/quit to exit)")

			sc := bufio.NewScanner(os.Stdin)
			for sc.Scan() {
				line := strings.TrimSpace(sc.Text())
				if line == "" {
					continue
				}
				if line == "/quit" {
					return nil
				}

				chatClient.Typing(peerID)
				if _, err := chatClient.SendMessage(peerID, line); err != nil {
					fmt.Printf("!! %v\n", err)
				}
				chatClient.StopTyping(peerID)
			}
			return sc.Err()
		},
	}
}
