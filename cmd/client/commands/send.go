package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/IsaacEduardo/chat-umn/internal/client"
	"github.com/IsaacEduardo/chat-umn/internal/protocol"
)

// send <peer-id> <message>: connect, deliver one message, wait for the ack.
func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer-id> <message>",
		Short: "Send a single message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			peerID, content := args[0], args[1]

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			chatClient.Start(ctx)
			defer chatClient.Close()

			if err := waitConnected(ctx); err != nil {
				return err
			}

			tempID, err := chatClient.SendMessage(peerID, content)
			if err != nil {
				return err
			}

			if err := waitDelivered(ctx, peerID, tempID); err != nil {
				return err
			}
			fmt.Println("sent")
			return nil
		},
	}
}

func waitConnected(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if chatClient.Store().Connected() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("could not connect: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func waitDelivered(ctx context.Context, peerID, tempID string) error {
	conversationID, err := protocol.ConversationID(userID, peerID)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		for _, m := range chatClient.Store().Messages(conversationID) {
			if m.TempID != tempID {
				continue
			}
			switch m.Status {
			case client.StatusDelivered:
				return nil
			case client.StatusFailed:
				return fmt.Errorf("message failed after retries")
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("no ack: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
