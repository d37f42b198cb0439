package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/IsaacEduardo/chat-umn/internal/client"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
)

var (
	serverURL string
	token     string
	userID    string

	chatClient *client.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:   "chat-umn",
		Short: "Terminal client for the chat server",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("token required (-t)")
			}
			if userID == "" {
				return fmt.Errorf("user id required (-u)")
			}

			dialer := &client.WSDialer{
				URL:   serverURL,
				Token: token,
			}
			chatClient = client.NewClient(userID, dialer, client.NewClock(), logger.Logger{})
			return nil
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "ws://127.0.0.1:8080/ws", "chat server websocket URL")
	root.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token from login")
	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "your user id")

	root.AddCommand(chatCmd(), sendCmd())
	return root.Execute()
}
