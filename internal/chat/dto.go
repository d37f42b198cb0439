package chat

// NOTE: commands travel from transport to usecase
type SendMessageCommand struct {
	ReceiverID string
	Content    string
	TempID     string
}

type TypingCommand struct {
	ReceiverID string
	Stopped    bool
}
