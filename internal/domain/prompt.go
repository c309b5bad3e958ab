package domain

// PromptRole tags a PromptMessage.
type PromptRole string

const (
	PromptRoleSystem PromptRole = "system"
	PromptRoleHuman  PromptRole = "human"
	PromptRoleAI     PromptRole = "ai"
)

// PromptMessage is one rendered entry of the conversation sent to a chat backend.
// A sequence keeps system messages first and turns in chronological order.
type PromptMessage struct {
	Role PromptRole
	Text string
}

func SystemMessage(text string) PromptMessage {
	return PromptMessage{Role: PromptRoleSystem, Text: text}
}

func HumanMessage(text string) PromptMessage {
	return PromptMessage{Role: PromptRoleHuman, Text: text}
}

func AIMessage(text string) PromptMessage {
	return PromptMessage{Role: PromptRoleAI, Text: text}
}

// CallOptions are the per-call knobs a caller may set on a backend. Model id and
// output token cap are fixed by configuration.
type CallOptions struct {
	Temperature float64
}
