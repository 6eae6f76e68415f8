package chat

import "context"

// Selector names the backend a turn is sent to.
type Selector string

const (
	Gemini   Selector = "Gemini"
	Mistral  Selector = "Mistral"
	Deepseek Selector = "Deepseek"
	Claude   Selector = "Claude"

	DefaultSelector = Gemini
)

// UnsupportedReply is recorded as the reply when the selector matches no backend.
const UnsupportedReply = "Model not supported."

// Dispatcher sends a prompt to the backend named by selector. supported is
// false, with no call made, when no backend has that name.
type Dispatcher interface {
	Dispatch(ctx context.Context, selector, prompt string) (reply string, supported bool, err error)
}

// TurnResult is the conversation state after a completed turn.
type TurnResult struct {
	History   History
	Log       string
	Reply     string
	Supported bool
}

// HandleTurn runs one exchange: dispatch, append, render. Adapter failures
// are returned as is and leave history unchanged.
func HandleTurn(ctx context.Context, message string, sel Selector, history History, d Dispatcher) (*TurnResult, error) {
	if history == nil {
		history = History{}
	}

	reply, supported, err := d.Dispatch(ctx, string(sel), message)
	if err != nil {
		return nil, err
	}
	if !supported {
		reply = UnsupportedReply
	}

	history = history.Append(Turn{UserMessage: message, BotReply: reply})
	return &TurnResult{
		History:   history,
		Log:       Render(history),
		Reply:     reply,
		Supported: supported,
	}, nil
}
