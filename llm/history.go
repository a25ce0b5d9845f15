package llm

import (
	"github.com/dksnowdon/gomini/session"
	"github.com/google/uuid"
)

// historyTurn is a normalized view of one conversation turn, used by the
// backends whose wire formats want flat message lists with tool-call ids
// (OpenAI, Anthropic, Bedrock).
type historyTurn struct {
	role      session.Role
	text      string
	calls     []FunctionCall
	responses []toolResponse
}

type toolResponse struct {
	id      string
	name    string
	content string
}

// normalizeHistory flattens part-based turns and guarantees every function
// call carries an id. Calls recorded without one (the Gemini wire format has
// none) get a synthesized id, and the matching response in the following
// user turn receives the same id: responses are 1:1 with the preceding
// turn's calls, in order.
func normalizeHistory(history []session.Content) []historyTurn {
	var turns []historyTurn
	var pendingIDs []string

	for _, content := range history {
		turn := historyTurn{role: content.Role}
		for _, part := range content.Parts {
			switch p := part.(type) {
			case session.TextPart:
				turn.text += p.Text
			case session.InlineDataPart:
				// Media is not forwarded to these backends.
			case session.FunctionCallPart:
				id := p.ID
				if id == "" {
					id = "call_" + uuid.NewString()
				}
				pendingIDs = append(pendingIDs, id)
				turn.calls = append(turn.calls, FunctionCall{ID: id, Name: p.Name, Args: p.Args})
			case session.FunctionResponsePart:
				id := p.ID
				if id == "" && len(pendingIDs) > 0 {
					id = pendingIDs[0]
				}
				if len(pendingIDs) > 0 {
					pendingIDs = pendingIDs[1:]
				}
				turn.responses = append(turn.responses, toolResponse{id: id, name: p.Name, content: p.Content})
			}
		}
		turns = append(turns, turn)
	}
	return turns
}
