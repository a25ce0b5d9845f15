package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

// OpenAIClient is a client for the OpenAI Chat Completion API.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient creates a new OpenAIClient. It requires the OPENAI_API_KEY
// environment variable to be set. OPENAI_BASE_URL selects a custom endpoint.
func NewOpenAIClient(ctx context.Context, modelName string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	return &OpenAIClient{client: &c, model: modelName}, nil
}

// Generate sends the conversation to OpenAI and converts the response.
func (o *OpenAIClient) Generate(ctx context.Context, req *Request) (*Reply, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: convertToOpenAIMessages(req),
		Tools:    convertToOpenAITools(req.Tools),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to OpenAI")
	}
	if len(resp.Choices) == 0 {
		return &Reply{}, nil
	}

	choice := resp.Choices[0].Message
	reply := &Reply{Text: choice.Content}
	for _, tc := range choice.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal function call arguments from OpenAI")
		}
		reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}

	if req.OnText != nil && reply.Text != "" {
		req.OnText(reply.Text)
	}
	return reply, nil
}

// convertToOpenAIMessages converts the part-based history to OpenAI's flat
// message list: model text + tool_calls as assistant messages, each function
// response as its own tool message.
func convertToOpenAIMessages(req *Request) []openai.ChatCompletionMessageParamUnion {
	var chatMessages []openai.ChatCompletionMessageParamUnion

	if req.SystemInstruction != "" {
		chatMessages = append(chatMessages, openai.SystemMessage(req.SystemInstruction))
	}

	for _, turn := range normalizeHistory(req.History) {
		switch {
		case turn.role == session.RoleModel:
			assistantMessage := openai.ChatCompletionMessage{
				Role:    "assistant",
				Content: turn.text,
			}
			for _, fc := range turn.calls {
				argsBytes, err := json.Marshal(fc.Args)
				if err != nil {
					log.Default.Warnf("could not marshal tool call arguments for %s: %v, skipping call in history", fc.Name, err)
					continue
				}
				assistantMessage.ToolCalls = append(assistantMessage.ToolCalls, openai.ChatCompletionMessageToolCallUnion{
					ID:   fc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageFunctionToolCallFunction{
						Name:      fc.Name,
						Arguments: string(argsBytes),
					},
				})
			}
			chatMessages = append(chatMessages, assistantMessage.ToParam())
		case len(turn.responses) > 0:
			for _, tr := range turn.responses {
				chatMessages = append(chatMessages, openai.ToolMessage(tr.content, tr.id))
			}
		default:
			chatMessages = append(chatMessages, openai.UserMessage(turn.text))
		}
	}
	return chatMessages
}

// convertToOpenAITools converts tool declarations to the OpenAI tool format.
func convertToOpenAITools(decls []tools.Declaration) []openai.ChatCompletionToolUnionParam {
	if len(decls) == 0 {
		return nil
	}
	var openAITools []openai.ChatCompletionToolUnionParam
	for _, d := range decls {
		openAITools = append(openAITools, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        d.Name,
			Description: openai.String(d.Description),
			Parameters:  openai.FunctionParameters(schemaMap(d.Parameters)),
		}))
	}
	return openAITools
}

// schemaMap renders a parameter schema as a generic JSON object map, the
// shape both the OpenAI and Bedrock request bodies want.
func schemaMap(s *tools.Schema) map[string]any {
	fallback := map[string]any{"type": "object", "properties": map[string]any{}}
	if s == nil {
		return fallback
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fallback
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fallback
	}
	return m
}
