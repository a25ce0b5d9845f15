package llm

import (
	"context"
	"encoding/json"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
)

// AnthropicClient is a client for the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a new AnthropicClient. It requires the
// ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context, modelName string) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}

	client := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &AnthropicClient{
		client: &client,
		model:  modelName,
	}, nil
}

// Generate sends the conversation to the Anthropic API and converts the
// response.
func (a *AnthropicClient) Generate(ctx context.Context, req *Request) (*Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: 4096,
		Messages:  convertToAnthropicMessages(req.History),
	}

	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: req.SystemInstruction},
		}
	}
	for _, t := range convertToAnthropicTools(req.Tools) {
		toolParam := t
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &toolParam})
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to send message to Anthropic")
	}

	reply := &Reply{}
	for _, content := range resp.Content {
		switch c := content.AsAny().(type) {
		case anthropic.TextBlock:
			reply.Text += c.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal(c.Input, &args); err != nil {
				return nil, errors.Wrapf(err, "failed to unmarshal tool call input")
			}
			reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{
				ID:   c.ID,
				Name: c.Name,
				Args: args,
			})
		}
	}

	if req.OnText != nil && reply.Text != "" {
		req.OnText(reply.Text)
	}
	return reply, nil
}

// convertToAnthropicMessages converts the part-based history to Anthropic's
// format: tool_use blocks on the assistant side, tool_result blocks inside a
// user message.
func convertToAnthropicMessages(history []session.Content) []anthropic.MessageParam {
	var anthropicMessages []anthropic.MessageParam

	for _, turn := range normalizeHistory(history) {
		switch {
		case turn.role == session.RoleModel:
			var contentItems []anthropic.ContentBlockParamUnion
			if turn.text != "" {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfText: &anthropic.TextBlockParam{Text: turn.text},
				})
			}
			for _, fc := range turn.calls {
				argsBytes, err := json.Marshal(fc.Args)
				if err != nil {
					log.Default.Warnf("could not marshal tool call arguments for %s: %v, skipping call in history", fc.Name, err)
					continue
				}
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						Type:  "tool_use",
						ID:    fc.ID,
						Name:  fc.Name,
						Input: argsBytes,
					}})
			}
			if len(contentItems) == 0 {
				continue
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: contentItems,
			})
		case len(turn.responses) > 0:
			var contentItems []anthropic.ContentBlockParamUnion
			for _, tr := range turn.responses {
				contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
					OfToolResult: &anthropic.ToolResultBlockParam{
						ToolUseID: tr.id,
						Content: []anthropic.ToolResultBlockParamContentUnion{{
							OfText: &anthropic.TextBlockParam{Text: tr.content},
						}},
					},
				})
			}
			anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: contentItems,
			})
		default:
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(turn.text),
			))
		}
	}
	return anthropicMessages
}

// convertToAnthropicTools converts tool declarations to Anthropic's tool
// format.
func convertToAnthropicTools(decls []tools.Declaration) []anthropic.ToolParam {
	if len(decls) == 0 {
		return nil
	}
	var anthropicTools []anthropic.ToolParam
	for _, d := range decls {
		schema := anthropic.ToolInputSchemaParam{
			Properties: map[string]any{},
		}
		if d.Parameters != nil {
			props := map[string]any{}
			for name, prop := range d.Parameters.Properties {
				props[name] = schemaMap(prop)
			}
			schema.Properties = props
			schema.Required = d.Parameters.Required
		}
		anthropicTools = append(anthropicTools, anthropic.ToolParam{
			Name:        d.Name,
			Description: anthropic.String(d.Description),
			InputSchema: schema,
		})
	}
	return anthropicTools
}
