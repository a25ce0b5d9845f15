package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/session"
)

// BedrockClient is a client for the Anthropic models on AWS Bedrock.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

// NewBedrockClient creates a new BedrockClient. It requires AWS credentials
// to be configured in the environment.
func NewBedrockClient(ctx context.Context, modelID string) (*BedrockClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load AWS config")
	}

	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

// Generate sends the conversation to the Anthropic model via AWS Bedrock.
func (b *BedrockClient) Generate(ctx context.Context, req *Request) (*Reply, error) {
	requestBody, err := createBedrockRequest(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create Bedrock request")
	}

	resp, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to invoke Bedrock model")
	}

	reply, err := processBedrockResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	if req.OnText != nil && reply.Text != "" {
		req.OnText(reply.Text)
	}
	return reply, nil
}

// createBedrockRequest builds the Anthropic-on-Bedrock request body. The
// native Bedrock API takes raw JSON, so the message shapes are plain maps.
func createBedrockRequest(req *Request) ([]byte, error) {
	var messages []map[string]any
	for _, turn := range normalizeHistory(req.History) {
		switch {
		case turn.role == session.RoleModel:
			var content []map[string]any
			if turn.text != "" {
				content = append(content, map[string]any{
					"type": "text",
					"text": turn.text,
				})
			}
			for _, fc := range turn.calls {
				content = append(content, map[string]any{
					"type":  "tool_use",
					"id":    fc.ID,
					"name":  fc.Name,
					"input": fc.Args,
				})
			}
			if len(content) == 0 {
				continue
			}
			messages = append(messages, map[string]any{
				"role":    "assistant",
				"content": content,
			})
		case len(turn.responses) > 0:
			var content []map[string]any
			for _, tr := range turn.responses {
				content = append(content, map[string]any{
					"type":        "tool_result",
					"tool_use_id": tr.id,
					"content":     tr.content,
				})
			}
			messages = append(messages, map[string]any{
				"role":    "user",
				"content": content,
			})
		default:
			messages = append(messages, map[string]any{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": turn.text},
				},
			})
		}
	}

	request := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        4096,
		"messages":          messages,
	}
	if req.SystemInstruction != "" {
		request["system"] = req.SystemInstruction
	}
	if len(req.Tools) > 0 {
		var declared []map[string]any
		for _, d := range req.Tools {
			declared = append(declared, map[string]any{
				"name":         d.Name,
				"description":  d.Description,
				"input_schema": schemaMap(d.Parameters),
			})
		}
		request["tools"] = declared
	}

	return json.Marshal(request)
}

// processBedrockResponse converts a raw Bedrock response body into a Reply.
func processBedrockResponse(body []byte) (*Reply, error) {
	var response map[string]any
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal Bedrock response")
	}

	if errMsg, ok := response["error"]; ok {
		return nil, errors.New("Bedrock API error: %v", errMsg)
	}

	content, ok := response["content"]
	if !ok {
		return &Reply{}, nil
	}
	contentArray, ok := content.([]any)
	if !ok {
		return nil, errors.New("unexpected content format in Bedrock response")
	}

	reply := &Reply{}
	callCounter := 0
	for _, item := range contentArray {
		itemMap, ok := item.(map[string]any)
		if !ok {
			continue
		}
		itemType, ok := itemMap["type"].(string)
		if !ok {
			continue
		}

		switch itemType {
		case "text":
			if text, ok := itemMap["text"].(string); ok {
				reply.Text += text
			}
		case "tool_use":
			name, ok := itemMap["name"].(string)
			if !ok {
				continue
			}
			input, ok := itemMap["input"].(map[string]any)
			if !ok {
				continue
			}
			id := fmt.Sprintf("call_%d_%s", callCounter, name)
			if toolID, ok := itemMap["id"].(string); ok {
				id = toolID
			}
			reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{
				ID:   id,
				Name: name,
				Args: input,
			})
			callCounter++
		}
	}
	return reply, nil
}
