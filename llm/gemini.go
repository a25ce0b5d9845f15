package llm

import (
	"context"
	"encoding/base64"
	"os"

	"github.com/dksnowdon/gomini/errors"
	"github.com/dksnowdon/gomini/log"
	"github.com/dksnowdon/gomini/session"
	"github.com/dksnowdon/gomini/tools"
	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a new GeminiClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiClient(ctx context.Context, modelName string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY environment variable not set")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create genai client")
	}

	return &GeminiClient{client: client, model: modelName}, nil
}

// Close releases the underlying API client.
func (g *GeminiClient) Close() error {
	return g.client.Close()
}

// Generate sends the full history to Gemini and streams the response.
func (g *GeminiClient) Generate(ctx context.Context, req *Request) (*Reply, error) {
	model := g.client.GenerativeModel(g.model)
	model.Tools = convertTools(req.Tools)
	if req.SystemInstruction != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemInstruction)},
		}
	}

	history := convertHistory(req.History)
	if len(history) == 0 {
		return nil, errors.New("empty conversation history")
	}

	cs := model.StartChat()
	cs.History = history[:len(history)-1]
	last := history[len(history)-1]

	iter := cs.SendMessageStream(ctx, last.Parts...)
	reply := &Reply{}
	for {
		resp, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to send message to Gemini")
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}
		for _, part := range resp.Candidates[0].Content.Parts {
			switch v := part.(type) {
			case genai.Text:
				reply.Text += string(v)
				if req.OnText != nil && string(v) != "" {
					req.OnText(string(v))
				}
			case genai.FunctionCall:
				reply.FunctionCalls = append(reply.FunctionCalls, FunctionCall{
					Name: v.Name,
					Args: v.Args,
				})
			default:
				log.Default.Debugf("ignoring unsupported part type %T in Gemini response", v)
			}
		}
	}

	if reply.Text == "" && len(reply.FunctionCalls) == 0 {
		return nil, errors.New("received an empty response from Gemini")
	}
	return reply, nil
}

// convertHistory converts our internal content format to Gemini's.
func convertHistory(history []session.Content) []*genai.Content {
	var contents []*genai.Content
	for _, c := range history {
		role := "user"
		if c.Role == session.RoleModel {
			role = "model"
		}
		var parts []genai.Part
		for _, part := range c.Parts {
			switch p := part.(type) {
			case session.TextPart:
				parts = append(parts, genai.Text(p.Text))
			case session.InlineDataPart:
				data, err := base64.StdEncoding.DecodeString(p.Data)
				if err != nil {
					log.Default.Warnf("skipping media part with invalid base64: %v", err)
					continue
				}
				parts = append(parts, genai.Blob{MIMEType: p.MIMEType, Data: data})
			case session.FunctionCallPart:
				parts = append(parts, genai.FunctionCall{Name: p.Name, Args: p.Args})
			case session.FunctionResponsePart:
				parts = append(parts, genai.FunctionResponse{
					Name: p.Name,
					Response: map[string]any{
						"name":    p.Name,
						"content": p.Content,
					},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// convertTools converts tool declarations to Gemini's FunctionDeclaration
// format, carrying each tool's real parameter schema.
func convertTools(decls []tools.Declaration) []*genai.Tool {
	if len(decls) == 0 {
		return nil
	}
	funcDecls := make([]*genai.FunctionDeclaration, 0, len(decls))
	for _, d := range decls {
		funcDecls = append(funcDecls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  convertSchema(d.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: funcDecls}}
}

func convertSchema(s *tools.Schema) *genai.Schema {
	if s == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	out := &genai.Schema{
		Type:        convertSchemaType(s.Type),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = convertSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = convertSchema(s.Items)
	}
	return out
}

func convertSchemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}
