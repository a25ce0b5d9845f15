package session

import (
	"encoding/json"

	"github.com/dksnowdon/gomini/errors"
)

// Role tags one side of the conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Part is one segment of a conversation turn. The concrete types below form a
// closed set; consuming code switches over them exhaustively.
type Part interface{ isPart() }

// TextPart is plain text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// InlineDataPart carries base64-encoded media (images, video).
type InlineDataPart struct {
	MIMEType string
	Data     string
}

func (InlineDataPart) isPart() {}

// FunctionCallPart is a tool invocation requested by the model. ID is empty
// for backends that do not issue call ids. ThoughtSignature is an opaque
// continuation token to be echoed back on the next request.
type FunctionCallPart struct {
	ID               string
	Name             string
	Args             map[string]any
	ThoughtSignature string
}

func (FunctionCallPart) isPart() {}

// FunctionResponsePart is the textual result of one function call, matched
// 1:1 with the FunctionCallPart that produced it.
type FunctionResponsePart struct {
	ID      string
	Name    string
	Content string
}

func (FunctionResponsePart) isPart() {}

// Content is a single role-tagged turn composed of one or more parts.
type Content struct {
	Role  Role
	Parts []Part
}

// The wire form mirrors the Gemini API content shape so saved sessions stay
// readable next to raw API payloads.

type wireInline struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wirePart struct {
	Text             *string       `json:"text,omitempty"`
	InlineData       *wireInline   `json:"inlineData,omitempty"`
	FunctionCall     *wireCall     `json:"functionCall,omitempty"`
	ThoughtSignature string        `json:"thoughtSignature,omitempty"`
	FunctionResponse *wireResponse `json:"functionResponse,omitempty"`
}

type wireContent struct {
	Role  Role       `json:"role"`
	Parts []wirePart `json:"parts"`
}

func (c Content) MarshalJSON() ([]byte, error) {
	w := wireContent{Role: c.Role, Parts: make([]wirePart, 0, len(c.Parts))}
	for _, p := range c.Parts {
		switch v := p.(type) {
		case TextPart:
			text := v.Text
			w.Parts = append(w.Parts, wirePart{Text: &text})
		case InlineDataPart:
			w.Parts = append(w.Parts, wirePart{InlineData: &wireInline{MIMEType: v.MIMEType, Data: v.Data}})
		case FunctionCallPart:
			w.Parts = append(w.Parts, wirePart{
				FunctionCall:     &wireCall{ID: v.ID, Name: v.Name, Args: v.Args},
				ThoughtSignature: v.ThoughtSignature,
			})
		case FunctionResponsePart:
			w.Parts = append(w.Parts, wirePart{
				FunctionResponse: &wireResponse{
					ID:   v.ID,
					Name: v.Name,
					Response: map[string]any{
						"name":    v.Name,
						"content": v.Content,
					},
				},
			})
		default:
			return nil, errors.New("unknown part type %T", p)
		}
	}
	return json.Marshal(w)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	var w wireContent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.Role = w.Role
	c.Parts = c.Parts[:0]
	for _, p := range w.Parts {
		switch {
		case p.Text != nil:
			c.Parts = append(c.Parts, TextPart{Text: *p.Text})
		case p.InlineData != nil:
			c.Parts = append(c.Parts, InlineDataPart{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data})
		case p.FunctionCall != nil:
			c.Parts = append(c.Parts, FunctionCallPart{
				ID:               p.FunctionCall.ID,
				Name:             p.FunctionCall.Name,
				Args:             p.FunctionCall.Args,
				ThoughtSignature: p.ThoughtSignature,
			})
		case p.FunctionResponse != nil:
			content, _ := p.FunctionResponse.Response["content"].(string)
			c.Parts = append(c.Parts, FunctionResponsePart{
				ID:      p.FunctionResponse.ID,
				Name:    p.FunctionResponse.Name,
				Content: content,
			})
		}
		// Unrecognized part shapes are dropped rather than failing the load.
	}
	return nil
}

// NewUserText builds a user turn holding a single text part.
func NewUserText(text string) Content {
	return Content{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewModelText builds a model turn holding a single text part.
func NewModelText(text string) Content {
	return Content{Role: RoleModel, Parts: []Part{TextPart{Text: text}}}
}
