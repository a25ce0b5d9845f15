package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentWireFormat(t *testing.T) {
	turn := Content{
		Role: RoleModel,
		Parts: []Part{
			TextPart{Text: "checking"},
			FunctionCallPart{
				Name:             "read_file",
				Args:             map[string]any{"filepath": "go.mod"},
				ThoughtSignature: "sig-123",
			},
		},
	}

	data, err := json.Marshal(turn)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "model", wire["role"])

	parts := wire["parts"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "checking", parts[0].(map[string]any)["text"])

	callPart := parts[1].(map[string]any)
	call := callPart["functionCall"].(map[string]any)
	assert.Equal(t, "read_file", call["name"])
	// The signature rides next to the call, not inside it.
	assert.Equal(t, "sig-123", callPart["thoughtSignature"])

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, turn.Role, decoded.Role)
	require.Len(t, decoded.Parts, 2)
	fc := decoded.Parts[1].(FunctionCallPart)
	assert.Equal(t, "read_file", fc.Name)
	assert.Equal(t, "sig-123", fc.ThoughtSignature)
}

func TestFunctionResponseWireFormat(t *testing.T) {
	turn := Content{
		Role: RoleUser,
		Parts: []Part{
			FunctionResponsePart{Name: "list_directory", Content: "[FILE] go.mod"},
		},
	}

	data, err := json.Marshal(turn)
	require.NoError(t, err)

	var wire map[string]any
	require.NoError(t, json.Unmarshal(data, &wire))
	fr := wire["parts"].([]any)[0].(map[string]any)["functionResponse"].(map[string]any)
	assert.Equal(t, "list_directory", fr["name"])
	response := fr["response"].(map[string]any)
	assert.Equal(t, "list_directory", response["name"])
	assert.Equal(t, "[FILE] go.mod", response["content"])

	var decoded Content
	require.NoError(t, json.Unmarshal(data, &decoded))
	part := decoded.Parts[0].(FunctionResponsePart)
	assert.Equal(t, "[FILE] go.mod", part.Content)
}

func TestUnknownWirePartsDropped(t *testing.T) {
	raw := []byte(`{"role":"model","parts":[
		{"futurePartKind":{"x":1}},
		{"text":"kept"}
	]}`)

	var decoded Content
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Parts, 1)
	assert.Equal(t, "kept", decoded.Parts[0].(TextPart).Text)
}

func TestSessionSaveLoad(t *testing.T) {
	t.Chdir(t.TempDir())

	sess, err := New("roundtrip")
	require.NoError(t, err)
	sess.Model = "gemini-2.0-flash"
	sess.Persona = "coder"
	sess.Append(
		NewUserText("hi"),
		NewModelText("hello"),
	)
	require.NoError(t, err)
	require.NoError(t, sess.Save())

	loaded, err := Load("roundtrip")
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Name)
	assert.Equal(t, "gemini-2.0-flash", loaded.Model)
	assert.Equal(t, "coder", loaded.Persona)
	require.Len(t, loaded.History, 2)
	assert.Equal(t, "hi", loaded.History[0].Parts[0].(TextPart).Text)
}

func TestLoadMissingSession(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("never-saved")
	require.Error(t, err)
}

func TestClearKeepsName(t *testing.T) {
	t.Chdir(t.TempDir())
	sess, err := New("scratch")
	require.NoError(t, err)
	sess.Append(NewUserText("hi"))
	sess.Clear()
	assert.Empty(t, sess.History)
	assert.Equal(t, "scratch", sess.Name)
}
