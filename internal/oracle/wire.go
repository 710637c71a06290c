package oracle

import (
	"encoding/json"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/domain"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

func newStruct() *structpb.Struct { return &structpb.Struct{} }

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := newStruct()
	if err := protojson.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func wireHistory(msgs []domain.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{Role: string(m.Role), Content: m.Content})
	}
	return out
}

type intentRequest struct {
	Input   string        `json:"input"`
	History []wireMessage `json:"history"`
}

type labelResponse struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type stageRequest struct {
	Input    string           `json:"input"`
	Artifact *domain.Artifact `json:"artifact"`
	Missing  []string         `json:"missing_fields"`
	History  []wireMessage    `json:"history"`
}

type extractRequest struct {
	Transcript []wireMessage `json:"transcript"`
}

type extractResponse struct {
	Raw string `json:"raw"`
}

type retrievalRequest struct {
	Input   string        `json:"input"`
	History []wireMessage `json:"history"`
	Topic   domain.Topic  `json:"topic"`
}

type queryRequest struct {
	Input    string               `json:"input"`
	Artifact *domain.Artifact     `json:"artifact"`
	History  []wireMessage        `json:"history"`
	Kind     domain.RetrievalKind `json:"kind"`
}

type queryResponse struct {
	Query string `json:"query"`
}

type embedRequest struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

type toolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type toolOutput struct {
	ID     string             `json:"id"`
	Name   string             `json:"name"`
	Result advisor.ToolResult `json:"result"`
}

type respondRequest struct {
	SessionID   string               `json:"session_id"`
	Mode        advisor.ResponseMode `json:"mode"`
	Topic       domain.Topic         `json:"topic"`
	Stage       domain.Stage         `json:"stage,omitempty"`
	Input       string               `json:"input"`
	History     []wireMessage        `json:"history"`
	Artifact    *domain.Artifact     `json:"artifact"`
	Missing     []string             `json:"missing_fields"`
	Percent     int                  `json:"percent_complete"`
	Retrieval   domain.RetrievalKind `json:"retrieval"`
	Context     []advisor.Snippet    `json:"context"`
	Tools       []advisor.ToolSpec   `json:"tools"`
	ToolOutputs []toolOutput         `json:"tool_outputs,omitempty"`
}

type respondResponse struct {
	Reply     string     `json:"reply"`
	ToolCalls []toolCall `json:"tool_calls"`
}
