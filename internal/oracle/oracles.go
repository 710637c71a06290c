package oracle

import (
	"context"
	"fmt"

	"github.com/ashureev/advisor/internal/advisor"
	"github.com/ashureev/advisor/internal/domain"
)

// ClassifyIntent implements advisor.IntentClassifier.
func (c *Client) ClassifyIntent(ctx context.Context, input string, history []domain.Message) (advisor.IntentResult, error) {
	var resp labelResponse
	if err := c.call(ctx, "ClassifyIntent", intentRequest{Input: input, History: wireHistory(history)}, &resp); err != nil {
		return advisor.IntentResult{}, err
	}
	return advisor.IntentResult{Label: resp.Label, Confidence: resp.Confidence}, nil
}

// ClassifyStage implements advisor.StageClassifier.
func (c *Client) ClassifyStage(ctx context.Context, req advisor.StageRequest) (string, error) {
	var resp labelResponse
	err := c.call(ctx, "ClassifyStage", stageRequest{
		Input:    req.Input,
		Artifact: req.Artifact,
		Missing:  req.Missing,
		History:  wireHistory(req.History),
	}, &resp)
	return resp.Label, err
}

// Extract implements advisor.Extractor. The raw model output is returned
// untouched; parsing belongs to the merge engine.
func (c *Client) Extract(ctx context.Context, transcript []domain.Message) (string, error) {
	var resp extractResponse
	err := c.call(ctx, "Extract", extractRequest{Transcript: wireHistory(transcript)}, &resp)
	return resp.Raw, err
}

// ClassifyRetrieval implements advisor.RetrievalClassifier.
func (c *Client) ClassifyRetrieval(ctx context.Context, input string, history []domain.Message, topic domain.Topic) (string, error) {
	var resp labelResponse
	err := c.call(ctx, "ClassifyRetrieval", retrievalRequest{Input: input, History: wireHistory(history), Topic: topic}, &resp)
	return resp.Label, err
}

// GenerateQuery implements advisor.QueryGenerator.
func (c *Client) GenerateQuery(ctx context.Context, req advisor.QueryRequest) (string, error) {
	var resp queryResponse
	err := c.call(ctx, "GenerateQuery", queryRequest{
		Input:    req.Input,
		Artifact: req.Artifact,
		History:  wireHistory(req.History),
		Kind:     req.Kind,
	}, &resp)
	return resp.Query, err
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := c.call(ctx, "Embed", embedRequest{Text: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Vector) == 0 {
		return nil, errEmptyVector
	}
	return resp.Vector, nil
}

// Respond implements advisor.Responder. When the service answers with tool
// calls they are run through tools and their results sent back, until the
// service produces a reply or MaxToolRounds is reached.
func (c *Client) Respond(ctx context.Context, req advisor.ResponseRequest, tools advisor.ToolInvoker) (string, error) {
	wire := respondRequest{
		SessionID: req.SessionID,
		Mode:      req.Mode,
		Topic:     req.Topic,
		Stage:     req.Stage,
		Input:     req.Input,
		History:   wireHistory(req.History),
		Artifact:  req.Artifact,
		Missing:   req.Missing,
		Percent:   req.Percent,
		Retrieval: req.Retrieval,
		Context:   req.Context,
	}
	if tools != nil {
		wire.Tools = tools.Tools()
	}

	for round := 0; ; round++ {
		var resp respondResponse
		if err := c.call(ctx, "Respond", wire, &resp); err != nil {
			return "", err
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Reply, nil
		}
		if tools == nil || round >= c.cfg.MaxToolRounds {
			return "", fmt.Errorf("%w (%d)", errToolRounds, c.cfg.MaxToolRounds)
		}

		for _, tc := range resp.ToolCalls {
			res := tools.Invoke(ctx, tc.Name, tc.Args)
			c.logger.Debug("Tool call", "session_id", req.SessionID, "tool", tc.Name, "success", res.Success)
			wire.ToolOutputs = append(wire.ToolOutputs, toolOutput{ID: tc.ID, Name: tc.Name, Result: res})
		}
		wire.Artifact = tools.Snapshot()
	}
}
