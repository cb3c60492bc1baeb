package mlserve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
)

const (
	defaultClaudeModel     = "claude-haiku-4-5-20251001"
	defaultClaudeMaxTokens = 8192
)

// ClaudeOptions configures the Claude-backed predictor.
type ClaudeOptions struct {
	// Model is the Claude model id. Defaults to a fast classification model.
	Model string
	// Label names the field being predicted, e.g. "industry".
	Label string
	// Classes optionally restricts predictions to a fixed set of values.
	Classes []string
	// MaxTokens caps the response size.
	MaxTokens int64
}

// ClaudeClient implements Predictor using Claude as a zero-shot classifier.
// It is an alternative to a trained deployment for labels where no model has
// been trained yet; the deployment id in the request is ignored.
type ClaudeClient struct {
	messages messageCreator
	opts     ClaudeOptions
}

// messageCreator is the slice of the SDK the predictor needs.
type messageCreator interface {
	New(ctx context.Context, params sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// NewClaudeClient creates a Claude-backed predictor.
func NewClaudeClient(apiKey string, opts ClaudeOptions) *ClaudeClient {
	if opts.Model == "" {
		opts.Model = defaultClaudeModel
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultClaudeMaxTokens
	}
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &ClaudeClient{messages: &client.Messages, opts: opts}
}

// Predict classifies each row by prompting Claude with the field values and
// parsing a strict JSON response.
func (c *ClaudeClient) Predict(ctx context.Context, req Request) (*Response, error) {
	if len(req.Values) == 0 {
		return &Response{}, nil
	}

	prompt, err := buildClaudePrompt(c.opts, req)
	if err != nil {
		return nil, err
	}

	msg, err := c.messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.opts.Model),
		MaxTokens: c.opts.MaxTokens,
		System: []sdk.TextBlockParam{{
			Text: "You are a precise tabular data classifier. Respond with JSON only, no prose.",
		}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "claude: create message")
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return parseClaudeResponse(text.String(), len(req.Values))
}

func buildClaudePrompt(opts ClaudeOptions, req Request) (string, error) {
	rows := make([]map[string]string, len(req.Values))
	for i, values := range req.Values {
		if len(values) != len(req.Fields) {
			return "", eris.Errorf("claude: row %d has %d values for %d fields", i, len(values), len(req.Fields))
		}
		row := make(map[string]string, len(req.Fields))
		for j, f := range req.Fields {
			row[f] = values[j]
		}
		rows[i] = row
	}

	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", eris.Wrap(err, "claude: marshal rows")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Predict the %q value for each of the following records.\n", opts.Label)
	if len(opts.Classes) > 0 {
		fmt.Fprintf(&b, "Choose only from these values: %s.\n", strings.Join(opts.Classes, ", "))
	}
	b.WriteString("Return a JSON array with one object per record, in input order, ")
	b.WriteString(`shaped as {"value": string, "confidence": number between 0 and 1}.`)
	b.WriteString("\n\nRecords:\n")
	b.Write(rowsJSON)
	return b.String(), nil
}

type claudePrediction struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// parseClaudeResponse extracts the JSON prediction array from the response
// text, tolerating surrounding code fences.
func parseClaudeResponse(text string, wantRows int) (*Response, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, eris.Errorf("claude: no JSON array in response")
	}

	var parsed []claudePrediction
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, eris.Wrap(err, "claude: unmarshal predictions")
	}
	if len(parsed) != wantRows {
		return nil, eris.Errorf("claude: got %d predictions, expected %d", len(parsed), wantRows)
	}

	preds := make([]RowPrediction, len(parsed))
	for i, p := range parsed {
		confidence := p.Confidence
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		preds[i] = RowPrediction{Value: p.Value, Confidence: confidence}
	}
	return &Response{Predictions: preds}, nil
}
