// Package summarizer compacts large tool outputs through the LLM
// gateway so agents do not blow their context windows on raw output.
package summarizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/toolscout/toolscout/internal"
	"github.com/toolscout/toolscout/internal/config"
)

const (
	// charsPerToken is the crude serialized-length heuristic. Close
	// enough for a budget check; exact tokenization is not worth a
	// tokenizer dependency here.
	charsPerToken = 4

	// minSummaryTokens floors the summary budget so tight caller
	// budgets still produce a useful summary.
	minSummaryTokens = 500

	// summaryTemperature keeps summaries factual.
	summaryTemperature = 0.1

	// truncationMarker is appended when truncation stands in for a
	// real summary.
	truncationMarker = "\n\n[Output truncated due to length]"
)

const systemPrompt = "You summarize tool outputs for AI agents. Be concise and factual. " +
	"Preserve exact values, identifiers, counts and error messages the agent may need. " +
	"Do not add commentary or interpretation."

// ServiceConfig is the configuration for creating a summarizer
// Service.
type ServiceConfig struct {
	Gateway config.GatewayConfig
	Config  config.SummarizationConfig
}

// Service reduces oversized outputs via the gateway's chat completion
// API, falling back to plain truncation when the gateway cannot help.
type Service struct {
	client *openai.Client
	model  string
	cfg    config.SummarizationConfig
}

// NewSummarizerService creates the summarizer. Without a configured
// gateway the service still works, serving truncation only.
func NewSummarizerService(c *ServiceConfig) *Service {
	s := &Service{model: c.Config.Model, cfg: c.Config}
	if c.Gateway.Enabled() {
		clientCfg := openai.DefaultConfig(c.Gateway.APIKey)
		clientCfg.BaseURL = strings.TrimRight(c.Gateway.URL, "/") + "/v1"
		s.client = openai.NewClientWithConfig(clientCfg)
	}
	return s
}

// EstimateTokens approximates the token count of a serialized output.
func EstimateTokens(text string) int {
	return len(text) / charsPerToken
}

// SerializeOutput renders a tool output as text: strings pass
// through, everything else is compact JSON.
func SerializeOutput(output any) string {
	switch v := output.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s
		}
		return string(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(raw)
	}
}

// SummarizeIfNeeded returns the output text and whether it was
// compacted. Outputs within maxTokens pass through untouched and
// never hit the gateway. hint tells the summarizer what the caller
// cares about; toolName is only used for context in the prompt.
func (s *Service) SummarizeIfNeeded(ctx context.Context, output any, maxTokens int, hint, toolName string) (string, bool) {
	text := SerializeOutput(output)
	if maxTokens <= 0 {
		maxTokens = s.cfg.MaxTokens
	}
	if EstimateTokens(text) <= maxTokens {
		return text, false
	}
	if !s.cfg.Enabled || s.client == nil {
		return s.truncate(text, maxTokens), true
	}

	summary, err := s.summarize(ctx, text, maxTokens, hint, toolName)
	if err != nil {
		log.Printf("[WARN] summarization via gateway failed, truncating instead: %v\n", err)
		return s.truncate(text, maxTokens), true
	}
	return summary, true
}

func (s *Service) summarize(ctx context.Context, text string, maxTokens int, hint, toolName string) (string, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	// Cap the input so a pathological output cannot explode the
	// gateway request either.
	input := internal.TruncateString(text, s.cfg.MaxInputChars)

	userPrompt := fmt.Sprintf("Summarize this output of the tool %q", toolName)
	if hint != "" {
		userPrompt += fmt.Sprintf(", focusing on: %s", hint)
	}
	userPrompt += ":\n\n" + input

	// Half the caller's budget for the summary itself, floored so the
	// result stays useful.
	summaryTokens := maxTokens / 2
	if summaryTokens < minSummaryTokens {
		summaryTokens = minSummaryTokens
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		MaxTokens:   summaryTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("gateway returned an empty summary")
	}
	return resp.Choices[0].Message.Content, nil
}

// truncate cuts the text to the token budget and marks the cut.
func (s *Service) truncate(text string, maxTokens int) string {
	budget := maxTokens * charsPerToken
	if budget > len(truncationMarker) {
		budget -= len(truncationMarker)
	}
	return internal.TruncateString(text, budget) + truncationMarker
}

// Enabled reports whether gateway summarization is available.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && s.client != nil
}
