package sys

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ===========================
// OpenAI API Types
// ===========================

const (
	MsgAINoKey        = "no OpenAI API key configured"
	MsgAIEmptyAnswer  = "model returned an empty answer"
	MsgAIStatusError  = "OpenAI API returned status %d"
	MsgAIRequestError = "OpenAI request failed: %w"

	openAIModel     = "gpt-4o-mini"
	openAIMaxChars  = 1000
	openAITimeout   = 25 * time.Second
	openAIMaxTokens = 350
)

// OpenAIBaseURL is a variable so tests can point the client at a local server.
var OpenAIBaseURL = "https://api.openai.com/v1"

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Review message kinds for AI generation.
const (
	AIKindAccept = "accept"
	AIKindReject = "reject"
)

// GenerateReviewMessage asks the model for a short accept or reject notice a
// moderator could send to a form respondent, built around the reviewer's
// free-text reason. The answer is stripped of markdown markup and clamped to
// a length Discord DMs display comfortably.
func GenerateReviewMessage(ctx context.Context, kind, formTitle, reason string) (string, error) {
	if GlobalConfig == nil || GlobalConfig.OpenAIKey == "" {
		return "", fmt.Errorf(MsgAINoKey)
	}

	var tone string
	switch kind {
	case AIKindAccept:
		tone = "warm and congratulatory"
	case AIKindReject:
		tone = "polite, encouraging and respectful"
	default:
		return "", fmt.Errorf("unknown message kind %q", kind)
	}

	prompt := fmt.Sprintf(
		"Write a %s message in French (between 50 and 200 words, plain text, no markdown, no placeholders) "+
			"telling a Discord user about the decision on their response to the form %q. "+
			"The decision is: %s. Do not invent details about the form content.",
		tone, formTitle, kind,
	)
	if reason != "" {
		prompt += fmt.Sprintf(" You must explicitly work in the reviewer's reason: %q.", reason)
	}

	payload := openAIRequest{
		Model: openAIModel,
		Messages: []openAIMessage{
			{Role: "system", Content: "You write short notification messages for a Discord forms bot."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   openAIMaxTokens,
		Temperature: 0.8,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	reqCtx, cancel := context.WithTimeout(ctx, openAITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, OpenAIBaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+GlobalConfig.OpenAIKey)

	resp, err := HttpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf(MsgAIRequestError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	if resp.StatusCode != 200 {
		return "", fmt.Errorf(MsgAIStatusError, resp.StatusCode)
	}

	var answer openAIResponse
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", err
	}
	if answer.Error != nil {
		return "", fmt.Errorf("OpenAI: %s", answer.Error.Message)
	}
	if len(answer.Choices) == 0 {
		return "", fmt.Errorf(MsgAIEmptyAnswer)
	}

	text := StripMarkup(answer.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf(MsgAIEmptyAnswer)
	}
	if len([]rune(text)) > openAIMaxChars {
		text = Truncate(text, openAIMaxChars)
	}
	return text, nil
}

var markupPattern = regexp.MustCompile("[*_~`#>]+")

// StripMarkup removes markdown control characters the model sometimes emits
// despite instructions.
func StripMarkup(s string) string {
	s = markupPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
