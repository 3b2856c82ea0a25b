package providers

import (
	"encoding/json"

	"ai_chat/internal/models"
)

// Wire types shared by the OpenAI-compatible APIs (OpenAI, OpenRouter) and,
// for the messages array, Anthropic.

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// buildChatMessages appends message as a user turn after history. history is
// never modified.
func buildChatMessages(history []models.ChatTurn, message string) []chatMessage {
	messages := make([]chatMessage, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, chatMessage{Role: string(turn.Role), Content: turn.Content})
	}
	return append(messages, chatMessage{Role: string(models.RoleUser), Content: message})
}

func newChatCompletionRequest(model string, history []models.ChatTurn, message string) chatCompletionRequest {
	return chatCompletionRequest{
		Model:       model,
		Messages:    buildChatMessages(history, message),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
}

// parseChatCompletion reads choices[0].message.content.
func parseChatCompletion(name string, body []byte) (string, error) {
	var resp chatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(name, "malformed JSON body")
	}
	if len(resp.Choices) == 0 {
		return "", parseError(name, "missing choices[0].message.content")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", parseError(name, "empty completion")
	}
	return text, nil
}
