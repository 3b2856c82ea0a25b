package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"ai_chat/internal/models"
)

const (
	googleEndpointFormat     = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	googleDefaultValidateURL = "https://generativelanguage.googleapis.com/v1beta/models"
	googleDefaultModel       = "gemini-pro"

	googleTopK = 40
	googleTopP = 0.95

	googleRoleUser  = "user"
	googleRoleModel = "model"
)

var googleSafetyCategories = []string{
	"HARM_CATEGORY_HARASSMENT",
	"HARM_CATEGORY_HATE_SPEECH",
	"HARM_CATEGORY_SEXUALLY_EXPLICIT",
	"HARM_CATEGORY_DANGEROUS_CONTENT",
}

const googleSafetyThreshold = "BLOCK_MEDIUM_AND_ABOVE"

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type googleSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type googleRequest struct {
	Contents         []googleContent        `json:"contents"`
	GenerationConfig googleGenerationConfig `json:"generationConfig"`
	SafetySettings   []googleSafetySetting  `json:"safetySettings,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GoogleAdapter speaks the Generative Language generateContent API. The key
// travels as the "key" query parameter.
type GoogleAdapter struct {
	endpoint
	auth   Authenticator
	safety []googleSafetySetting
}

func googleEndpointFor(model string) string {
	return fmt.Sprintf(googleEndpointFormat, model)
}

func newGoogleAdapter(p models.Provider, validateURL string, withSafety bool, t *transport) *GoogleAdapter {
	a := &GoogleAdapter{
		endpoint: endpoint{provider: p, validateURL: validateURL, http: t},
		auth:     NewQueryAPIKeyAuth("key"),
	}
	if withSafety {
		for _, category := range googleSafetyCategories {
			a.safety = append(a.safety, googleSafetySetting{Category: category, Threshold: googleSafetyThreshold})
		}
	}
	return a
}

func (a *GoogleAdapter) buildRequest(history []models.ChatTurn, message string) googleRequest {
	contents := make([]googleContent, 0, len(history)+1)
	for _, turn := range history {
		role := googleRoleUser
		if turn.Role == models.RoleAssistant {
			role = googleRoleModel
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: turn.Content}}})
	}
	contents = append(contents, googleContent{Role: googleRoleUser, Parts: []googlePart{{Text: message}}})

	return googleRequest{
		Contents: contents,
		GenerationConfig: googleGenerationConfig{
			Temperature:     defaultTemperature,
			TopK:            googleTopK,
			TopP:            googleTopP,
			MaxOutputTokens: defaultMaxTokens,
		},
		SafetySettings: a.safety,
	}
}

// Invoke sends a generateContent request
func (a *GoogleAdapter) Invoke(ctx context.Context, history []models.ChatTurn, message, credential string) (string, error) {
	if credential == "" {
		return "", missingCredential(a.name())
	}

	rep, err := a.http.do(ctx, a.name(), call{
		method:     http.MethodPost,
		url:        a.provider.Endpoint,
		body:       a.buildRequest(history, message),
		auth:       a.auth,
		credential: credential,
	})
	if err != nil {
		return "", err
	}
	if !rep.ok() {
		return "", httpStatusError(a.name(), rep)
	}

	return a.parse(rep.body)
}

// parse reads candidates[0].content.parts[0].text.
func (a *GoogleAdapter) parse(body []byte) (string, error) {
	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", parseError(a.name(), "malformed JSON body")
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", parseError(a.name(), "missing candidates[0].content.parts[0].text")
	}
	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", parseError(a.name(), "empty completion")
	}
	return text, nil
}

// Validate lists models with the key
func (a *GoogleAdapter) Validate(ctx context.Context, credential string) ValidationResult {
	return a.http.validate(ctx, a.name(), call{
		method:     http.MethodGet,
		url:        a.validateURL,
		auth:       a.auth,
		credential: credential,
	}, nil)
}

func (a *GoogleAdapter) sealed() {}
