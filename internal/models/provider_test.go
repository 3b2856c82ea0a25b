package models

import (
	"testing"
)

func TestProviderID_Constants(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderID
		expected string
	}{
		{"OpenAI", ProviderOpenAI, "openai"},
		{"GoogleAI", ProviderGoogleAI, "google_ai"},
		{"OpenRouter", ProviderOpenRouter, "openrouter"},
		{"Anthropic", ProviderAnthropic, "anthropic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.provider) != tt.expected {
				t.Errorf("ProviderID = %s, want %s", tt.provider, tt.expected)
			}
			parsed, ok := ParseProviderID(tt.expected)
			if !ok || parsed != tt.provider {
				t.Errorf("ParseProviderID(%q) = %s, %v", tt.expected, parsed, ok)
			}
		})
	}
}

func TestParseProviderID_Unknown(t *testing.T) {
	for _, raw := range []string{"", "OpenAI", "google", "bedrock"} {
		if _, ok := ParseProviderID(raw); ok {
			t.Errorf("ParseProviderID(%q) should not resolve", raw)
		}
	}
}

func TestSortByPriority_StableOnTies(t *testing.T) {
	providers := []Provider{
		{ID: ProviderAnthropic, Priority: 3},
		{ID: ProviderOpenRouter, Priority: 1},
		{ID: ProviderOpenAI, Priority: 0},
		{ID: ProviderGoogleAI, Priority: 1},
	}

	SortByPriority(providers)

	want := []ProviderID{ProviderOpenAI, ProviderOpenRouter, ProviderGoogleAI, ProviderAnthropic}
	for i, id := range want {
		if providers[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, providers[i].ID, id)
		}
	}
}

func TestChatTurn_Validate(t *testing.T) {
	tests := []struct {
		name    string
		turn    ChatTurn
		wantErr bool
	}{
		{"user", ChatTurn{Role: RoleUser, Content: "hi"}, false},
		{"assistant", ChatTurn{Role: RoleAssistant, Content: "hello"}, false},
		{"system", ChatTurn{Role: "system", Content: "be nice"}, true},
		{"empty", ChatTurn{Content: "x"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.turn.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateHistory_ReportsIndex(t *testing.T) {
	history := []ChatTurn{
		{Role: RoleUser, Content: "a"},
		{Role: "tool", Content: "b"},
	}
	err := ValidateHistory(history)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != `history[1]: unsupported role "tool"` {
		t.Errorf("unexpected error: %s", got)
	}
}

func TestJSONB_RoundTrip(t *testing.T) {
	in := JSONB{"openai": "OpenAI API error: 401 - bad key"}
	value, err := in.Value()
	if err != nil {
		t.Fatalf("Value() error: %v", err)
	}

	var out JSONB
	if err := out.Scan(value); err != nil {
		t.Fatalf("Scan() error: %v", err)
	}
	if out["openai"] != in["openai"] {
		t.Errorf("Scan() = %v, want %v", out, in)
	}

	var empty JSONB
	if err := empty.Scan(nil); err != nil || empty != nil {
		t.Errorf("Scan(nil) = %v, %v", empty, err)
	}
}
