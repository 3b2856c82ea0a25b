package models

import "sort"

// ProviderID identifies one of the completion providers known to the registry.
// The values double as the provider column of the user_api_keys table.
type ProviderID string

const (
	ProviderOpenAI     ProviderID = "openai"
	ProviderGoogleAI   ProviderID = "google_ai"
	ProviderOpenRouter ProviderID = "openrouter"
	ProviderAnthropic  ProviderID = "anthropic"
)

// ProviderIDs lists every known provider in registry order.
func ProviderIDs() []ProviderID {
	return []ProviderID{ProviderOpenAI, ProviderGoogleAI, ProviderOpenRouter, ProviderAnthropic}
}

// ParseProviderID maps a raw identifier onto a known ProviderID.
func ParseProviderID(s string) (ProviderID, bool) {
	for _, id := range ProviderIDs() {
		if string(id) == s {
			return id, true
		}
	}
	return "", false
}

// Provider describes a remote completion API. Descriptors are built once at
// startup and never change afterwards.
type Provider struct {
	ID            ProviderID `json:"id"`
	Name          string     `json:"name"`
	Endpoint      string     `json:"endpoint"`
	Model         string     `json:"model"`
	Priority      int        `json:"priority"`       // lower is tried first
	CredentialKey string     `json:"credential_key"` // environment variable holding the deploy-time key
}

// PriorityRank returns the descriptor's priority
func (p Provider) PriorityRank() int {
	return p.Priority
}

// Prioritized is anything ordered by a provider priority.
type Prioritized interface {
	PriorityRank() int
}

// SortByPriority orders items ascending by priority. Ties keep their
// original relative order.
func SortByPriority[T Prioritized](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PriorityRank() < items[j].PriorityRank()
	})
}
