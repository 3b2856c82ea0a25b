package httpapi

import (
	"net/http"
	"strings"

	"ai_chat/internal/models"
	"ai_chat/internal/utils"
)

const maxChatBodyBytes = 1 << 20

// ChatRequest is the body of POST /v1/chat
type ChatRequest struct {
	Message string            `json:"message"`
	History []models.ChatTurn `json:"history"`
}

// ChatResponse carries the single reply of a dispatch
type ChatResponse struct {
	Reply string `json:"reply"`
}

// handleChat answers a message. Provider failures never surface here; the
// dispatcher always returns a reply.
func (d *Dependencies) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := utils.DecodeJSON(w, r, maxChatBodyBytes, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "Message is required")
		return
	}
	if err := models.ValidateHistory(req.History); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid history: "+err.Error())
		return
	}

	reply := d.Chat.GenerateResponse(r.Context(), req.Message, req.History)
	utils.RespondWithJSON(w, http.StatusOK, ChatResponse{Reply: reply})
}

// handleProviders lists providers and whether each has a key for the caller
func (d *Dependencies) handleProviders(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"providers": d.Chat.ProviderStatus(r.Context()),
	})
}
