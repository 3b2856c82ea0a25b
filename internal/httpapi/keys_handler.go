package httpapi

import (
	"errors"
	"net/http"

	"ai_chat/internal/credentials"
	"ai_chat/internal/middleware"
	"ai_chat/internal/storage"
	"ai_chat/internal/utils"
)

const maxKeyBodyBytes = 64 << 10

// KeyRequest is the body of the save and test routes
type KeyRequest struct {
	APIKey string `json:"api_key"`
}

func (d *Dependencies) handleListKeys(w http.ResponseWriter, r *http.Request) {
	if !d.requireKeyStore(w) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	keys, err := d.Keys.GetAll(r.Context(), userID)
	if err != nil {
		logger.Error("failed to list api keys", "user_id", userID, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Failed to load API keys")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"keys": keys})
}

func (d *Dependencies) handleSaveKey(w http.ResponseWriter, r *http.Request) {
	if !d.requireKeyStore(w) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	var req KeyRequest
	if err := utils.DecodeJSON(w, r, maxKeyBodyBytes, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	key, err := d.Keys.Save(r.Context(), userID, r.PathValue("provider"), req.APIKey)
	if err != nil {
		d.respondKeyError(w, err, "Failed to save API key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, key)
}

func (d *Dependencies) handleDeleteKey(w http.ResponseWriter, r *http.Request) {
	if !d.requireKeyStore(w) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	if err := d.Keys.Delete(r.Context(), userID, r.PathValue("provider")); err != nil {
		d.respondKeyError(w, err, "Failed to delete API key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (d *Dependencies) handleDeactivateKey(w http.ResponseWriter, r *http.Request) {
	if !d.requireKeyStore(w) {
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	if err := d.Keys.Deactivate(r.Context(), userID, r.PathValue("provider")); err != nil {
		d.respondKeyError(w, err, "Failed to deactivate API key")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// handleTestKey always answers 200 with {valid, error}; an invalid key is a
// result, not a request failure.
func (d *Dependencies) handleTestKey(w http.ResponseWriter, r *http.Request) {
	var req KeyRequest
	if err := utils.DecodeJSON(w, r, maxKeyBodyBytes, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	result := d.KeyTester.Test(r.Context(), r.PathValue("provider"), req.APIKey)
	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (d *Dependencies) requireKeyStore(w http.ResponseWriter) bool {
	if d.Keys == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "API key storage is not configured")
		return false
	}
	return true
}

func (d *Dependencies) respondKeyError(w http.ResponseWriter, err error, fallbackMessage string) {
	switch {
	case errors.Is(err, credentials.ErrUnknownProvider):
		utils.RespondWithError(w, http.StatusBadRequest, "Unsupported provider")
	case errors.Is(err, credentials.ErrEmptyKey):
		utils.RespondWithError(w, http.StatusBadRequest, "API key is required")
	case errors.Is(err, storage.ErrAPIKeyNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "API key not found")
	default:
		logger.Error(fallbackMessage, "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, fallbackMessage)
	}
}
