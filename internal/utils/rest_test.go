package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		message string
	}{
		{
			name:    "bad request",
			code:    http.StatusBadRequest,
			message: "Message is required",
		},
		{
			name:    "unauthorized",
			code:    http.StatusUnauthorized,
			message: "Invalid or expired token",
		},
		{
			name:    "not found",
			code:    http.StatusNotFound,
			message: "API key not found",
		},
		{
			name:    "too many requests",
			code:    http.StatusTooManyRequests,
			message: "Rate limit exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			RespondWithError(w, tt.code, tt.message)

			if w.Code != tt.code {
				t.Errorf("RespondWithError() status = %d, want %d", w.Code, tt.code)
			}

			contentType := w.Header().Get("Content-Type")
			if contentType != "application/json" {
				t.Errorf("RespondWithError() Content-Type = %s, want application/json", contentType)
			}

			var response ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}

			if response.Error != tt.message {
				t.Errorf("RespondWithError() message = %s, want %s", response.Error, tt.message)
			}
		})
	}
}

func TestRespondWithJSON(t *testing.T) {
	t.Run("struct payload", func(t *testing.T) {
		w := httptest.NewRecorder()

		payload := struct {
			Reply string `json:"reply"`
		}{Reply: "Hello!"}

		if err := RespondWithJSON(w, http.StatusOK, payload); err != nil {
			t.Errorf("RespondWithJSON() error = %v, want nil", err)
		}

		if w.Code != http.StatusOK {
			t.Errorf("RespondWithJSON() status = %d, want %d", w.Code, http.StatusOK)
		}
		if body := w.Body.String(); body != "{\"reply\":\"Hello!\"}\n" {
			t.Errorf("RespondWithJSON() body = %q", body)
		}
	})

	t.Run("map payload", func(t *testing.T) {
		w := httptest.NewRecorder()

		payload := map[string]any{
			"valid": false,
			"error": "Invalid API key",
		}

		if err := RespondWithJSON(w, http.StatusCreated, payload); err != nil {
			t.Errorf("RespondWithJSON() error = %v, want nil", err)
		}

		if w.Code != http.StatusCreated {
			t.Errorf("RespondWithJSON() status = %d, want %d", w.Code, http.StatusCreated)
		}

		var response map[string]any
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if response["valid"] != false {
			t.Errorf("RespondWithJSON() valid = %v, want false", response["valid"])
		}
	})

	t.Run("unencodable payload", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := RespondWithJSON(w, http.StatusOK, map[string]any{"ch": make(chan int)})
		if err == nil {
			t.Fatal("RespondWithJSON() error = nil, want encode error")
		}
		if w.Code != http.StatusInternalServerError {
			t.Errorf("RespondWithJSON() status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Message string `json:"message"`
	}

	tests := []struct {
		name    string
		input   string
		max     int64
		want    string
		wantErr bool
	}{
		{name: "valid", input: `{"message":"hi"}`, max: 1024, want: "hi"},
		{name: "trailing whitespace", input: "{\"message\":\"hi\"}\n", max: 1024, want: "hi"},
		{name: "malformed", input: `{"message":`, max: 1024, wantErr: true},
		{name: "two values", input: `{"message":"a"}{"message":"b"}`, max: 1024, wantErr: true},
		{name: "too large", input: `{"message":"` + strings.Repeat("x", 100) + `"}`, max: 16, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.input))

			var got body
			err := DecodeJSON(w, r, tt.max, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Message != tt.want {
				t.Errorf("DecodeJSON() message = %q, want %q", got.Message, tt.want)
			}
		})
	}
}
