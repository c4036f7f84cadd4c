package sys

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func withOpenAIServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	prevURL, prevConfig := OpenAIBaseURL, GlobalConfig
	OpenAIBaseURL = server.URL
	GlobalConfig = &Config{OpenAIKey: "test-key"}
	t.Cleanup(func() {
		OpenAIBaseURL = prevURL
		GlobalConfig = prevConfig
	})
}

func TestGenerateReviewMessage(t *testing.T) {
	withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req openAIRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		prompt := req.Messages[len(req.Messages)-1].Content
		if !strings.Contains(prompt, "trop jeune") {
			t.Errorf("prompt does not carry the reviewer's reason: %q", prompt)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"**Désolé**, votre candidature est refusée."}}]}`)
	})

	text, err := GenerateReviewMessage(context.Background(), AIKindReject, "Candidature", "trop jeune")
	if err != nil {
		t.Fatalf("GenerateReviewMessage() error = %v", err)
	}
	if text != "Désolé, votre candidature est refusée." {
		t.Errorf("GenerateReviewMessage() = %q, markup should be stripped", text)
	}
}

func TestGenerateReviewMessageErrors(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		prev := GlobalConfig
		GlobalConfig = &Config{}
		defer func() { GlobalConfig = prev }()

		if _, err := GenerateReviewMessage(context.Background(), AIKindAccept, "F", ""); err == nil {
			t.Error("expected an error without an API key")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		prev := GlobalConfig
		GlobalConfig = &Config{OpenAIKey: "k"}
		defer func() { GlobalConfig = prev }()

		if _, err := GenerateReviewMessage(context.Background(), "maybe", "F", ""); err == nil {
			t.Error("expected an error for an unknown kind")
		}
	})

	t.Run("server error", func(t *testing.T) {
		withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})
		if _, err := GenerateReviewMessage(context.Background(), AIKindAccept, "F", ""); err == nil {
			t.Error("expected an error on a non-200 response")
		}
	})

	t.Run("empty answer", func(t *testing.T) {
		withOpenAIServer(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"choices":[]}`)
		})
		if _, err := GenerateReviewMessage(context.Background(), AIKindAccept, "F", ""); err == nil {
			t.Error("expected an error on an empty choice list")
		}
	})
}

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"**bold** and _italic_", "bold and italic"},
		{"#Heading\n>quote", "Heading\nquote"},
		{"`code` ~~strike~~", "code strike"},
		{"  padded  ", "padded"},
	}

	for _, tt := range tests {
		if got := StripMarkup(tt.in); got != tt.want {
			t.Errorf("StripMarkup(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
