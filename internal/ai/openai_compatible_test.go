package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptMessages(t *testing.T) {
	msgs := PromptMessages("be kind", "Human: hi")
	require.Len(t, msgs, 2)
	assert.Equal(t, ChatMessage{Role: RoleSystem, Content: "be kind"}, msgs[0])
	assert.Equal(t, ChatMessage{Role: RoleUser, Content: "Human: hi"}, msgs[1])

	assert.Len(t, PromptMessages("  ", "Human: hi"), 1)
}

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m", body.Model)
		assert.False(t, body.Stream)
		assert.Len(t, body.Messages, 2)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"I'm here for you."}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompatibleClient()
	out, err := c.Complete(context.Background(), ChatConfig{BaseURL: srv.URL + "/v1/", APIKey: "key", Model: "m"}, PromptMessages("sys", "Human: hi"))
	require.NoError(t, err)
	assert.Equal(t, "I'm here for you.", out)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "upstream error", status: http.StatusBadGateway, body: `{"error":"down"}`},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`},
		{name: "bad json", status: http.StatusOK, body: `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewOpenAICompatibleClient().Complete(context.Background(), ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"}, nil)
			assert.Error(t, err)
		})
	}
}

func TestStreamComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range []string{"Take ", "a slow ", "breath."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", part)
		}
		fmt.Fprint(w, "data: {\"choices\":[]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	var chunks []string
	full, err := NewOpenAICompatibleClient().StreamComplete(
		context.Background(),
		ChatConfig{BaseURL: srv.URL, APIKey: "k", Model: "m"},
		PromptMessages("", "Human: hi"),
		func(chunk string) error {
			chunks = append(chunks, chunk)
			return nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "Take a slow breath.", full)
	assert.Equal(t, []string{"Take ", "a slow ", "breath."}, chunks)
}
