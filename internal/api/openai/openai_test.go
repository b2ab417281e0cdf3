// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package openai

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"go.astrophena.name/macrotrackr/internal/testutil"
	"go.astrophena.name/macrotrackr/internal/web"
)

func TestChatCompletion(t *testing.T) {
	t.Parallel()

	var gotParams ChatCompletionParams

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.openai.com/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			web.RespondJSONError(t.Logf, w, web.ErrUnauthorized)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&gotParams); err != nil {
			web.RespondJSONError(t.Logf, w, err)
			return
		}
		web.RespondJSON(w, &ChatCompletionResponse{
			Model: gotParams.Model,
			Choices: []*Choice{{
				Message:      &ResponseMessage{Role: "assistant", Content: "Chicken: 185 kcal P35 C0 F4"},
				FinishReason: "stop",
			}},
			Usage: &Usage{PromptTokens: 20, CompletionTokens: 10, TotalTokens: 30},
		})
	})

	c := &Client{
		APIKey:     "test-key",
		HTTPClient: testutil.MockHTTPClient(mux),
	}

	resp, err := c.ChatCompletion(t.Context(), ChatCompletionParams{
		Model: "gpt-4o-mini",
		Messages: []*Message{{
			Role: "user",
			Content: []*Part{
				TextPart("Analyze this meal."),
				ImagePart("data:image/jpeg;base64,aGVsbG8="),
			},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	text, err := resp.Text()
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, text, "Chicken: 185 kcal P35 C0 F4")

	testutil.AssertEqual(t, gotParams.Model, "gpt-4o-mini")
	testutil.AssertEqual(t, len(gotParams.Messages), 1)
	testutil.AssertEqual(t, gotParams.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,aGVsbG8=")
}

func TestChatCompletionRequiresModel(t *testing.T) {
	t.Parallel()

	c := &Client{APIKey: "test-key"}
	if _, err := c.ChatCompletion(t.Context(), ChatCompletionParams{}); err == nil {
		t.Fatal("expected an error for empty model")
	}
}

func TestTextNoChoices(t *testing.T) {
	t.Parallel()

	resp := &ChatCompletionResponse{}
	if _, err := resp.Text(); !errors.Is(err, ErrNoChoices) {
		t.Fatalf("got %v, want ErrNoChoices", err)
	}
}
