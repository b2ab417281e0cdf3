// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package openai provides a very minimal client for interacting with the
// OpenAI API, covering only chat completions with optional image inputs.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.astrophena.name/macrotrackr/internal/request"
)

const apiURL = "https://api.openai.com/v1"

// Client holds configuration for interacting with the OpenAI API.
type Client struct {
	// APIKey is the API key used for authentication.
	APIKey string
	// HTTPClient is an optional HTTP client to use for requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
}

// ChatCompletionParams defines the request body sent to the chat
// completions API.
type ChatCompletionParams struct {
	// Model is the model to use, for example "gpt-4o-mini".
	Model string `json:"model"`
	// Messages is the conversation so far.
	Messages []*Message `json:"messages"`
	// MaxTokens limits the length of the completion. Zero means no limit.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// Message is a single conversation message.
type Message struct {
	// Role is the producer of the message: "system", "user" or "assistant".
	Role string `json:"role"`
	// Content is a list of content parts. A plain text message is a single
	// text part.
	Content []*Part `json:"content"`
}

// Part is a single part of a message: text or an image.
type Part struct {
	Type string `json:"type"` // "text" or "image_url"
	// Text is set for text parts.
	Text string `json:"text,omitempty"`
	// ImageURL is set for image_url parts.
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL points to an image, either by HTTPS URL or as a base64-encoded
// data URL.
type ImageURL struct {
	URL string `json:"url"`
	// Detail controls how the model processes the image: "low", "high" or
	// "auto".
	Detail string `json:"detail,omitempty"`
}

// TextPart returns a text [Part].
func TextPart(text string) *Part { return &Part{Type: "text", Text: text} }

// ImagePart returns an image [Part] pointing to url.
func ImagePart(url string) *Part {
	return &Part{Type: "image_url", ImageURL: &ImageURL{URL: url}}
}

// ChatCompletionResponse defines the response received from the chat
// completions API.
type ChatCompletionResponse struct {
	ID      string    `json:"id"`
	Model   string    `json:"model"`
	Choices []*Choice `json:"choices"`
	Usage   *Usage    `json:"usage"`
}

// Choice is a single completion alternative.
type Choice struct {
	Index        int              `json:"index"`
	Message      *ResponseMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// ResponseMessage is the message generated by the model.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ErrNoChoices is returned by [ChatCompletionResponse.Text] when the model
// returned no completions.
var ErrNoChoices = errors.New("openai: response contains no choices")

// Text returns the content of the first completion.
func (r *ChatCompletionResponse) Text() (string, error) {
	if len(r.Choices) == 0 || r.Choices[0].Message == nil {
		return "", ErrNoChoices
	}
	return r.Choices[0].Message.Content, nil
}

// Usage is the token accounting for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RawRequest sends a raw request to the OpenAI API.
func RawRequest[Response any](ctx context.Context, c *Client, method, path string, body any) (Response, error) {
	rp := request.Params{
		Method: method,
		URL:    apiURL + path,
		Headers: map[string]string{
			"Authorization": "Bearer " + c.APIKey,
		},
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	}
	if body != nil {
		rp.Body = body
	}
	return request.Make[Response](ctx, rp)
}

// ChatCompletion sends a request to the chat completions API.
func (c *Client) ChatCompletion(ctx context.Context, params ChatCompletionParams) (*ChatCompletionResponse, error) {
	if params.Model == "" {
		return nil, errors.New("model shouldn't be empty")
	}
	return RawRequest[*ChatCompletionResponse](ctx, c, http.MethodPost, "/chat/completions", params)
}
