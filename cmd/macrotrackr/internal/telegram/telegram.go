// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package telegram implements the subset of the Telegram Bot API the bot
// needs: sending formatted messages and photos and downloading files
// users sent.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.astrophena.name/macrotrackr/internal/request"
	"go.astrophena.name/macrotrackr/internal/tgmarkup"
)

const apiURL = "https://api.telegram.org"

// Client makes requests to the Telegram Bot API on behalf of a single bot.
type Client struct {
	// Token is the bot token used for authentication.
	Token string
	// HTTPClient is an optional HTTP client to use for requests. Defaults to
	// request.DefaultClient.
	HTTPClient *http.Client
	// Scrubber is an optional strings.Replacer that scrubs unwanted data from
	// error messages.
	Scrubber *strings.Replacer
}

// response is the envelope every Bot API method returns.
// See https://core.telegram.org/bots/api#making-requests.
type response[Result any] struct {
	OK          bool   `json:"ok"`
	Result      Result `json:"result"`
	Description string `json:"description"`
	ErrorCode   int    `json:"error_code"`
}

// Call invokes a Bot API method and decodes its result.
func Call[Result any](ctx context.Context, c *Client, method string, args any) (Result, error) {
	resp, err := request.Make[response[Result]](ctx, request.Params{
		Method:     http.MethodPost,
		URL:        apiURL + "/bot" + c.Token + "/" + method,
		Body:       args,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return resp.Result, fmt.Errorf("%s: %w", method, err)
	}
	if !resp.OK {
		return resp.Result, fmt.Errorf("%s: %s (error code %d)", method, resp.Description, resp.ErrorCode)
	}
	return resp.Result, nil
}

// User is a Telegram user or bot.
type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
}

// GetMe returns basic information about the bot.
func (c *Client) GetMe(ctx context.Context) (User, error) {
	return Call[User](ctx, c, "getMe", nil)
}

type sendMessageArgs struct {
	ChatID             string `json:"chat_id"`
	LinkPreviewOptions struct {
		IsDisabled bool `json:"is_disabled"`
	} `json:"link_preview_options"`
	tgmarkup.Message
}

// SendMessage sends a Markdown-formatted message to a chat. Link previews
// are always disabled.
func (c *Client) SendMessage(ctx context.Context, chatID, markdown string) error {
	args := sendMessageArgs{ChatID: chatID}
	args.LinkPreviewOptions.IsDisabled = true
	args.Message = tgmarkup.FromMarkdown(markdown)
	_, err := Call[struct{}](ctx, c, "sendMessage", args)
	return err
}

type sendPhotoArgs struct {
	ChatID          string            `json:"chat_id"`
	Photo           string            `json:"photo"`
	Caption         string            `json:"caption,omitempty"`
	CaptionEntities []tgmarkup.Entity `json:"caption_entities,omitempty"`
}

// SendPhoto sends a photo, identified by a file ID already known to
// Telegram, with a Markdown-formatted caption.
func (c *Client) SendPhoto(ctx context.Context, chatID, fileID, caption string) error {
	args := sendPhotoArgs{ChatID: chatID, Photo: fileID}
	msg := tgmarkup.FromMarkdown(caption)
	args.Caption = msg.Text
	args.CaptionEntities = msg.Entities
	_, err := Call[struct{}](ctx, c, "sendPhoto", args)
	return err
}

// File is a file stored on Telegram servers.
type File struct {
	FileID   string `json:"file_id"`
	FileSize int64  `json:"file_size"`
	FilePath string `json:"file_path"`
}

// DownloadFile fetches the contents of a file by its file ID. It resolves
// the file path with getFile and then downloads the file from the file
// endpoint.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	f, err := Call[File](ctx, c, "getFile", map[string]string{"file_id": fileID})
	if err != nil {
		return nil, err
	}
	if f.FilePath == "" {
		return nil, fmt.Errorf("getFile: no file path for file %s", fileID)
	}
	b, err := request.Make[[]byte](ctx, request.Params{
		Method:     http.MethodGet,
		URL:        apiURL + "/file/bot" + c.Token + "/" + f.FilePath,
		HTTPClient: c.HTTPClient,
		Scrubber:   c.Scrubber,
	})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", f.FilePath, err)
	}
	return b, nil
}

type setWebhookArgs struct {
	URL            string   `json:"url"`
	AllowedUpdates []string `json:"allowed_updates"`
	SecretToken    string   `json:"secret_token,omitempty"`
}

// SetWebhook points the bot's webhook to url. Telegram will include
// secretToken in the X-Telegram-Bot-Api-Secret-Token header of every
// webhook request.
func (c *Client) SetWebhook(ctx context.Context, url, secretToken string) error {
	_, err := Call[bool](ctx, c, "setWebhook", setWebhookArgs{
		URL:            url,
		AllowedUpdates: []string{"message"},
		SecretToken:    secretToken,
	})
	return err
}
