// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package bot implements the Telegram webhook handler: it classifies
// incoming updates, sends meal photos to a vision model, accumulates
// calories and replies with formatted progress reports.
package bot

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/macrotrackr/cmd/macrotrackr/internal/telegram"
	"go.astrophena.name/macrotrackr/internal/api/openai"
	"go.astrophena.name/macrotrackr/internal/format"
	"go.astrophena.name/macrotrackr/internal/logger"
	"go.astrophena.name/macrotrackr/internal/macros"
	"go.astrophena.name/macrotrackr/internal/progress"
	"go.astrophena.name/macrotrackr/internal/web"
)

// visionPrompt instructs the model to produce an analysis the macros
// package can parse.
const visionPrompt = `You are a nutritionist. Analyze the meal in the photo, using the caption as a hint about ingredients and portion size.

List every food item on its own line in exactly this format:

• Item name: N kcal | P Ng | C Ng | F Ng

After the items, add a line:

Total: N kcal | P Ng | C Ng | F Ng

Estimate realistic portions. Don't add any other commentary.`

// User-facing messages.
const (
	msgAnalyzing      = "🔄 Analyzing your meal..."
	msgDone           = "✅ Analysis complete!"
	msgPosted         = "📤 Posted to tracking channel!"
	msgReset          = "🔄 Progress reset! Starting fresh."
	msgNeedCaption    = "❌ Please add a caption describing your meal so I can analyze it."
	msgNoItems        = "❌ I couldn't identify any food items in this photo. Try a clearer photo or a more detailed caption."
	msgStoreDown      = "❌ I couldn't save your progress. Please try again in a moment."
	msgAnalysisFailed = "❌ Something went wrong while analyzing your meal. Please try again."
	msgHelp           = `👋 Send me a photo of your meal with a caption describing it, and I'll estimate calories and macros.

Commands:
/progress - show today's calorie progress
/resetprogress - reset today's progress`
)

// Update is an incoming Telegram update.
// See https://core.telegram.org/bots/api#update.
type Update struct {
	ID      int64    `json:"update_id"`
	Message *Message `json:"message"`
}

// Message is a Telegram message.
type Message struct {
	ID      int64       `json:"message_id"`
	From    *User       `json:"from"`
	Chat    Chat        `json:"chat"`
	Text    string      `json:"text"`
	Caption string      `json:"caption"`
	Photo   []PhotoSize `json:"photo"`
}

// User is the sender of a message.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	Username  string `json:"username"`
}

// Chat is the chat a message belongs to.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// PhotoSize is one of the available sizes of a photo.
type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

// Bot handles Telegram webhook updates.
type Bot struct {
	// Telegram is the Bot API client used for replies. Required.
	Telegram *telegram.Client
	// OpenAI is the vision model client. Required.
	OpenAI *openai.Client
	// Model is the vision model to use.
	Model string
	// Tracker accumulates per-user calories. Required.
	Tracker *progress.Tracker
	// ChannelID is an optional chat to mirror analyzed meals to.
	ChannelID string
	// WebhookSecret is matched against the X-Telegram-Bot-Api-Secret-Token
	// header of webhook requests.
	WebhookSecret string
	// Logf is used for logging. Defaults to log.Printf.
	Logf logger.Logf
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (b *Bot) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// HandleTelegramWebhook handles a Telegram webhook request.
//
// Unless the secret token doesn't match, it always responds with 200:
// Telegram retries updates it couldn't deliver, and a user who already got
// an error message doesn't need the same update replayed at them.
func (b *Bot) HandleTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Telegram-Bot-Api-Secret-Token") != b.WebhookSecret {
		web.RespondJSONError(b.Logf, w, web.ErrNotFound)
		return
	}

	var u Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		web.RespondJSONError(b.Logf, w, fmt.Errorf("%w: %v", web.ErrBadRequest, err))
		return
	}

	if u.Message != nil {
		b.handleMessage(r.Context(), u.Message)
	}

	web.RespondJSON(w, map[string]string{"status": "ok"})
}

func (b *Bot) handleMessage(ctx context.Context, m *Message) {
	chatID := strconv.FormatInt(m.Chat.ID, 10)

	switch {
	case len(m.Photo) > 0 && strings.TrimSpace(m.Caption) != "":
		b.handleMealPhoto(ctx, m, chatID)
	case len(m.Photo) > 0:
		b.reply(ctx, chatID, msgNeedCaption)
	case command(m.Text) == "/progress":
		b.handleProgress(ctx, m, chatID)
	case command(m.Text) == "/resetprogress":
		b.handleReset(ctx, m, chatID)
	default:
		b.reply(ctx, chatID, msgHelp)
	}
}

// command extracts the bot command from the message text, stripping the
// @botname suffix used in group chats.
func command(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(text, " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return cmd
}

func (b *Bot) handleMealPhoto(ctx context.Context, m *Message, chatID string) {
	b.reply(ctx, chatID, msgAnalyzing)

	analysis, err := b.analyze(ctx, m)
	if err != nil {
		b.logf("analyzing meal in chat %s: %v", chatID, err)
		switch {
		case errors.Is(err, macros.ErrNoItems):
			b.reply(ctx, chatID, msgNoItems)
		default:
			b.reply(ctx, chatID, msgAnalysisFailed)
		}
		return
	}

	total := analysis.Total()
	p, err := b.Tracker.AddMeal(ctx, userID(m), total.Calories, b.now())
	if err != nil {
		b.logf("saving progress for chat %s: %v", chatID, err)
		b.reply(ctx, chatID, msgStoreDown)
		return
	}

	meal := format.Meal(userName(m), analysis)
	b.reply(ctx, chatID, msgDone+"\n\n"+meal+"\n\n"+format.DailyProgress(p))

	if b.ChannelID != "" {
		if err := b.Telegram.SendPhoto(ctx, b.ChannelID, largestPhoto(m.Photo).FileID, meal); err != nil {
			// The user already got their analysis, a failed channel post
			// shouldn't look like a failed meal.
			b.logf("posting to channel %s: %v", b.ChannelID, err)
		} else {
			b.reply(ctx, chatID, msgPosted)
		}
	}
}

// analyze downloads the meal photo, sends it to the vision model and
// parses the returned analysis.
func (b *Bot) analyze(ctx context.Context, m *Message) (*macros.Analysis, error) {
	photo, err := b.Telegram.DownloadFile(ctx, largestPhoto(m.Photo).FileID)
	if err != nil {
		return nil, fmt.Errorf("downloading photo: %w", err)
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(photo)

	resp, err := b.OpenAI.ChatCompletion(ctx, openai.ChatCompletionParams{
		Model: b.Model,
		Messages: []*openai.Message{
			{Role: "system", Content: []*openai.Part{openai.TextPart(visionPrompt)}},
			{Role: "user", Content: []*openai.Part{
				openai.TextPart(m.Caption),
				openai.ImagePart(dataURL),
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request: %w", err)
	}
	text, err := resp.Text()
	if err != nil {
		return nil, err
	}

	return macros.Parse(text)
}

func (b *Bot) handleProgress(ctx context.Context, m *Message, chatID string) {
	p, err := b.Tracker.Current(ctx, userID(m), b.now())
	if err != nil {
		b.logf("loading progress for chat %s: %v", chatID, err)
		b.reply(ctx, chatID, msgStoreDown)
		return
	}
	b.reply(ctx, chatID, format.DailyProgress(p))
}

func (b *Bot) handleReset(ctx context.Context, m *Message, chatID string) {
	p, err := b.Tracker.Reset(ctx, userID(m), b.now())
	if err != nil {
		b.logf("resetting progress for chat %s: %v", chatID, err)
		b.reply(ctx, chatID, msgStoreDown)
		return
	}
	b.reply(ctx, chatID, msgReset+"\n\n"+format.DailyProgress(p))
}

func (b *Bot) reply(ctx context.Context, chatID, markdown string) {
	if err := b.Telegram.SendMessage(ctx, chatID, markdown); err != nil {
		b.logf("sending message to chat %s: %v", chatID, err)
	}
}

func (b *Bot) logf(format string, args ...any) {
	if b.Logf != nil {
		b.Logf(format, args...)
	}
}

// userID identifies the user progress is tracked for. Messages without a
// sender, like channel posts, fall back to the chat.
func userID(m *Message) int64 {
	if m.From != nil {
		return m.From.ID
	}
	return m.Chat.ID
}

func userName(m *Message) string {
	if m.From == nil {
		return "there"
	}
	if m.From.FirstName != "" {
		return m.From.FirstName
	}
	if m.From.Username != "" {
		return m.From.Username
	}
	return "there"
}

// largestPhoto picks the biggest available size of a photo.
func largestPhoto(sizes []PhotoSize) PhotoSize {
	var best PhotoSize
	for _, s := range sizes {
		if s.FileSize > best.FileSize || (s.FileSize == best.FileSize && s.Width > best.Width) {
			best = s
		}
	}
	return best
}
