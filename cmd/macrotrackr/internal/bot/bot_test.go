// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.astrophena.name/macrotrackr/cmd/macrotrackr/internal/telegram"
	"go.astrophena.name/macrotrackr/internal/api/openai"
	"go.astrophena.name/macrotrackr/internal/progress"
	"go.astrophena.name/macrotrackr/internal/store"
	"go.astrophena.name/macrotrackr/internal/testutil"
)

const (
	testToken  = "test-token"
	testSecret = "webhook-secret"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// testEnv wires a Bot to mock Telegram and OpenAI backends, recording
// everything the bot sends.
type testEnv struct {
	bot *Bot

	mux *http.ServeMux

	sentMessages []string // texts of sendMessage calls, in order
	sentPhotos   []sentPhoto
	visionText   string // what the model "sees"
}

type sentPhoto struct {
	chatID  string
	fileID  string
	caption string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{mux: http.NewServeMux()}

	e.mux.HandleFunc("POST api.telegram.org/bot"+testToken+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Fatal(err)
		}
		e.sentMessages = append(e.sentMessages, args.Text)
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})
	e.mux.HandleFunc("POST api.telegram.org/bot"+testToken+"/sendPhoto", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			ChatID  string `json:"chat_id"`
			Photo   string `json:"photo"`
			Caption string `json:"caption"`
		}
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Fatal(err)
		}
		e.sentPhotos = append(e.sentPhotos, sentPhoto{args.ChatID, args.Photo, args.Caption})
		w.Write([]byte(`{"ok":true,"result":{"message_id":2}}`))
	})
	e.mux.HandleFunc("POST api.telegram.org/bot"+testToken+"/getFile", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true,"result":{"file_id":"big","file_size":4,"file_path":"photos/meal.jpg"}}`))
	})
	e.mux.HandleFunc("GET api.telegram.org/file/bot"+testToken+"/photos/meal.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg"))
	})
	e.mux.HandleFunc("POST api.openai.com/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		resp := &openai.ChatCompletionResponse{
			Choices: []*openai.Choice{{
				Message: &openai.ResponseMessage{Role: "assistant", Content: e.visionText},
			}},
		}
		json.NewEncoder(w).Encode(resp)
	})

	httpc := testutil.MockHTTPClient(e.mux)

	s := store.NewMemStore()
	t.Cleanup(func() { s.Close() })

	e.bot = &Bot{
		Telegram:      &telegram.Client{Token: testToken, HTTPClient: httpc},
		OpenAI:        &openai.Client{APIKey: "test-key", HTTPClient: httpc},
		Model:         "gpt-4o-mini",
		Tracker:       progress.NewTracker(progress.Opts{Store: s, Location: time.UTC}),
		ChannelID:     "-100500",
		WebhookSecret: testSecret,
		Logf:          t.Logf,
		Now:           func() time.Time { return testNow },
	}

	return e
}

// webhook delivers an update to the bot and returns the response status.
func (e *testEnv) webhook(t *testing.T, u Update, secret string) int {
	t.Helper()

	b, err := json.Marshal(u)
	if err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodPost, "/telegram", strings.NewReader(string(b)))
	if secret != "" {
		r.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
	}
	w := httptest.NewRecorder()
	e.bot.HandleTelegramWebhook(w, r)
	return w.Code
}

func photoUpdate(caption string) Update {
	return Update{
		ID: 1,
		Message: &Message{
			ID:      10,
			From:    &User{ID: 42, FirstName: "Ilya"},
			Chat:    Chat{ID: 42, Type: "private"},
			Caption: caption,
			Photo: []PhotoSize{
				{FileID: "small", Width: 90, FileSize: 1000},
				{FileID: "big", Width: 800, FileSize: 64000},
			},
		},
	}
}

func textUpdate(text string) Update {
	return Update{
		ID: 2,
		Message: &Message{
			ID:   11,
			From: &User{ID: 42, FirstName: "Ilya"},
			Chat: Chat{ID: 42, Type: "private"},
			Text: text,
		},
	}
}

func TestWebhookSecretMismatch(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	code := e.webhook(t, textUpdate("/progress"), "wrong-secret")
	testutil.AssertEqual(t, code, http.StatusNotFound)
	testutil.AssertEqual(t, len(e.sentMessages), 0)
}

func TestMealPhotoFlow(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "Chicken: 185 kcal P35 C0 F4\nRice: 150 kcal P3 C30 F0"

	code := e.webhook(t, photoUpdate("chicken and rice"), testSecret)
	testutil.AssertEqual(t, code, http.StatusOK)

	if len(e.sentMessages) != 3 {
		t.Fatalf("want 3 messages, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "Analyzing your meal"), true)

	report := e.sentMessages[1]
	for _, want := range []string{
		"Analysis complete",
		"Meal Analysis for Ilya",
		"Chicken: 185 kcal | P 35g | C 0g | F 4g",
		"Total: 365 kcal | P 38g | C 30g | F 4g",
		"365 / 1350 kcal (27%)",
		"Remaining: 985 kcal",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report doesn't contain %q:\n%s", want, report)
		}
	}

	testutil.AssertEqual(t, strings.Contains(e.sentMessages[2], "Posted to tracking channel"), true)

	// The biggest photo size goes to the channel, with the analysis as the
	// caption.
	if len(e.sentPhotos) != 1 {
		t.Fatalf("want 1 photo, got %d", len(e.sentPhotos))
	}
	testutil.AssertEqual(t, e.sentPhotos[0].chatID, "-100500")
	testutil.AssertEqual(t, e.sentPhotos[0].fileID, "big")
	testutil.AssertEqual(t, strings.Contains(e.sentPhotos[0].caption, "Meal Analysis for Ilya"), true)
}

func TestMealPhotoAccumulates(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "Chicken: 185 kcal P35 C0 F4\nRice: 150 kcal P3 C30 F0"

	e.webhook(t, photoUpdate("chicken and rice"), testSecret)
	e.webhook(t, photoUpdate("same again"), testSecret)

	p, err := e.bot.Tracker.Current(t.Context(), 42, testNow)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, p.Calories, 730)
}

func TestPhotoWithoutCaption(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	u := photoUpdate("")

	code := e.webhook(t, u, testSecret)
	testutil.AssertEqual(t, code, http.StatusOK)
	if len(e.sentMessages) != 1 {
		t.Fatalf("want 1 message, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "add a caption"), true)
}

func TestProgressCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "Chicken: 185 kcal P35 C0 F4\nRice: 150 kcal P3 C30 F0"
	e.webhook(t, photoUpdate("chicken and rice"), testSecret)
	e.sentMessages = nil

	e.webhook(t, textUpdate("/progress"), testSecret)
	if len(e.sentMessages) != 1 {
		t.Fatalf("want 1 message, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "365 / 1350 kcal (27%)"), true)
}

func TestProgressCommandWithBotMention(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.webhook(t, textUpdate("/progress@macrotrackr_bot"), testSecret)
	if len(e.sentMessages) != 1 {
		t.Fatalf("want 1 message, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "0 / 1350 kcal (0%)"), true)
}

func TestResetCommand(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "Chicken: 185 kcal P35 C0 F4\nRice: 150 kcal P3 C30 F0"
	e.webhook(t, photoUpdate("chicken and rice"), testSecret)
	e.sentMessages = nil

	e.webhook(t, textUpdate("/resetprogress"), testSecret)
	if len(e.sentMessages) != 1 {
		t.Fatalf("want 1 message, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "Progress reset"), true)
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "0 / 1350 kcal (0%)"), true)
}

func TestUnrecognizedMessage(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.webhook(t, textUpdate("hello"), testSecret)
	if len(e.sentMessages) != 1 {
		t.Fatalf("want 1 message, got %d: %q", len(e.sentMessages), e.sentMessages)
	}
	testutil.AssertEqual(t, strings.Contains(e.sentMessages[0], "/progress"), true)
}

func TestVisionReturnsNoItems(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "I can't tell what's on this plate, sorry."

	code := e.webhook(t, photoUpdate("mystery meal"), testSecret)
	testutil.AssertEqual(t, code, http.StatusOK)

	last := e.sentMessages[len(e.sentMessages)-1]
	testutil.AssertEqual(t, strings.Contains(last, "couldn't identify any food items"), true)

	// Nothing was added to the user's progress.
	p, err := e.bot.Tracker.Current(t.Context(), 42, testNow)
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, p.Calories, 0)
	testutil.AssertEqual(t, len(e.sentPhotos), 0)
}

func TestStoreFailure(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	e.visionText = "Chicken: 185 kcal P35 C0 F4"
	e.bot.Tracker = progress.NewTracker(progress.Opts{Store: failingStore{}, Location: time.UTC})

	code := e.webhook(t, photoUpdate("chicken"), testSecret)
	testutil.AssertEqual(t, code, http.StatusOK)

	last := e.sentMessages[len(e.sentMessages)-1]
	testutil.AssertEqual(t, strings.Contains(last, "couldn't save your progress"), true)
	testutil.AssertEqual(t, len(e.sentPhotos), 0)
}

func TestUpdateWithoutMessage(t *testing.T) {
	t.Parallel()

	e := newTestEnv(t)
	code := e.webhook(t, Update{ID: 3}, testSecret)
	testutil.AssertEqual(t, code, http.StatusOK)
	testutil.AssertEqual(t, len(e.sentMessages), 0)
}

type failingStore struct{}

var errStoreDown = errors.New("store is down")

func (failingStore) Get(ctx context.Context, key string) ([]byte, error) { return nil, errStoreDown }
func (failingStore) Set(ctx context.Context, key string, value []byte) error {
	return errStoreDown
}
func (failingStore) Update(ctx context.Context, key string, f store.UpdateFunc) ([]byte, error) {
	return nil, errStoreDown
}
func (failingStore) Ping(ctx context.Context) error { return errStoreDown }
func (failingStore) Close() error                   { return nil }
