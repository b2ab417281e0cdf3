// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package telegram

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"go.astrophena.name/macrotrackr/internal/testutil"
	"go.astrophena.name/macrotrackr/internal/tgmarkup"
)

const token = "test-token"

func testClient(mux *http.ServeMux) *Client {
	return &Client{
		Token:      token,
		HTTPClient: testutil.MockHTTPClient(mux),
	}
}

func TestSendMessage(t *testing.T) {
	t.Parallel()

	var got sendMessageArgs

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.telegram.org/bot"+token+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":1}}`))
	})

	if err := testClient(mux).SendMessage(t.Context(), "123", "**Total:** 365 kcal"); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, got.ChatID, "123")
	testutil.AssertEqual(t, got.LinkPreviewOptions.IsDisabled, true)
	testutil.AssertEqual(t, got.Text, "Total: 365 kcal\n")
	testutil.AssertEqual(t, got.Entities, []tgmarkup.Entity{
		{Type: tgmarkup.Bold, Offset: 0, Length: 6},
	})
}

func TestSendPhoto(t *testing.T) {
	t.Parallel()

	var got sendPhotoArgs

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.telegram.org/bot"+token+"/sendPhoto", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":2}}`))
	})

	if err := testClient(mux).SendPhoto(t.Context(), "-100500", "photo-file-id", "**Meal**"); err != nil {
		t.Fatal(err)
	}

	testutil.AssertEqual(t, got.ChatID, "-100500")
	testutil.AssertEqual(t, got.Photo, "photo-file-id")
	testutil.AssertEqual(t, got.Caption, "Meal\n")
	testutil.AssertEqual(t, got.CaptionEntities, []tgmarkup.Entity{
		{Type: tgmarkup.Bold, Offset: 0, Length: 4},
	})
}

func TestDownloadFile(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.telegram.org/bot"+token+"/getFile", func(w http.ResponseWriter, r *http.Request) {
		var args map[string]string
		if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
			t.Fatal(err)
		}
		testutil.AssertEqual(t, args["file_id"], "abc")
		w.Write([]byte(`{"ok":true,"result":{"file_id":"abc","file_size":3,"file_path":"photos/file_1.jpg"}}`))
	})
	mux.HandleFunc("GET api.telegram.org/file/bot"+token+"/photos/file_1.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpg"))
	})

	b, err := testClient(mux).DownloadFile(t.Context(), "abc")
	if err != nil {
		t.Fatal(err)
	}
	testutil.AssertEqual(t, string(b), "jpg")
}

func TestCallAPIError(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.telegram.org/bot"+token+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	})

	err := testClient(mux).SendMessage(t.Context(), "123", "hi")
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("error %q doesn't contain the API description", err)
	}
}

func TestErrorsAreScrubbed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST api.telegram.org/bot"+token+"/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	c := testClient(mux)
	c.Scrubber = strings.NewReplacer(token, "[EXPUNGED]")

	err := c.SendMessage(t.Context(), "123", "hi")
	if err == nil {
		t.Fatal("want error, got nil")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("error %q contains unscrubbed token", err)
	}
}
