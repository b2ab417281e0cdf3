// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"context"
	"errors"
)

var errNoHost = errors.New("HOST environment variable is not set, can't register webhook")

// setWebhook points the bot's webhook at this instance. Telegram will echo
// the secret token back in a header of every webhook request, which is how
// the handler tells real updates from random POSTs.
func (e *engine) setWebhook(ctx context.Context) error {
	if e.host == "" {
		return errNoHost
	}
	return e.tgc.SetWebhook(ctx, "https://"+e.host+"/telegram", e.tgSecret)
}
