// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

/*
Macrotrackr is a Telegram bot that tracks calories from meal photos.

Send it a photo of your meal with a caption describing it, and it replies
with an estimated calorie and macro breakdown, produced by a vision model,
along with your progress towards a daily calorie goal. The day rolls over
at 5 AM, so late-night meals count towards the previous day.

# Usage

	$ macrotrackr [flags...]

Configuration is read from environment variables:

	TG_TOKEN      Telegram bot token (required)
	TG_SECRET     secret token for webhook verification (required)
	OPENAI_KEY    OpenAI API key (required)
	CHANNEL_ID    optional chat ID to mirror analyzed meals to
	DATABASE_URL  store DSN: "mem", a SQLite file path or a postgres:// URL
	HOST          public hostname, used to set the webhook in production
	ADDR          network address to listen on
	DAILY_GOAL    daily calorie goal
	CYCLE_HOUR    hour of day at which a new day starts
	TZ_NAME       IANA time zone for the day boundary
*/
package main

import (
	_ "embed"

	"go.astrophena.name/macrotrackr/internal/cli"
)

//go:embed doc.go
var doc []byte

func init() { cli.SetDocComment(doc) }
