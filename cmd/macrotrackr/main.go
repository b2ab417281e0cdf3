// © 2025 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package main

import (
	"bytes"
	"cmp"
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.astrophena.name/macrotrackr/cmd/macrotrackr/internal/bot"
	"go.astrophena.name/macrotrackr/cmd/macrotrackr/internal/telegram"
	"go.astrophena.name/macrotrackr/internal/api/openai"
	"go.astrophena.name/macrotrackr/internal/cli"
	"go.astrophena.name/macrotrackr/internal/logger"
	"go.astrophena.name/macrotrackr/internal/progress"
	"go.astrophena.name/macrotrackr/internal/store"
	"go.astrophena.name/macrotrackr/internal/util/syncx"
	"go.astrophena.name/macrotrackr/internal/web"
)

func main() { cli.Main(new(engine)) }

// Defaults, overridable from the environment.
const (
	defaultAddr  = "localhost:3000"
	defaultDSN   = "mem"
	defaultModel = "gpt-4o-mini"
)

func (e *engine) Flags(fs *flag.FlagSet) {
	fs.BoolVar(&e.prod, "prod", false, "Run in production mode.")
	fs.StringVar(&e.addr, "addr", "", "Listen on `host:port`.")
	fs.StringVar(&e.dsn, "db", "", "Store `DSN`: \"mem\", a SQLite file path or a postgres:// URL.")
}

func (e *engine) Run(ctx context.Context, env *cli.Env) error {
	// Load configuration from environment variables.
	e.addr = cmp.Or(e.addr, env.Getenv("ADDR"), defaultAddr)
	e.channelID = cmp.Or(e.channelID, env.Getenv("CHANNEL_ID"))
	e.cycleHour = cmp.Or(e.cycleHour, parseInt(env.Getenv("CYCLE_HOUR")))
	e.dailyGoal = cmp.Or(e.dailyGoal, parseInt(env.Getenv("DAILY_GOAL")))
	e.dsn = cmp.Or(e.dsn, env.Getenv("DATABASE_URL"), defaultDSN)
	e.host = cmp.Or(e.host, env.Getenv("HOST"))
	e.model = cmp.Or(e.model, env.Getenv("OPENAI_MODEL"), defaultModel)
	e.onRender = env.Getenv("RENDER") == "true"
	e.openaiKey = cmp.Or(e.openaiKey, env.Getenv("OPENAI_KEY"))
	e.tgSecret = cmp.Or(e.tgSecret, env.Getenv("TG_SECRET"))
	e.tgToken = cmp.Or(e.tgToken, env.Getenv("TG_TOKEN"))
	e.tzName = cmp.Or(e.tzName, env.Getenv("TZ_NAME"))

	e.stderr = env.Stderr

	if err := e.init.Get(func() error {
		return e.doInit(ctx)
	}); err != nil {
		return err
	}
	defer e.kv.Close()

	// Used in tests.
	if e.noServerStart {
		return nil
	}

	// On Render the port to listen on comes from the environment, and a
	// periodic self-ping keeps the free instance from sleeping.
	if e.onRender {
		e.logf("Running on Render: enabling production mode and starting self-ping goroutine.")
		e.prod = true
		// https://docs.render.com/environment-variables#all-runtimes-1
		if port := env.Getenv("PORT"); port != "" {
			e.addr = ":" + port
		}
		go e.renderSelfPing(ctx, selfPingInterval)
	}

	// If running in production mode, set the webhook in Telegram Bot API.
	if e.prod {
		if err := e.setWebhook(ctx); err != nil {
			return err
		}
		e.logf("Running in production mode.")
	} else {
		e.logf("Running in development mode.")
	}

	return web.ListenAndServe(ctx, &web.ListenAndServeConfig{
		Addr:  e.addr,
		Mux:   e.mux,
		Logf:  e.logf,
		Ready: e.ready,
	})
}

const selfPingInterval = 10 * time.Minute

type engine struct {
	init syncx.Lazy[error] // main initialization

	// initialized by doInit
	bot       *bot.Bot
	kv        store.Store
	logStream logger.Streamer
	logf      logger.Logf
	mux       *http.ServeMux
	openaic   *openai.Client
	scrubber  *strings.Replacer
	tgc       *telegram.Client
	tracker   *progress.Tracker

	// configuration, read-only after initialization
	addr      string
	channelID string
	cycleHour int
	dailyGoal int
	dsn       string
	host      string
	httpc     *http.Client
	model     string
	onRender  bool
	openaiKey string
	prod      bool
	stderr    io.Writer
	tgSecret  string
	tgToken   string
	tzName    string
	// for tests
	noServerStart bool
	ready         func() // see web.ListenAndServeConfig.Ready
}

func (e *engine) doInit(ctx context.Context) error {
	if e.httpc == nil {
		e.httpc = &http.Client{
			// Vision model responses can take a while.
			Timeout: 60 * time.Second,
		}
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}

	const logLineLimit = 300
	e.logStream = logger.NewStreamer(logLineLimit)
	e.logf = log.New(io.MultiWriter(e.stderr, &timestampWriter{e.logStream}), "", 0).Printf

	var scrubPairs []string
	for _, val := range []string{
		e.tgToken,
		e.tgSecret,
		e.openaiKey,
	} {
		if val != "" {
			scrubPairs = append(scrubPairs, val, "[EXPUNGED]")
		}
	}
	if len(scrubPairs) > 0 {
		e.scrubber = strings.NewReplacer(scrubPairs...)
	}

	e.tgc = &telegram.Client{
		Token:      e.tgToken,
		HTTPClient: e.httpc,
		Scrubber:   e.scrubber,
	}
	e.openaic = &openai.Client{
		APIKey:     e.openaiKey,
		HTTPClient: e.httpc,
		Scrubber:   e.scrubber,
	}

	me, err := e.tgc.GetMe(ctx)
	if err != nil {
		return err
	}
	e.logf("Running as @%s.", me.Username)

	loc := time.Local
	if e.tzName != "" {
		loc, err = time.LoadLocation(e.tzName)
		if err != nil {
			return err
		}
	}

	e.kv, err = store.Open(ctx, e.dsn)
	if err != nil {
		return err
	}
	e.tracker = progress.NewTracker(progress.Opts{
		Store:     e.kv,
		DailyGoal: e.dailyGoal,
		CycleHour: e.cycleHour,
		Location:  loc,
	})

	e.bot = &bot.Bot{
		Telegram:      e.tgc,
		OpenAI:        e.openaic,
		Model:         e.model,
		Tracker:       e.tracker,
		ChannelID:     e.channelID,
		WebhookSecret: e.tgSecret,
		Logf:          e.logf,
	}

	e.initRoutes()

	return nil
}

func (e *engine) initRoutes() {
	e.mux = http.NewServeMux()
	e.mux.HandleFunc("POST /telegram", e.bot.HandleTelegramWebhook)
	if !e.prod {
		e.mux.Handle("/debug/log", e.logStream)
	}
	web.Health(e.mux).RegisterFunc("store", func() (status string, ok bool) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.kv.Ping(ctx); err != nil {
			return err.Error(), false
		}
		return "ok", true
	})
}

// renderSelfPing keeps the Render instance awake by fetching its own
// health endpoint.
func (e *engine) renderSelfPing(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if e.host == "" {
				continue
			}
			res, err := e.httpc.Get("https://" + e.host + "/health")
			if err != nil {
				e.logf("Self-ping failed: %v", err)
				continue
			}
			res.Body.Close()
		case <-ctx.Done():
			return
		}
	}
}

func parseInt(s string) int {
	i, err := strconv.Atoi(s)
	if err == nil {
		return i
	}
	return 0
}

// timestampWriter is an io.Writer that prefixes each line with the current date and time.
type timestampWriter struct {
	w io.Writer
}

func (tw *timestampWriter) Write(p []byte) (n int, err error) {
	lines := bytes.SplitAfter(p, []byte{'\n'})

	for _, line := range lines {
		if len(line) > 0 {
			timestamp := time.Now().Format(time.DateTime + "\t")
			_, err := tw.w.Write([]byte(timestamp))
			if err != nil {
				return n, err
			}
			nn, err := tw.w.Write(line)
			n += nn
			if err != nil {
				return n, err
			}
		}
	}

	return n, nil
}
