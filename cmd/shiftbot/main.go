package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"shiftbot/internal/api"
	"shiftbot/internal/clock"
	"shiftbot/internal/notify"
	"shiftbot/internal/rollover"
	"shiftbot/internal/scheduler"
	"shiftbot/internal/store"
	"shiftbot/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	var (
		addr        = flag.String("addr", ":8080", "HTTP bind address")
		dbPath      = flag.String("db", "shiftbot.db", "SQLite DB path")
		tz          = flag.String("tz", "Asia/Jerusalem", "civil timezone for scheduling")
		sendTimeout = flag.Duration("send-timeout", 10*time.Second, "per-recipient send timeout")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	clk, err := clock.NewSystem(*tz)
	if err != nil {
		log.Fatal().Err(err).Str("tz", *tz).Msg("load timezone")
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", *dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("open db")
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite single writer

	if err := store.EnsureSchema(db); err != nil {
		log.Fatal().Err(err).Msg("ensure schema")
	}
	repo := store.NewSQLite(db)

	ch, err := telegram.New(telegram.Config{
		Token: os.Getenv("TELEGRAM_BOT_TOKEN"),
		Mode:  os.Getenv("TELEGRAM_MODE"),
	}, repo, repo)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram channel")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch.Start(ctx)

	disp := notify.NewDispatcher(repo, repo, ch, clk, *sendTimeout)
	roll := rollover.NewEngine(repo, clk)
	sched := scheduler.NewService(repo, disp, roll, clk, clk.Location())
	if err := sched.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start scheduler")
	}

	srv := &http.Server{Addr: *addr, Handler: api.NewServer(repo, ch, clk)}
	go func() {
		log.Info().Str("addr", *addr).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	// Graceful shutdown: stop timers, let an in-flight pass drain, then close.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutting down")
	sched.Stop()
	cancel()
	ctxTimeout, cancelTimeout := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelTimeout()
	_ = srv.Shutdown(ctxTimeout)
}
