package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/r-seattle-wa/hub-bot-9000/bot/analyzer"
	"github.com/r-seattle-wa/hub-bot-9000/bot/achievements"
	"github.com/r-seattle-wa/hub-bot-9000/bot/classify"
	"github.com/r-seattle-wa/hub-bot-9000/bot/config"
	"github.com/r-seattle-wa/hub-bot-9000/bot/enrichment"
	"github.com/r-seattle-wa/hub-bot-9000/bot/feed"
	"github.com/r-seattle-wa/hub-bot-9000/bot/gemini"
	"github.com/r-seattle-wa/hub-bot-9000/bot/hostapi"
	"github.com/r-seattle-wa/hub-bot-9000/bot/idempotency"
	"github.com/r-seattle-wa/hub-bot-9000/bot/leaderboard"
	"github.com/r-seattle-wa/hub-bot-9000/bot/scheduler"
	"github.com/r-seattle-wa/hub-bot-9000/bot/sources"
	"github.com/r-seattle-wa/hub-bot-9000/bot/store"
	"github.com/r-seattle-wa/hub-bot-9000/bot/velocity"
)

// Trigger events the host platform can deliver.
const (
	TriggerCommentCreate = "CommentCreate"
	TriggerPostCreate    = "PostCreate"
	TriggerModMail       = "ModMail"
	TriggerAppInstall    = "AppInstall"
)

// TriggerHandler consumes one host trigger delivery.
type TriggerHandler func(ctx context.Context, payload []byte) error

// App is the explicitly constructed application: every collaborator is a
// value wired at start-up, and jobs, crons and triggers are registered on it
// rather than as import side effects.
type App struct {
	Settings *config.Settings
	Logger   *zap.Logger

	KV      store.KV
	Docs    store.Documents
	Host    hostapi.Client
	Archive *hostapi.ArchiveClient

	Idem     *idempotency.Store
	Sched    *scheduler.Scheduler
	Board    *leaderboard.Actor
	Engine   *achievements.Engine
	Tone     *classify.Tone
	ComTone  *classify.Community
	Chain    *sources.Chain
	Analyzer *analyzer.Thread
	Velocity *velocity.Detector
	Enrich   *enrichment.Job
	Feed     *feed.Feed
	Hub      *feed.Hub

	Scanner  *Scanner
	Notifier *Notifier

	triggers map[string][]TriggerHandler
}

// NewApp wires the whole pipeline from settings plus the two injected
// backends that differ per deployment: the host binding and the document
// store.
func NewApp(settings *config.Settings, host hostapi.Client, kv store.KV, docs store.Documents, logger *zap.Logger) *App {
	var provider *gemini.Client
	if settings.AIEnabled() {
		provider = gemini.NewClient(settings.GeminiAPIKey, logger)
	}

	idem := idempotency.NewStore(kv, logger)
	events := feed.New(docs, "hub-bot-9000", logger)
	hub := feed.NewHub(logger)
	events.Subscribe(hub)

	board := leaderboard.NewActor(docs, host, settings.Community, logger)
	engine := achievements.NewEngine(kv, logger)
	points := analyzer.NewTalkingPoints(kv, logger)

	// A nil *gemini.Client must stay a nil interface for the "no provider"
	// checks downstream.
	var toneProvider classify.Provider
	var searchProvider sources.Provider
	var enrichProvider enrichment.Provider
	if provider != nil {
		toneProvider = provider
		searchProvider = provider
		enrichProvider = provider
	}

	tone := classify.NewTone(kv, toneProvider, idem, settings.Community, logger)
	comTone := classify.NewCommunity(kv, toneProvider, idem, host, settings.Community,
		settings.ClassifierAllow, settings.ClassifierBlock, logger)

	archive := hostapi.NewArchiveClient(settings.Archive.BaseURL, logger)
	strategies := []sources.Strategy{
		sources.NewNative(host, settings.DramaCommunities),
		sources.NewArchive(archive),
	}
	if searchProvider != nil {
		strategies = append(strategies, sources.NewAISearch(searchProvider))
	}
	chain := sources.NewChain(logger, strategies...)

	threadAnalyzer := analyzer.NewThread(host, board, engine, points, idem, docs,
		settings.Community, settings.AchievementCooldownHours, logger)

	sched := scheduler.New(scheduler.DefaultConfig(), logger)

	vel := velocity.NewDetector(kv, host, host, events, settings.Community,
		settings.VelocityThreshold, logger)

	enrich := enrichment.NewJob(board, enrichProvider, logger)

	app := &App{
		Settings: settings,
		Logger:   logger,
		KV:       kv,
		Docs:     docs,
		Host:     host,
		Archive:  archive,
		Idem:     idem,
		Sched:    sched,
		Board:    board,
		Engine:   engine,
		Tone:     tone,
		ComTone:  comTone,
		Chain:    chain,
		Analyzer: threadAnalyzer,
		Velocity: vel,
		Enrich:   enrich,
		Feed:     events,
		Hub:      hub,
		triggers: make(map[string][]TriggerHandler),
	}

	app.Scanner = NewScanner(app)
	app.Notifier = NewNotifier(app)

	app.RegisterJob(jobNotifyBrigade, app.Notifier.NotifyBrigade)
	app.RegisterJob(jobPostAchievement, app.Notifier.PostAchievement)
	app.RegisterTrigger(TriggerCommentCreate, app.onCommentCreate)
	app.RegisterTrigger(TriggerModMail, app.onModMail)

	return app
}

// RegisterJob installs a named delayed-job handler.
func (a *App) RegisterJob(name string, handler scheduler.Handler) {
	a.Sched.Register(name, handler)
}

// RegisterTrigger appends a handler for a host trigger event.
func (a *App) RegisterTrigger(event string, handler TriggerHandler) {
	a.triggers[event] = append(a.triggers[event], handler)
}

// OnTrigger dispatches one host trigger delivery to every registered
// handler. Handler errors are logged, never propagated to the host.
func (a *App) OnTrigger(ctx context.Context, event string, payload []byte) {
	for _, handler := range a.triggers[event] {
		if err := handler(ctx, payload); err != nil {
			a.Logger.Warn("trigger handler failed",
				zap.String("event", event), zap.Error(err))
		}
	}
}

// Start launches the background loops: scheduler, leaderboard actor, feed
// hub, the scan cron and the enrichment cron.
func (a *App) Start(ctx context.Context) {
	a.Board.Start(ctx)
	a.Sched.Start(ctx)
	go a.Hub.Run(ctx)

	if a.Settings.Enabled {
		a.Sched.RunEvery(ctx, jobScan, 15*time.Minute, a.Scanner.Tick)
		a.Sched.RunEvery(ctx, jobEnrich, 24*time.Hour, a.Enrich.Run)
	}
}
