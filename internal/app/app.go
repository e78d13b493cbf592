// Package app wires the engine's components from configuration.
package app

import (
	"tubescribe/internal/ai"
	"tubescribe/internal/apihandlers"
	"tubescribe/internal/captionfeed"
	"tubescribe/internal/config"
	"tubescribe/internal/jobs"
	"tubescribe/internal/media"
	"tubescribe/internal/queue"
	"tubescribe/internal/registry"
	"tubescribe/internal/resolver"
	"tubescribe/internal/stt"
	"tubescribe/internal/ytdlp"
)

// App owns every long-lived component.
type App struct {
	Config   *config.Config
	Registry *registry.Registry
	Queue    *queue.Queue
	Invoker  *ytdlp.Invoker
	Media    *media.Client
	Service  *jobs.Service
	Handlers *apihandlers.Handler
}

// NewApp builds the full component graph.
func NewApp(cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if err := a.initInvoker(); err != nil {
		return nil, err
	}
	a.initRegistry()
	a.initQueue()
	a.initService()
	return a, nil
}

func (a *App) initInvoker() error {
	inv, err := ytdlp.New(
		a.Config.YtDlp.Binary,
		a.Config.YtDlp.CookiesFile,
		a.Config.YtDlp.UserAgent,
		a.Config.YtDlp.TempDir,
	)
	if err != nil {
		return err
	}
	a.Invoker = inv
	a.Media = media.NewClient(inv)
	return nil
}

func (a *App) initRegistry() {
	a.Registry = registry.New(a.Config.Jobs.Retention)
}

func (a *App) initQueue() {
	a.Queue = queue.New(queue.Options{
		Concurrency: a.Config.Queue.Concurrency,
		IntervalCap: a.Config.Queue.IntervalCap,
		Interval:    a.Config.Queue.Interval,
		TaskTimeout: a.Config.Queue.TaskTimeout,
	})
}

func (a *App) initService() {
	feed := captionfeed.NewClient(a.Config.CaptionFeed.BaseURL)
	transcriber := stt.NewWhisperTranscriber(a.Config)
	res := resolver.New(feed, a.Invoker, transcriber, a.Config.STT.MaxAudioMB)
	norm := ai.NewNormalizer(a.Config)

	coord := jobs.NewCoordinator(a.Registry, a.Queue.Depth, a.Config.YtDlp.TempDir)
	a.Service = jobs.NewService(a.Registry, a.Queue, coord, a.Media, a.Invoker, res, norm)
	a.Handlers = apihandlers.New(a.Service, a.Config.YtDlp.CookiesFile)
}

// Close shuts components down in dependency order.
func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.Registry != nil {
		a.Registry.Close()
	}
}
