// Package app owns every long-lived component and runs the UI loop. Events
// produced on background goroutines are drained between UI steps and turned
// into state changes on the UI goroutine.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/zsprackett/tunedeck/internal/applog"
	"github.com/zsprackett/tunedeck/internal/async"
	"github.com/zsprackett/tunedeck/internal/auth"
	"github.com/zsprackett/tunedeck/internal/command"
	"github.com/zsprackett/tunedeck/internal/commands"
	"github.com/zsprackett/tunedeck/internal/config"
	"github.com/zsprackett/tunedeck/internal/events"
	"github.com/zsprackett/tunedeck/internal/ipc"
	"github.com/zsprackett/tunedeck/internal/library"
	"github.com/zsprackett/tunedeck/internal/model"
	"github.com/zsprackett/tunedeck/internal/monitor"
	"github.com/zsprackett/tunedeck/internal/notify"
	"github.com/zsprackett/tunedeck/internal/player"
	"github.com/zsprackett/tunedeck/internal/queue"
	"github.com/zsprackett/tunedeck/internal/remote"
	"github.com/zsprackett/tunedeck/internal/session"
	"github.com/zsprackett/tunedeck/internal/signals"
	"github.com/zsprackett/tunedeck/internal/tui"
	"github.com/zsprackett/tunedeck/internal/ui"
)

const shutdownTimeout = 3 * time.Second

// Player is the part of the playback handle the run loop drives.
type Player interface {
	UpdateStatus(state model.PlayerState)
	StartWorker(resume *model.Session)
}

// Queue is the part of the play queue the run loop drives.
type Queue interface {
	Current() *model.Track
	Next(manual bool)
	HandleEvent(ev model.QueueEvent)
}

// UserData is stored on the UI runtime so actions scheduled from other
// goroutines can reach the command dispatcher.
type UserData struct {
	Cmd *commands.Manager
}

// Quit implements signals.Quitter.
func (u *UserData) Quit(rt *tui.Runtime) {
	u.Cmd.Quit(rt)
}

type Application struct {
	player     Player
	queue      Queue
	events     *events.Manager
	publishers events.Publishers
	ui         *tui.Runtime
	bg         *async.Runtime
	logger     *slog.Logger

	// closers run after the UI has shut down, in order.
	closers []func() error
}

// New builds the application from cfg. Every startup failure is returned
// before the terminal is taken over.
func New(cfg config.Config, logger *slog.Logger) (_ *Application, err error) {
	bg := async.New(context.Background(), logger)
	var closers []func() error
	defer func() {
		if err == nil {
			return
		}
		for _, c := range closers {
			c()
		}
		bg.Shutdown(shutdownTimeout)
	}()

	creds, err := auth.Acquire(auth.Options{
		ConfigToken: cfg.Backend.Token,
		CacheFile:   config.CachePath("credentials"),
		Prompt:      auth.TerminalPrompt(os.Stdin, os.Stderr),
	})
	if err != nil {
		return nil, err
	}
	logger.Info("credentials acquired", "source", creds.Source)

	sink := tui.NewSink()
	em := events.NewManager(sink, applog.For(logger, "events"))

	var publishers events.Publishers
	if cfg.Notifications.Enabled {
		n := notify.New(notify.Config{
			Enabled: true,
			Command: cfg.Notifications.Command,
			Webhook: cfg.Notifications.Webhook,
			NtfyURL: cfg.Notifications.NtfyURL,
		}, applog.For(logger, "notify"))
		n.Start(bg)
		publishers = append(publishers, n)
	}

	var ipcServer *ipc.Server
	if cfg.IPC.Enabled {
		ipcServer, err = ipc.Listen(cfg.SocketPath(), em.Clone(), applog.For(logger, "ipc"))
		if err != nil {
			return nil, err
		}
		closers = append(closers, ipcServer.Close)
		publishers = append(publishers, ipcServer)
	}

	var remoteServer *remote.Server
	if cfg.Remote.Enabled {
		remoteServer = remote.New(remoteConfig(cfg.Remote), em.Clone(), applog.For(logger, "remote"))
		if err := remoteServer.Listen(); err != nil {
			return nil, err
		}
		closers = append(closers, remoteServer.Close)
		publishers = append(publishers, remoteServer)
	}

	fmt.Println("Connecting to backend..")

	client := player.NewClient(cfg.Backend.URL, creds.Token)
	worker := session.NewWorker(session.Config{
		URL:         cfg.Backend.URL,
		Token:       creds.Token,
		PreloadLead: cfg.Backend.PreloadLead.Std(),
	}, em.Clone(), applog.For(logger, "session"))
	p := player.New(player.Config{
		RestartBackoff:    cfg.Backend.RestartBackoff.Std(),
		MaxRestartBackoff: cfg.Backend.MaxRestartBackoff.Std(),
		MaxRestarts:       cfg.Backend.MaxRestarts,
	}, client, worker, bg, applog.For(logger, "player"))
	q := queue.New(p)
	lib := library.New(client, applog.For(logger, "library"))

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("create screen: %w", err)
	}
	rt, err := tui.NewRuntime(screen, sink, applog.For(logger, "tui"))
	if err != nil {
		return nil, err
	}

	theme, themeErrs := ui.LoadTheme(cfg.Theme)
	for _, e := range themeErrs {
		logger.Warn("ignoring theme entry", "err", e)
	}

	cmds := commands.New(p, q, lib, cfg.VolumeStep, applog.For(logger, "commands"))
	layout := ui.NewLayout(ui.NewStatusBar(p, q, theme))
	layout.AddScreen("library", ui.NewLibraryView(lib, q, theme))
	layout.AddScreen("search", ui.NewSearchView(lib, q, theme))
	layout.AddScreen("queue", ui.NewQueueView(q, lib, theme))
	layout.AddScreen("help", ui.NewHelpView(commands.Keybindings(cfg.Keybindings), theme))
	layout.SetFocusFunc(rt.SetFocus)
	rt.SetRoot(layout)
	cmds.SetScreens(layout)
	cmds.RegisterKeybindings(rt, cfg.Keybindings)
	rt.SetUserData(&UserData{Cmd: cmds})
	selectInitialScreen(layout, cfg.InitialScreen, logger)

	a := &Application{
		player:     p,
		queue:      q,
		events:     em,
		publishers: publishers,
		ui:         rt,
		bg:         bg,
		logger:     applog.For(logger, "app"),
		closers:    closers,
	}

	sigs, stopSignals := signals.Notify()
	a.closers = append(a.closers, func() error { stopSignals(); return nil })
	bg.Spawn("signals", func(ctx context.Context) error {
		return signals.Watch(ctx, sink, sigs, applog.For(logger, "signals"))
	})
	if ipcServer != nil {
		ipcServer.Start(bg)
	}
	if remoteServer != nil {
		remoteServer.Start(bg)
	}
	p.Start()
	p.StartWorker(nil)
	bg.Spawn("library-load", func(ctx context.Context) error {
		return lib.Load(ctx, em.Clone())
	})
	monitor.New(p, sink, time.Second, applog.For(logger, "monitor")).Start(bg)

	return a, nil
}

func remoteConfig(c config.RemoteConfig) remote.Config {
	tlsCache := c.TLS.CacheDir
	if tlsCache == "" && c.TLS.Mode == "self-signed" {
		tlsCache = filepath.Join(config.Dir(), "certs")
	}
	return remote.Config{
		Host:         c.Host,
		Port:         c.Port,
		Username:     c.Username,
		PasswordHash: c.PasswordHash,
		JWTSecret:    c.JWTSecret,
		TokenTTL:     c.TokenTTL.Std(),
		Announce:     c.Announce,
		TLS: remote.TLSConfig{
			Mode:     c.TLS.Mode,
			CertFile: c.TLS.CertFile,
			KeyFile:  c.TLS.KeyFile,
			CacheDir: tlsCache,
		},
	}
}

// Screens is the view switcher used at startup.
type Screens interface {
	HasScreen(name string) bool
	SetScreen(name string) error
}

func selectInitialScreen(s Screens, name string, logger *slog.Logger) {
	if name == "" || !s.HasScreen(name) {
		if name != "" {
			logger.Warn("Invalid screen name", "screen", name)
		}
		name = "library"
	}
	if err := s.SetScreen(name); err != nil {
		logger.Error("could not select initial screen", "screen", name, "err", err)
	}
}

// Run drives the UI until it stops, dispatching queued events after every
// step, then tears everything down.
func (a *Application) Run() {
	for a.ui.IsRunning() {
		a.ui.Step()
		for ev := range a.events.Drain() {
			a.dispatch(ev)
		}
	}
	a.shutdown()
}

func (a *Application) dispatch(ev events.Event) {
	switch ev := ev.(type) {
	case events.Player:
		a.player.UpdateStatus(ev.State)
		a.publishers.Publish(ev.State, a.queue.Current())
		if ev.State == model.FinishedTrack {
			a.queue.Next(false)
		}
	case events.Queue:
		a.queue.HandleEvent(ev.Occurrence)
	case events.SessionDied:
		a.logger.Warn("session died, restarting worker")
		a.player.StartWorker(nil)
	case events.IpcInput:
		cmds, err := command.Parse(ev.Text)
		if err != nil {
			a.logger.Error("Parsing error", "input", ev.Text, "err", err)
			return
		}
		ud, ok := a.ui.UserData().(*UserData)
		if !ok {
			return
		}
		for _, c := range cmds {
			a.logger.Info("executing command from IPC", "command", c.String())
			ud.Cmd.Handle(a.ui, c)
		}
	}
}

func (a *Application) shutdown() {
	a.ui.Close()
	a.events.Close()
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("shutdown", "err", err)
		}
	}
	a.bg.Shutdown(shutdownTimeout)
	a.logger.Info("exited")
}
