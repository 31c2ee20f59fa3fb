// Package app composes the chat client with fx: config, logging, lock,
// backend store, realtime feed, chat core and TUI.
package app

import (
	"context"

	"github.com/pawkit/pawchat/internal/backend"
	"github.com/pawkit/pawchat/internal/booking"
	"github.com/pawkit/pawchat/internal/bus"
	"github.com/pawkit/pawchat/internal/config"
	"github.com/pawkit/pawchat/internal/conn"
	"github.com/pawkit/pawchat/internal/convo"
	"github.com/pawkit/pawchat/internal/directory"
	"github.com/pawkit/pawchat/internal/identity"
	"github.com/pawkit/pawchat/internal/lock"
	"github.com/pawkit/pawchat/internal/logging"
	"github.com/pawkit/pawchat/internal/session"
	"github.com/pawkit/pawchat/internal/tui"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module returns the fx module for the chat client, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("pawchat",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideProfile,
			provideBus,
			provideMachine,
			provideLock,
			provideClient,
			provideFeed,
			provideIdentity,
			provideDirectory,
			provideBooking,
			provideService,
			provideState,
			provideSubs,
			providePresence,
			provideTUI,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(session.LogPath(p.ProfileName), p.ProfileName)
}

func provideProfile(p Params) (*config.Profile, error) {
	return config.LoadProfile(session.ProfilePath(p.ProfileName))
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideMachine(b *bus.Bus) *conn.Machine {
	return conn.NewMachine(b)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := session.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(session.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideClient(profile *config.Profile, logger *zap.Logger) (*backend.Client, error) {
	client, err := backend.Open(profile.BackendDSN)
	if err != nil {
		return nil, err
	}
	logger.Info("backend store connected")
	return client, nil
}

func provideFeed(profile *config.Profile, machine *conn.Machine, logger *zap.Logger) (*backend.Feed, error) {
	feed, err := backend.ConnectFeed(backend.FeedOptions{
		URL: profile.NatsURL,
		OnDisconnect: func(err error) {
			logger.Warn("realtime feed disconnected", zap.Error(err))
			_ = machine.Transition(conn.Reconnecting)
		},
		OnReconnect: func() {
			logger.Info("realtime feed reconnected")
			_ = machine.Transition(conn.Ready)
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("realtime feed connected", zap.String("url", profile.NatsURL))
	return feed, nil
}

func provideIdentity(profile *config.Profile) *identity.Identity {
	return identity.New(profile.UserID)
}

func provideDirectory(client *backend.Client) *directory.Directory {
	return directory.New(client)
}

func provideBooking(client *backend.Client) *booking.Lookup {
	return booking.NewLookup(client)
}

func provideService(id *identity.Identity, client *backend.Client, feed *backend.Feed, dir *directory.Directory, logger *zap.Logger) *convo.Service {
	return convo.NewService(id.UserID(), client, feed, dir, logger)
}

func provideState() *convo.State {
	return convo.NewState()
}

func provideSubs(id *identity.Identity, feed *backend.Feed, svc *convo.Service, logger *zap.Logger) *convo.SubscriptionManager {
	return convo.NewSubscriptionManager(id.UserID(), feed, svc, logger)
}

func providePresence(profile *config.Profile, b *bus.Bus, logger *zap.Logger) convo.PresenceAndReceipts {
	if !profile.SimulatePresence {
		return convo.NopPresence{}
	}
	return convo.NewSimulatedPresence(b, convo.SimOptions{}, logger)
}

func provideTUI(p Params, svc *convo.Service, state *convo.State, subs *convo.SubscriptionManager, presence convo.PresenceAndReceipts, dir *directory.Directory, bkg *booking.Lookup, machine *conn.Machine, b *bus.Bus, logger *zap.Logger) *tui.App {
	return tui.NewApp(tui.Deps{
		Profile:   p.ProfileName,
		Service:   svc,
		State:     state,
		Subs:      subs,
		Presence:  presence,
		Directory: dir,
		Booking:   bkg,
		Machine:   machine,
		Bus:       b,
		Logger:    logger,
	})
}

func registerLifecycle(lc fx.Lifecycle, shutdowner fx.Shutdowner, app *tui.App, lk *lock.Lock, client *backend.Client, feed *backend.Feed, presence convo.PresenceAndReceipts, machine *conn.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			_ = machine.Transition(conn.Connecting)

			if sim, ok := presence.(*convo.SimulatedPresence); ok {
				sim.Start(context.Background())
			}

			_ = machine.Transition(conn.Ready)

			// Run the TUI in the background; quitting it shuts the app down.
			go func() {
				if err := app.Run(); err != nil {
					logger.Error("tui error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			app.Stop()
			if sim, ok := presence.(*convo.SimulatedPresence); ok {
				sim.Stop()
			}
			feed.Close()
			if err := client.Close(); err != nil {
				logger.Warn("error closing backend store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("client stopped")
			return nil
		},
	})
}
