// Package app wires the stores together. Everything is constructed once here
// and handed to callers by reference; nothing resolves a store through a
// global lookup.
package app

import (
	"context"
	"database/sql"
	"time"

	"freshnest/internal/config"
	"freshnest/internal/db"
	"freshnest/internal/engine"
	"freshnest/internal/messages"
	"freshnest/internal/migrate"
	"freshnest/internal/notify"
	"freshnest/internal/store"
)

type App struct {
	Config   *config.Config
	DB       *sql.DB
	Store    store.Store
	Engine   *engine.Engine
	Messages *messages.Store
	Notify   *notify.Store
}

// Open builds a fully wired App against the workspace's database. The caller
// owns Close.
func Open(ctx context.Context, workspace string) (*App, error) {
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return New(ctx, cfg, conn), nil
}

// New wires stores over an already opened and migrated database. Used by
// Open and by tests running against a throwaway database.
func New(ctx context.Context, cfg *config.Config, conn *sql.DB) *App {
	port := store.New(conn)
	n := notify.New(ctx, port)
	eng := engine.New(ctx, port, n)
	if pause := cfg.Pause(); pause > 0 {
		eng.Pause = func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pause):
				return nil
			}
		}
	}
	return &App{
		Config:   cfg,
		DB:       conn,
		Store:    port,
		Engine:   eng,
		Messages: messages.New(ctx, port, n),
		Notify:   n,
	}
}

// Reset restores every collection to its seed and reassigns feed sequence
// numbers from scratch.
func (a *App) Reset(ctx context.Context) error {
	if err := a.Engine.Reset(ctx); err != nil {
		return err
	}
	if err := a.Messages.Reset(ctx); err != nil {
		return err
	}
	return a.Notify.Reset(ctx)
}

func (a *App) Close() error {
	return a.DB.Close()
}
