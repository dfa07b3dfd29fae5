package main

import (
	"context"
	"fmt"

	"github.com/gazruxenginering/doclocker/internal/browse"
	"github.com/gazruxenginering/doclocker/internal/config"
	"github.com/gazruxenginering/doclocker/internal/gdrive"
	"github.com/gazruxenginering/doclocker/internal/mirror"
	"github.com/gazruxenginering/doclocker/internal/runlock"
	"github.com/gazruxenginering/doclocker/internal/store"
)

// openStore opens the mirror database named by the resolved config.
func (cc *CLIContext) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, cc.Cfg.DatabasePath(), cc.Logger)
	if err != nil {
		return nil, err
	}

	cc.Logger.Debug("opened store", "path", cc.Cfg.DatabasePath())

	return st, nil
}

// newDriveClient builds the service-account Drive client.
func (cc *CLIContext) newDriveClient(ctx context.Context) (*gdrive.Client, error) {
	creds, err := gdrive.LoadCredentials(cc.Cfg.CredentialsJSON, cc.Cfg.CredentialsPath())
	if err != nil {
		return nil, fmt.Errorf("%w (set %s or credentials_file)", err, config.EnvServiceAccountJSON)
	}

	return gdrive.NewFromServiceAccount(ctx, creds, cc.Cfg.PageSize, cc.Logger)
}

// newEngine wires a sync engine over st and a fresh Drive client.
func (cc *CLIContext) newEngine(ctx context.Context, st *store.Store) (*mirror.Engine, error) {
	client, err := cc.newDriveClient(ctx)
	if err != nil {
		return nil, err
	}

	return mirror.NewEngine(&mirror.EngineConfig{
		Lister:   client,
		Store:    st,
		Lock:     runlock.New(cc.Cfg.LockPath()),
		Roots:    mirrorRoots(cc.Cfg.Roots),
		MaxDepth: cc.Cfg.MaxDepth,
		Logger:   cc.Logger,
	})
}

func mirrorRoots(roots []config.Root) []mirror.Root {
	out := make([]mirror.Root, len(roots))
	for i, r := range roots {
		out[i] = mirror.Root{Key: r.Key, ID: r.ID}
	}

	return out
}

// newFacade builds the browse facade. The Drive client is attached only
// when withDownloads is set, so offline browsing needs no credentials.
func (cc *CLIContext) newFacade(ctx context.Context, st *store.Store, withDownloads bool) (*browse.Facade, error) {
	if !withDownloads {
		return browse.New(st, nil, cc.Cfg.Roots, cc.Logger), nil
	}

	client, err := cc.newDriveClient(ctx)
	if err != nil {
		return nil, err
	}

	return browse.New(st, client, cc.Cfg.Roots, cc.Logger), nil
}

// withStore opens the store, runs fn, and closes the store.
func withStore(ctx context.Context, cc *CLIContext, fn func(st *store.Store) error) error {
	st, err := cc.openStore(ctx)
	if err != nil {
		return err
	}

	defer st.Close()

	return fn(st)
}
