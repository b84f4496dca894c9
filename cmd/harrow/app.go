package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/jbweber/harrow/internal/backup"
	"github.com/jbweber/harrow/internal/config"
	"github.com/jbweber/harrow/internal/libvirt"
	"github.com/jbweber/harrow/internal/loader"
	"github.com/jbweber/harrow/internal/metrics"
	"github.com/jbweber/harrow/internal/params"
	"github.com/jbweber/harrow/internal/plugin"
	"github.com/jbweber/harrow/internal/reconcile"
	"github.com/jbweber/harrow/internal/state"
	"github.com/jbweber/harrow/internal/template"
	"github.com/jbweber/harrow/internal/workflow"
)

// App holds the process-wide collaborators built from the configuration.
type App struct {
	Config  *config.Config
	Log     *logrus.Entry
	Metrics *metrics.Metrics
	Opener  *libvirt.Opener
	Store   *state.FileStore
	Fs      afero.Fs
}

// NewApp builds an App from cfg.
func NewApp(cfg *config.Config) (*App, error) {
	logger, err := cfg.Logger()
	if err != nil {
		return nil, err
	}
	a := &App{
		Config: cfg,
		Log:    logrus.NewEntry(logger),
		Opener: &libvirt.Opener{Socket: cfg.Socket, Timeout: cfg.Timeout},
		Store:  state.NewFileStore(cfg.StateDir),
		Fs:     afero.NewOsFs(),
	}
	if cfg.Metrics.File != "" {
		a.Metrics = metrics.New()
	}
	return a, nil
}

// Close flushes metrics.
func (a *App) Close() error {
	if err := a.Metrics.WriteTextfile(a.Config.Metrics.File); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

// Defaults returns the node defaults of the configuration.
func (a *App) Defaults() loader.Defaults {
	return loader.Defaults{LibvirtAuth: a.Config.URI, BackupDir: a.Config.BackupDir}
}

// Runner loads the blueprint at path and returns a runner whose resources
// resolve relative to the blueprint directory.
func (a *App) Runner(path string, concurrency int) (*workflow.Runner, *workflow.Plan, error) {
	b, err := loader.LoadFromFile(a.Fs, path)
	if err != nil {
		return nil, nil, err
	}

	env := &reconcile.Env{
		Opener:   a.Opener,
		Renderer: template.NewRenderer(filepath.Dir(path)),
		Resolver: params.NewResolver(),
		Backups:  &backup.Store{Fs: a.Fs},
		Retry:    a.Config.RetryPolicy(),
		Sleep:    reconcile.Sleep,
		Log:      a.Log.WithField("blueprint", b.Name),
		Metrics:  a.Metrics,
	}
	r := &workflow.Runner{
		Plugin:      plugin.New(env),
		Store:       a.Store,
		Log:         env.Log,
		Concurrency: concurrency,
	}
	return r, workflow.NewPlan(b, a.Defaults()), nil
}
