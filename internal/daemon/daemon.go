package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/haggle-network/haggle/internal/api"
	"github.com/haggle-network/haggle/internal/app/trader"
	"github.com/haggle-network/haggle/internal/infra/gemini"
	"github.com/haggle-network/haggle/internal/infra/sqlite"
	"github.com/haggle-network/haggle/internal/negotiation"
	"github.com/haggle-network/haggle/internal/settlement"
)

// Daemon owns the wired service: store, actors, trade pipeline, HTTP API.
type Daemon struct {
	cfg    Config
	db     *sqlite.DB
	llm    *gemini.Client
	server *http.Server
}

// New wires a daemon from the config. The Gemini key is required; the
// trade endpoint cannot negotiate without dialogue actors.
func New(ctx context.Context, cfg Config) (*Daemon, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}

	llm, err := gemini.NewClient(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
	if err != nil {
		db.Close()
		return nil, err
	}

	completer := &deadlineCompleter{inner: llm, deadline: cfg.LLM.LLMTimeout()}
	orchestrator := negotiation.New(
		negotiation.NewBuyerActor(completer),
		negotiation.NewSellerActor(completer),
		db,
	)
	engine := settlement.New(db, settlement.Config{MaxRetries: cfg.Settlement.MaxRetries})

	srv := api.NewServer(trader.New(db, orchestrator, engine))
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}
	if cfg.API.AuthSecret != "" {
		srv.SetAuthSecret(cfg.API.AuthSecret)
	}

	return &Daemon{
		cfg: cfg,
		db:  db,
		llm: llm,
		server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
			Handler: srv.Handler(),
		},
	}, nil
}

// Run serves the API until the context is canceled, then shuts down
// gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", d.server.Addr)
		errCh <- d.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases the store and LLM handles.
func (d *Daemon) Close() error {
	d.llm.Close()
	return d.db.Close()
}

// deadlineCompleter bounds each actor invocation. A hung dialogue actor is
// an external-collaborator concern; the deadline keeps one from pinning a
// request forever.
type deadlineCompleter struct {
	inner    negotiation.Completer
	deadline time.Duration
}

func (c *deadlineCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()
	return c.inner.Complete(ctx, system, prompt)
}
