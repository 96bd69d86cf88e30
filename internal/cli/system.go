package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/recordkeeper/internal/menu"
	"github.com/mesh-intelligence/recordkeeper/internal/metrics"
	"github.com/mesh-intelligence/recordkeeper/internal/schema"
	"github.com/mesh-intelligence/recordkeeper/internal/store"
	"github.com/mesh-intelligence/recordkeeper/internal/telemetry"
	"github.com/mesh-intelligence/recordkeeper/pkg/types"
)

// newSystemCmd returns the command that runs the named system's menu.
func newSystemCmd(a *app, name string) *cobra.Command {
	title := name
	if sch, err := schema.Load(name); err == nil {
		title = sch.Title
	}
	return &cobra.Command{
		Use:   name,
		Short: "Run the " + title,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSystem(cmd, name)
		},
	}
}

func (a *app) runSystem(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sch, err := schema.Load(name)
	if err != nil {
		return err
	}

	shutdown, err := telemetry.Setup(ctx, "keeper", a.settings.Otel.Endpoint)
	if err != nil {
		a.log.Warn("tracing disabled", zap.Error(err))
	}
	defer func() { _ = shutdown(context.Background()) }()

	recorder := metrics.NewRecorder(name)
	if addr := a.settings.Metrics.Addr; addr != "" {
		serveCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if _, err := recorder.Serve(serveCtx, addr, a.log); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	s, err := a.openStore(ctx, sch, store.WithObserver(recorder))
	if err != nil {
		return err
	}
	defer s.Close()

	return menu.New(s, cmd.InOrStdin(), cmd.OutOrStdout(), menu.WithLogger(a.log)).Run(ctx)
}

// openStore opens sch over the configured backend.
func (a *app) openStore(ctx context.Context, sch *types.Schema, opts ...store.Option) (*store.Store, error) {
	p, err := openPersister(ctx, a.settings.Config, sch)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", a.settings.Backend, err)
	}
	opts = append([]store.Option{store.WithLogger(a.log)}, opts...)
	s, err := store.Open(ctx, sch, p, opts...)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	a.log.Info("store opened", zap.String("system", sch.Name), zap.String("backend", a.settings.Backend))
	return s, nil
}
