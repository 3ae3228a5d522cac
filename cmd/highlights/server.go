package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.ntppool.org/common/config/depenv"
	"go.ntppool.org/common/health"
	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/metricsserver"
	"go.ntppool.org/common/tracing"
	"go.ntppool.org/common/version"
	"golang.org/x/sync/errgroup"

	"go.readwell.dev/highlights/hldb"
	"go.readwell.dev/highlights/opsapi"
	"go.readwell.dev/highlights/selector"
)

type serverCmd struct {
	Listen         string `default:"${ops_listen}" help:"Ops listener address"`
	MetricsPort    int    `default:"9000" help:"Prometheus metrics port"`
	HealthPort     int    `default:"8080" help:"Health check port"`
	Migrate        bool   `default:"true" negatable:"" help:"Create missing tables on start"`
	DeploymentMode string `default:"devel" env:"DEPLOYMENT_MODE" help:"prod, test or devel"`
}

func (cmd serverCmd) Run(ctx context.Context, dbcfg *hldb.DBConfig, cfg *selector.Config) error {
	log := logger.FromContext(ctx)
	log.Info("highlights", "version", version.Version())

	depEnv := depenv.DeploymentEnvironmentFromString(cmd.DeploymentMode)
	if depEnv == depenv.DeployUndefined {
		return fmt.Errorf("unknown deployment mode %q", cmd.DeploymentMode)
	}

	tpShutdown, err := initTracing(ctx, depEnv)
	if err != nil {
		log.Warn("tracing setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := tpShutdown(shutdownCtx); err != nil {
				log.Debug("trace provider shutdown", "err", err)
			}
		}()
	}

	metricssrv := metricsserver.New()
	version.RegisterMetric("highlights", metricssrv.Registry())
	metrics := selector.NewMetrics(metricssrv.Registry())

	dbconn, err := hldb.OpenDB(ctx, *dbcfg)
	if err != nil {
		return err
	}
	defer dbconn.Close()

	if cmd.Migrate {
		if err := hldb.Migrate(ctx, dbconn, dbcfg.Driver); err != nil {
			return err
		}
	}

	sl, err := selector.NewSelector(selector.NewDBStore(dbconn), *cfg, log, metrics)
	if err != nil {
		return err
	}

	runCtx := ctx
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return metricssrv.ListenAndServe(ctx, cmd.MetricsPort)
	})

	go health.HealthCheckListener(ctx, cmd.HealthPort, log)

	sched := selector.NewScheduler(sl)
	sched.Start(ctx)
	defer sched.Stop()

	g.Go(func() error {
		return opsapi.New(sl, log).ListenAndServe(ctx, cmd.Listen)
	})

	err = g.Wait()
	if err != nil && runCtx.Err() == nil {
		log.Error("server error", "err", err)
		return err
	}
	log.Info("shutting down")
	return nil
}

func initTracing(ctx context.Context, depEnv depenv.DeploymentEnvironment) (tracing.TpShutdownFunc, error) {
	return tracing.InitTracer(ctx,
		&tracing.TracerConfig{
			ServiceName: "highlights",
			Environment: depEnv.String(),
			EndpointURL: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	)
}
