/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/bryanwills/NetAlertX/pkg/config"
	"github.com/bryanwills/NetAlertX/pkg/consumers/scans"
	"github.com/bryanwills/NetAlertX/pkg/cycle"
	"github.com/bryanwills/NetAlertX/pkg/db"
	"github.com/bryanwills/NetAlertX/pkg/lifecycle"
	"github.com/bryanwills/NetAlertX/pkg/logger"
	"github.com/bryanwills/NetAlertX/pkg/models"
	"github.com/bryanwills/NetAlertX/pkg/natsutil"
	"github.com/bryanwills/NetAlertX/pkg/notify"
)

const serviceName = "netalertx-presence"

var (
	ErrDBPasswordEmpty = errors.New("database password file is empty")
	ErrNATSRequired    = errors.New("nats configuration is required unless -scan is given")
	ErrDBUnreachable   = errors.New("database is unreachable")
)

const dbPingTimeout = 10 * time.Second

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "/etc/netalertx/presence.json", "Path to config file")
	scanPath := flag.String("scan", "", "Run a single cycle from a scan report file and exit")
	flag.Parse()

	if err := run(*configPath, *scanPath); err != nil {
		log.Fatalf("Presence engine failed: %v", err)
	}
}

func run(configPath, scanPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cfg models.PresenceConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := applyDBPassword(&cfg); err != nil {
		return err
	}

	mainLogger, err := lifecycle.CreateComponentLogger(ctx, "presence", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() { _ = lifecycle.ShutdownLogger() }()

	shutdownTelemetry := initTelemetry(ctx, &cfg, mainLogger)
	defer shutdownTelemetry()

	dbLogger, err := lifecycle.CreateComponentLogger(ctx, "db", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize db logger: %w", err)
	}

	pool, err := db.NewCNPGPool(ctx, cfg.Database, dbLogger)
	if err != nil {
		return err
	}

	store, err := db.NewStore(pool, dbLogger)
	if err != nil {
		pool.Close()
		return err
	}
	defer store.Close()

	if err := pingStore(ctx, store, dbPingTimeout); err != nil {
		return err
	}

	if err := db.RunMigrations(ctx, pool, dbLogger); err != nil {
		return err
	}

	notifyLogger, err := lifecycle.CreateComponentLogger(ctx, "notify", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize notify logger: %w", err)
	}

	gate := notify.NewGate(notifyLogger,
		notify.WithDefaults(cfg.Settings),
		notify.WithTimezone(cfg.Timezone),
	)

	runnerCfg := &cycle.Config{
		Store:      store,
		Dispatcher: gate,
		Defaults:   cfg.Settings,
		Logger:     mainLogger,
	}

	var js jetstream.JetStream

	if cfg.NATS != nil {
		nc, err := natsutil.Connect(ctx, cfg.NATS, mainLogger)
		if err != nil {
			return err
		}
		defer nc.Close()

		js, err = setupJetStream(ctx, nc, cfg.NATS)
		if err != nil {
			return err
		}

		runnerCfg.Publisher = natsutil.NewBatchPublisher(js, cfg.NATS.NotifySubject, mainLogger)
	}

	runner, err := cycle.NewRunner(runnerCfg)
	if err != nil {
		return err
	}

	if scanPath != "" {
		return runOnce(ctx, runner, scanPath, time.Duration(cfg.CycleTimeout))
	}

	if cfg.NATS == nil {
		return ErrNATSRequired
	}

	consumerLogger, err := lifecycle.CreateComponentLogger(ctx, "scan-consumer", cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize consumer logger: %w", err)
	}

	svc, err := scans.NewService(cfg.NATS, js, runner, time.Duration(cfg.CycleTimeout), consumerLogger)
	if err != nil {
		return err
	}

	reaper := cycle.NewHistoryReaper(store, nil, mainLogger,
		time.Duration(cfg.Retention.Interval), cfg.Retention.DaysToKeepEvents)

	go reaper.Start(ctx)

	return lifecycle.RunServer(ctx, &lifecycle.ServerOptions{
		ListenAddr:  cfg.ListenAddr,
		ServiceName: serviceName,
		Service:     svc,
		Logger:      mainLogger,
	})
}

// pingStore fails fast when the database cannot be reached at startup.
func pingStore(ctx context.Context, p pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDBUnreachable, err)
	}

	return nil
}

// runOnce runs a single cycle from a scan report file and prints the batch.
func runOnce(ctx context.Context, runner *cycle.Runner, path string, timeout time.Duration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read scan report: %w", err)
	}

	var report models.ScanReport
	if err := json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode scan report %s: %w", path, err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := runner.Run(ctx, &report)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(outcome.Batch)
}

func setupJetStream(ctx context.Context, nc *nats.Conn, cfg *models.NATSConfig) (jetstream.JetStream, error) {
	js, err := natsutil.JetStream(nc, cfg.Domain)
	if err != nil {
		return nil, err
	}

	if _, err := natsutil.EnsureStream(ctx, js, cfg.Stream, cfg.Subject, cfg.NotifySubject); err != nil {
		return nil, err
	}

	return js, nil
}

func initTelemetry(ctx context.Context, cfg *models.PresenceConfig, log logger.Logger) func() {
	otelCfg := &cfg.Logging.OTel

	tp, err := logger.InitializeTracing(ctx, logger.TracingConfig{
		ServiceName: serviceName,
		Logger:      log,
		OTel:        otelCfg,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Tracing disabled")
	}

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		ServiceName: serviceName,
		OTel:        otelCfg,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		log.Warn().Err(err).Msg("Metrics export disabled")
	}

	return func() {
		if tp == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = tp.Shutdown(shutdownCtx)
	}
}

// applyDBPassword reads the database password from a mounted secret when the
// config leaves it empty.
func applyDBPassword(cfg *models.PresenceConfig) error {
	if cfg.Database == nil || cfg.Database.Password != "" {
		return nil
	}

	pwPath := os.Getenv("NETALERTX_DB_PASSWORD_FILE")
	if pwPath == "" {
		return nil
	}

	data, err := os.ReadFile(pwPath)
	if err != nil {
		return fmt.Errorf("read database password file: %w", err)
	}

	pwd := strings.TrimSpace(string(data))
	if pwd == "" {
		return fmt.Errorf("%w: %s", ErrDBPasswordEmpty, pwPath)
	}

	cfg.Database.Password = pwd

	return nil
}
