package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/openvital/smartva-bridge/internal/api"
	"github.com/openvital/smartva-bridge/internal/archive"
	"github.com/openvital/smartva-bridge/internal/config"
	"github.com/openvital/smartva-bridge/internal/dedup"
	"github.com/openvital/smartva-bridge/internal/dhis"
	"github.com/openvital/smartva-bridge/internal/metrics"
	"github.com/openvital/smartva-bridge/internal/odk"
	"github.com/openvital/smartva-bridge/internal/pipeline"
	"github.com/openvital/smartva-bridge/internal/pkg/logger"
	"github.com/openvital/smartva-bridge/internal/scheduler"
	"github.com/openvital/smartva-bridge/internal/smartva"
	"github.com/openvital/smartva-bridge/internal/store"
	"github.com/openvital/smartva-bridge/internal/va"
)

var log = logger.Component("bridge")

// pipelineName keys the persisted window cursor.
const pipelineName = "va-import"

// storedBy is recorded on every event the bridge creates.
const storedBy = "smartva-bridge"

type rootOptions struct {
	configPath string
	manualPath string
	fetchAll   bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Imports verbal-autopsy causes of death into DHIS2",
		Long: `bridge pulls ODK Briefcase exports, runs the SmartVA classifier over
them, and imports the resulting causes of death into a DHIS2 event
program. Without flags it runs on a recurring schedule; --manual and
--all perform a single run and exit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.manualPath != "" {
				if _, err := os.Stat(opts.manualPath); err != nil {
					return fmt.Errorf("manual input file: %w", err)
				}
			}
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to the configuration file")
	cmd.Flags().StringVar(&opts.manualPath, "manual", "", "classify and import a local briefcase CSV, then exit")
	cmd.Flags().BoolVar(&opts.fetchAll, "all", false, "ignore the time window and fetch every record, then exit")
	cmd.MarkFlagsMutuallyExclusive("manual", "all")

	return cmd
}

func run(ctx context.Context, opts *rootOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadFromEnv(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Setup(logger.Options{
		Level:     cfg.Logging.Level,
		Console:   cfg.Logging.Console,
		RedactPII: cfg.Logging.RedactionEnabled(),
	})

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	dhisClient := dhis.NewClient(dhis.Config{
		BaseURL:      cfg.DHIS.BaseURL,
		APIVersion:   cfg.DHIS.APIVersion,
		Username:     cfg.DHIS.Username,
		Password:     cfg.DHIS.Password,
		TokenURL:     cfg.DHIS.TokenURL,
		ClientID:     cfg.DHIS.ClientID,
		ClientSecret: cfg.DHIS.ClientSecret,
		Program:      cfg.DHIS.ProgramUID,
		RootOrgUnit:  cfg.DHIS.RootOrgUnitUID,
		SIDElement:   va.ElementSID,
		Timeout:      cfg.DHIS.Timeout(),
		MaxRetries:   cfg.DHIS.MaxRetries,
	})

	info, err := dhisClient.Ping(ctx)
	if err != nil {
		return fmt.Errorf("connecting to DHIS2: %w", err)
	}
	log.Info("connected to DHIS2", "url", cfg.DHIS.BaseURL, "version", info.Version)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		log.Info("duplicate cache enabled", "addr", cfg.Redis.Addr)
	}

	archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("configuring archive: %w", err)
	}

	failures := store.NewFailureStore(db)
	cursor := store.NewCursorStore(db)

	p := &pipeline.Pipeline{
		Resolver: &pipeline.Resolver{
			Cursor:      cursor,
			Pipeline:    pipelineName,
			Granularity: cfg.Schedule.Granularity(),
			Overlap:     cfg.Schedule.Overlap(),
			MaxLookback: cfg.Schedule.MaxLookback(),
		},
		Downloader: odk.NewBriefcase(cfg.ODK),
		Classifier: smartva.NewRunner(cfg.SmartVA),
		Checker:    dedup.NewDetector(dhisClient, redisClient),
		Submitter:  dhisClient,
		Builder: va.EventBuilder{
			Program:     cfg.DHIS.ProgramUID,
			RootOrgUnit: cfg.DHIS.RootOrgUnitUID,
			StoredBy:    storedBy,
		},
		Failures: failures,
		Metrics:  metrics.New(),
	}
	if archiver != nil {
		p.Archiver = archiver
	}

	if opts.manualPath != "" || opts.fetchAll {
		_, err := p.Run(ctx, pipeline.RunOptions{
			ManualPath: opts.manualPath,
			FetchAll:   opts.fetchAll,
		})
		return err
	}

	return serve(ctx, cfg, db, p, failures, cursor)
}

// serve runs the recurring schedule and, when enabled, the ops HTTP
// server, until the context is cancelled by a signal.
func serve(ctx context.Context, cfg *config.Config, db *sql.DB, p *pipeline.Pipeline, failures *store.FailureStore, cursor *store.CursorStore) error {
	runner := scheduler.NewRunner(p, cfg.Schedule.Interval())
	runner.Start()
	defer runner.Stop()

	errCh := make(chan error, 1)
	var srv *api.Server
	if cfg.Server.Enabled {
		srv = api.NewServer(api.NewHandlers(db, runner, failures, cursor, pipelineName))
		go func() {
			log.Info("ops server listening", "addr", cfg.Server.Addr())
			if err := srv.ListenAndServe(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("ops server shutdown", "error", err)
		}
	}
	return nil
}
