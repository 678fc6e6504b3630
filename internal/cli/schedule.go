package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harun/seqkit/internal/config"
	"github.com/harun/seqkit/internal/observability"
	"github.com/harun/seqkit/internal/schedule"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var scheduleFlags struct {
	key         string
	every       time.Duration
	work        time.Duration
	maxWait     time.Duration
	metricsAddr string
	duration    time.Duration
	watch       bool
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run cron jobs serialized per key",
	Long: `Run the jobs listed under "schedule.jobs" in the config file, plus one job
given with --key and --every. Runs of jobs sharing a key never overlap and
execute in trigger order; different keys run in parallel.

Runs until interrupted, or for --for if set.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleFlags.key, "key", "", "sequencer key of the ad-hoc job")
	scheduleCmd.Flags().DurationVar(&scheduleFlags.every, "every", 0, "trigger interval of the ad-hoc job (at least 1s)")
	scheduleCmd.Flags().DurationVar(&scheduleFlags.work, "work", 100*time.Millisecond, "simulated duration of each ad-hoc run")
	scheduleCmd.Flags().DurationVar(&scheduleFlags.maxWait, "max-wait", 0, "skip runs that cannot start within this long (0 waits forever)")
	scheduleCmd.Flags().StringVar(&scheduleFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	scheduleCmd.Flags().DurationVar(&scheduleFlags.duration, "for", 0, "stop after this long (0 runs until interrupted)")
	scheduleCmd.Flags().BoolVar(&scheduleFlags.watch, "watch-config", true, "apply log level changes from the config file without restarting")
	rootCmd.AddCommand(scheduleCmd)
}

func scheduleJobs(cfg *config.Config) ([]schedule.Job, error) {
	var jobs []schedule.Job
	for _, j := range cfg.Schedule.Jobs {
		jobs = append(jobs, schedule.Job{
			Key:  j.Key,
			Spec: j.Spec,
			Work: time.Duration(j.WorkMs) * time.Millisecond,
		})
	}

	if scheduleFlags.key != "" || scheduleFlags.every > 0 {
		if scheduleFlags.key == "" || scheduleFlags.every <= 0 {
			return nil, fmt.Errorf("--key and --every must be given together")
		}
		jobs = append(jobs, schedule.Job{
			Key:  scheduleFlags.key,
			Spec: "@every " + scheduleFlags.every.String(),
			Work: scheduleFlags.work,
		})
	}

	if len(jobs) == 0 {
		return nil, fmt.Errorf("no jobs: set schedule.jobs in the config file or pass --key and --every")
	}
	return jobs, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer rt.shutdown()

	jobs, err := scheduleJobs(rt.cfg)
	if err != nil {
		return err
	}

	scheduler := schedule.New(schedule.Options{
		SequencerOptions: rt.cfg.Sequencer.Options(),
		MaxWait:          scheduleFlags.maxWait,
		IdleSweep:        rt.cfg.Sequencer.IdleSweep(),
		OnRun: func(r schedule.Run) {
			if r.Err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s run %s failed: %v\n", r.Finished.Format(time.TimeOnly), r.Key, r.RunID, r.Err)
				return
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-12s run %s done in %s\n", r.Finished.Format(time.TimeOnly), r.Key, r.RunID, r.Waited.Round(time.Millisecond))
		},
	})

	for _, job := range jobs {
		if _, err := scheduler.Add(job); err != nil {
			_ = scheduler.Stop(context.Background())
			return err
		}
	}

	metricsAddr := scheduleFlags.metricsAddr
	if metricsAddr == "" && rt.cfg.Metrics.Enabled {
		metricsAddr = rt.cfg.Metrics.Addr
	}
	var server *http.Server
	if metricsAddr != "" {
		server, err = serveMetrics(metricsAddr)
		if err != nil {
			_ = scheduler.Stop(context.Background())
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on %s/metrics\n", server.Addr)
	}

	if scheduleFlags.watch {
		watcher, err := config.NewWatcher(config.NewLoader(cfgFile), 0, func(cfg *config.Config) {
			if err := rt.log.SetLevel(cfg.Logging.Level); err != nil {
				log.Warn().Err(err).Msg("Failed to apply log level")
			}
		})
		if err == nil {
			err = watcher.Start()
		}
		if err != nil {
			log.Debug().Err(err).Msg("Config watcher disabled")
		} else {
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if scheduleFlags.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, scheduleFlags.duration)
		defer cancel()
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Scheduled %d job(s)\n", len(jobs))
	scheduler.Start()

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(stopCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	if err := scheduler.Stop(stopCtx); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	for key, stats := range scheduler.Stats() {
		log.Info().
			Str("key", key).
			Int("completed", stats.Completed).
			Int("failed", stats.Failed).
			Int("skipped", stats.Skipped).
			Msg("Key summary")
	}
	return nil
}

// serveMetrics binds addr synchronously so that a taken port fails the command.
func serveMetrics(addr string) (*http.Server, error) {
	observability.EnsureRegistered()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", otelhttp.NewHandler(observability.MetricsHandler(), "metrics"))

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return server, nil
}
