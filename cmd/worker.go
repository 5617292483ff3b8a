package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/invoicing/internal/scheduler"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the recurrence worker",
	Long: `Start the recurrence worker.

The worker schedules one recurrence pass per day at recurrence.run_at and
consumes run_recurrence commands from the queue, whether they come from its
own scheduler, another worker or the API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.close()

		dispatcher, consumer, err := newBus(cfg, "worker", a.metrics)
		if err != nil {
			return err
		}
		defer dispatcher.Close()

		sched, err := scheduler.NewRecurrenceScheduler(cfg.Recurrence, dispatcher)
		if err != nil {
			return err
		}
		if next, err := sched.NextRun(); err == nil {
			log.Info().Time("next_run", next).Msg("Recurrence pass scheduled")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			log.Info().Msg("Starting command consumer")
			return consumer.Consume(gCtx, a.recurrence.HandleCommand)
		})

		g.Go(func() error {
			return sched.Run(gCtx)
		})

		if cfg.Recurrence.RunOnStart {
			if err := sched.Trigger(gCtx); err != nil {
				log.Error().Err(err).Msg("Failed to queue start-up recurrence pass")
			}
		}

		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("Worker stopped with error")
			return err
		}
		log.Info().Msg("Worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
