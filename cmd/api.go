package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/backstage/invoicing/internal/api"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the HTTP API",
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

		dispatcher, consumer, err := newBus(cfg, "api", a.metrics)
		if err != nil {
			return err
		}
		defer dispatcher.Close()

		server := api.NewServer(cfg.Server, api.Services{
			Numbers:    a.numbers,
			Customers:  a.customers,
			Invoices:   a.invoices,
			Quotes:     a.quotes,
			Templates:  a.templates,
			Users:      a.users,
			Recurrence: a.recurrence,
			Dispatcher: dispatcher,
		}, a.metrics, a.tracer)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			return server.Start()
		})

		g.Go(func() error {
			<-gCtx.Done()
			return server.Shutdown(context.Background())
		})

		// Queued passes only reach this process when no broker is configured
		if cfg.Azure.QueueConnStr == "" {
			g.Go(func() error {
				return consumer.Consume(gCtx, a.recurrence.HandleCommand)
			})
		}

		if err := g.Wait(); err != nil {
			log.Error().Err(err).Msg("API stopped with error")
			return err
		}
		log.Info().Msg("API stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(apiCmd)
}
