package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ona79/facturation-app/pkg/config"
	"github.com/ona79/facturation-app/pkg/domain"
	"github.com/ona79/facturation-app/pkg/infra/pdf"
	"github.com/ona79/facturation-app/pkg/infra/rabbitmq"
	"github.com/ona79/facturation-app/pkg/logging"
	"github.com/ona79/facturation-app/pkg/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "facturation:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "facturation",
		Usage: "retail invoice issuance service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				EnvVars: []string{"FACTURATION_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "events",
				Usage: "print invoice events from the broker",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "key", Value: "invoice.#", Usage: "routing key to bind"},
				},
				Action: events,
			},
			{
				Name:      "preview",
				Usage:     "compute totals without issuing an invoice",
				ArgsUsage: "name:price:qty [name:price:qty ...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "tva", Usage: "tax rate in percent"},
					&cli.StringFlag{Name: "devise", Value: domain.DefaultCurrency, Usage: "currency printed with amounts"},
				},
				Action: preview,
			},
		},
	}
}

func setup(c *cli.Context) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func serve(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx := c.Context
	deps, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           deps.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	deps.sync.Close()
	return nil
}

func events(c *cli.Context) error {
	cfg, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Events.AMQPURL == "" {
		return errors.New("events.amqp_url (or AMQP_URL) is required")
	}
	conn, ch, err := rabbitmq.SetupConn(cfg.Events.AMQPURL, cfg.Events.Exchange, logger)
	if err != nil {
		return err
	}
	defer conn.Close()
	defer ch.Close()

	obs := usecase.NewEventObserver(rabbitmq.NewSubscriber(ch, cfg.Events.Exchange, logger))
	out := json.NewEncoder(c.App.Writer)
	key := c.String("key")
	logger.Info("observing invoice events", zap.String("routing_key", key))
	err = obs.Start(c.Context, key, func(event domain.InvoiceEvent) error {
		return out.Encode(event)
	})
	if err != nil {
		return fmt.Errorf("observe events: %w", err)
	}

	<-c.Context.Done()
	return nil
}

func preview(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one name:price:qty line is required", 2)
	}
	inputs := make([]usecase.LineInput, 0, c.NArg())
	for _, arg := range c.Args().Slice() {
		in, err := parseLineArg(arg)
		if err != nil {
			return cli.Exit(err.Error(), 2)
		}
		inputs = append(inputs, in)
	}

	lines, totals, err := usecase.Preview(inputs, c.String("tva"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	currency := c.String("devise")
	w := c.App.Writer
	for _, l := range lines {
		fmt.Fprintf(w, "%-30s %5d x %15s = %15s\n", l.Name, l.Quantity,
			pdf.FormatMoney(l.UnitPrice, currency), pdf.FormatMoney(l.LineTotal, currency))
	}
	fmt.Fprintf(w, "Sous-total: %s\n", pdf.FormatMoney(totals.Subtotal, currency))
	if totals.Tax.Rate.IsPositive() {
		fmt.Fprintf(w, "TVA (%s%%): %s\n", totals.Tax.Rate.String(), pdf.FormatMoney(totals.Tax.Amount, currency))
	}
	fmt.Fprintf(w, "TOTAL: %s\n", pdf.FormatMoney(totals.GrandTotal, currency))
	return nil
}
