package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/w-h-a/brain"
	"github.com/w-h-a/brain/classifier"
	"github.com/w-h-a/brain/internal/app"
	"github.com/w-h-a/brain/internal/config"
	"github.com/w-h-a/brain/internal/logger"
	"github.com/w-h-a/brain/server"
	httpserver "github.com/w-h-a/brain/server/http"
	"go.uber.org/zap"
)

type Globals struct {
	Config  string `help:"Path to brain.yaml; BRAIN_* env vars override it" default:""`
	EnvFile string `help:"Optional .env file loaded before config" default:".env"`
}

var (
	cli struct {
		Globals

		Serve  serveCmd  `cmd:"" help:"Run the HTTP surface"`
		Ingest ingestCmd `cmd:"" help:"File a single note and print the reply"`
		List   listCmd   `cmd:"" help:"List records in a category"`
	}
)

type serveCmd struct {
	Address string `help:"Listen address; overrides server.address" default:""`
}

func (c *serveCmd) Run(g *Globals) error {
	cfg, log, err := setup(g)
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	address := cfg.Server.Address
	if len(c.Address) > 0 {
		address = c.Address
	}

	srv := httpserver.NewServer(
		b,
		server.WithAddress(address),
		server.WithLogger(log.Named("http")),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(ctx)
}

type ingestCmd struct {
	Text      []string `arg:"" help:"Note text"`
	MessageId string   `help:"Message identifier recorded with the note" default:""`
	Source    string   `help:"Where the note came from" default:"cli"`
}

func (c *ingestCmd) Run(g *Globals) error {
	cfg, log, err := setup(g)
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	metadata := map[string]string{
		brain.MetadataSource: c.Source,
	}
	if len(c.MessageId) > 0 {
		metadata[brain.MetadataMessageId] = c.MessageId
	}

	reply, err := b.Handle(context.Background(), strings.Join(c.Text, " "), metadata)
	if err != nil {
		return err
	}

	fmt.Println(reply.Summary)

	if !reply.Filed {
		return errors.New("note not filed")
	}

	return nil
}

type listCmd struct {
	Category string `arg:"" help:"People, Projects, Ideas or Admin"`
	Status   string `help:"Only records with this status" default:""`
}

func (c *listCmd) Run(g *Globals) error {
	category, ok := classifier.ParseCategory(c.Category)
	if !ok {
		return fmt.Errorf("unknown category '%s'", c.Category)
	}

	cfg, log, err := setup(g)
	if err != nil {
		return err
	}
	defer log.Sync()

	b, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	records, err := b.Records(context.Background(), category, c.Status)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(records)
}

func setup(g *Globals) (*config.Config, *zap.Logger, error) {
	if len(g.EnvFile) > 0 {
		if err := godotenv.Load(g.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		return nil, nil, err
	}

	return cfg, log, nil
}

func main() {
	ctx := kong.Parse(
		&cli,
		kong.Name("brain"),
		kong.Description("Classify notes and file them into deduplicated records."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
