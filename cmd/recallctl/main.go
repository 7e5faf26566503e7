package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/miradorstack/mirador-recall/internal/api"
	"github.com/miradorstack/mirador-recall/internal/models"
)

func main() {
	if err := newApp(os.Stdout).Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:      "recallctl",
		Usage:     "Ingest incident evidence and search for similar past incidents",
		Writer:    out,
		ErrWriter: os.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Aliases: []string{"a"},
				Usage:   "mirador-recall gRPC address",
				Value:   "localhost:50051",
				EnvVars: []string{"MIRADOR_RECALL_ADDR"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout",
				Value: 30 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "ingest",
				Usage:  "Upload evidence and an optional note as a new incident",
				Action: ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Path to the evidence file (screenshot, log export)",
					},
					&cli.StringFlag{
						Name:    "note",
						Aliases: []string{"n"},
						Usage:   "Free-text operator note",
					},
					&cli.StringSliceFlag{Name: "system", Usage: "Affected system hint (repeatable)"},
					&cli.StringSliceFlag{Name: "vendor", Usage: "Vendor hint (repeatable)"},
					&cli.StringSliceFlag{Name: "protocol", Usage: "Protocol hint (repeatable)"},
					&cli.StringSliceFlag{Name: "port", Usage: "Port hint (repeatable)"},
					&cli.StringSliceFlag{Name: "observable", Usage: "Observable hint such as an IP or hostname (repeatable)"},
				},
			},
			{
				Name:   "search",
				Usage:  "Find incidents similar to an ingested one",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Incident id returned by ingest",
						Required: true,
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of matches to return (0 uses the server default)",
					},
					&cli.StringFlag{
						Name:  "min-severity",
						Usage: "Severity floor (low, medium, high, critical)",
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Report service and index readiness",
				Action: healthCommand,
			},
		},
	}
}

func ingestCommand(c *cli.Context) error {
	req := &api.IngestRequest{
		Note: c.String("note"),
		Entities: models.Entities{
			Systems:     c.StringSlice("system"),
			Vendors:     c.StringSlice("vendor"),
			Protocols:   c.StringSlice("protocol"),
			Ports:       c.StringSlice("port"),
			Observables: c.StringSlice("observable"),
		},
	}
	if path := c.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read evidence: %w", err)
		}
		req.Evidence = data
		req.Filename = filepath.Base(path)
	}
	if len(req.Evidence) == 0 && req.Note == "" {
		return fmt.Errorf("either --file or --note is required")
	}

	return withClient(c, func(ctx context.Context, client *api.Client) (any, error) {
		return client.Ingest(ctx, req)
	})
}

func searchCommand(c *cli.Context) error {
	req := &api.SearchRequest{
		IncidentID:  c.String("id"),
		TopK:        c.Int("top-k"),
		MinSeverity: c.String("min-severity"),
	}
	return withClient(c, func(ctx context.Context, client *api.Client) (any, error) {
		return client.Search(ctx, req)
	})
}

func healthCommand(c *cli.Context) error {
	return withClient(c, func(ctx context.Context, client *api.Client) (any, error) {
		return client.Health(ctx)
	})
}

// withClient dials the service, runs call under the request timeout and
// prints the result as indented JSON.
func withClient(c *cli.Context, call func(context.Context, *api.Client) (any, error)) error {
	client, err := api.Dial(c.String("addr"))
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	result, err := call(ctx, client)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
