package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"neurolink/internal/submit"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var formsCommand = &cli.Command{
	Name:  "forms",
	Usage: "Inspect submitted forms",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List the forms you submitted",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "filter",
					Usage: "all, active, completed or recent",
					Value: "all",
				},
			},
			Action: func(c *cli.Context) error {
				transport, err := newReadTransport(c)
				if err != nil {
					return err
				}

				forms, err := transport.ListForms(c.Context, c.String("filter"))
				if err != nil {
					return cli.Exit(submit.UserMessage(err), 1)
				}

				for _, f := range forms {
					fmt.Printf("%v\t%v\t%v\n", f["id"], f["fullName"], f["status"])
				}
				return nil
			},
		},
		{
			Name:      "response",
			Usage:     "Show the neurologist response to a form",
			ArgsUsage: "<form-id>",
			Action: func(c *cli.Context) error {
				formID := c.Args().First()
				if formID == "" {
					return cli.Exit("form id is required", 1)
				}

				transport, err := newReadTransport(c)
				if err != nil {
					return err
				}

				ctx, cancel := context.WithTimeout(c.Context, time.Minute)
				defer cancel()

				hasResponse, err := transport.HasResponse(ctx, formID)
				if err != nil {
					return cli.Exit(submit.UserMessage(err), 1)
				}
				if !hasResponse {
					fmt.Fprintln(os.Stderr, "No response yet")
					return nil
				}

				response, err := transport.FormResponse(ctx, formID)
				if err != nil {
					return cli.Exit(submit.UserMessage(err), 1)
				}
				if response == nil {
					fmt.Fprintln(os.Stderr, "No response yet")
					return nil
				}

				_, err = pp.Println(response)
				return err
			},
		},
	},
}

func newReadTransport(c *cli.Context) (*submit.Transport, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	sessions, err := sessionFile(cfg)
	if err != nil {
		return nil, err
	}

	return submit.NewTransport(cfg.BackendURL, sessions, nil, submitPolicy(cfg), newLogger(cfg, false)), nil
}
