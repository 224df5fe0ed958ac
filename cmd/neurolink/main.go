package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "neurolink",
		Usage: "Epilepsy referral intake: web front end and command line client",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-prefix",
				Aliases: []string{"p"},
				Usage:   "Environment variable prefix",
				Value:   "NEUROLINK",
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			migrateCommand,
			loginCommand,
			logoutCommand,
			whoamiCommand,
			locationsCommand,
			submitCommand,
			formsCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("application failed")
	}
}
