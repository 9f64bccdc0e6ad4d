package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "sqsmock",
		Usage: "Serve a local queue service that speaks the SQS JSON protocol",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the retention sweeper",
				Flags:  serveFlags(),
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "Create the postgres tables and exit",
				Flags:  migrateFlags(),
				Action: migrate,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "Port to listen on (overrides PORT)",
		},
		&cli.StringFlag{
			Name:    "backend",
			Aliases: []string{"b"},
			Usage:   "Storage backend: memory, postgres or redis (overrides BACKEND)",
		},
		&cli.StringFlag{
			Name:  "default-queue-url",
			Usage: "Queue URL for message calls that omit QueueUrl (overrides DEFAULT_QUEUE_URL)",
		},
	}
}

func migrateFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Aliases: []string{"d"},
			Usage:   "Postgres DSN (overrides DATABASE_URL)",
		},
	}
}
