// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/desertthunder/jukebox/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand prepares the database and configuration file
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and database",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recently applied migration",
				Action: r.SetupRollback,
			},
			{
				Name:  "config",
				Usage: "Write a configuration template to --config",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
		},
	}
}

// serveCommand runs the session server
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the session server (websocket topics, JSON API and progress scheduler)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Override server.host",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Override server.port",
			},
		},
		Action: r.Serve,
	}
}

// trackCommand manages the track catalog
func trackCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "track",
		Aliases: []string{"tracks"},
		Usage:   "Track catalog operations",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a track to the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "title",
						Aliases:  []string{"t"},
						Usage:    "Track title",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "artist",
						Aliases: []string{"a"},
						Usage:   "Track artist",
					},
					&cli.StringFlag{
						Name:  "album",
						Usage: "Album name",
					},
					&cli.StringFlag{
						Name:     "duration",
						Aliases:  []string{"d"},
						Usage:    "Length as m:ss, a Go duration (3m25s) or milliseconds",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TrackAdd,
			},
			{
				Name:  "list",
				Usage: "List catalog tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "artist",
						Usage: "Only tracks by this artist",
					},
					&cli.StringFlag{
						Name:    "search",
						Aliases: []string{"s"},
						Usage:   "Match title, artist or album",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TrackList,
			},
		},
	}
}

// sessionCommand manages playback sessions
func sessionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sessions"},
		Usage:   "Playback session operations",
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create an idle session",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "name",
						Aliases: []string{"n"},
						Usage:   "Session name",
					},
					&cli.IntFlag{
						Name:  "volume",
						Usage: "Initial volume (0-100), defaults to playback.default_volume",
						Value: -1,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionCreate,
			},
			{
				Name:  "list",
				Usage: "List sessions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "playing",
						Usage: "Only sessions that are playing",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.SessionList,
			},
			{
				Name:  "show",
				Usage: "Render a session snapshot",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "id",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: " + formatNames(),
						Value:   string(formatter.Text),
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					&cli.BoolFlag{
						Name:  "save",
						Usage: "Write to {id}.{ext} in the current directory",
					},
					serverFlag(),
				},
				Action: r.SessionShow,
			},
		},
	}
}

// queueCommand edits a session queue
func queueCommand(r *Runner) *cli.Command {
	sessionFlag := func() cli.Flag {
		return &cli.StringFlag{
			Name:     "session",
			Aliases:  []string{"s"},
			Usage:    "Session ID",
			Required: true,
		}
	}

	return &cli.Command{
		Name:  "queue",
		Usage: "Session queue operations",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Append a catalog track to a session queue",
				Flags: []cli.Flag{
					sessionFlag(),
					serverFlag(),
					&cli.StringFlag{
						Name:     "track",
						Aliases:  []string{"t"},
						Usage:    "Track ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.QueueAdd,
			},
			{
				Name:  "remove",
				Usage: "Remove an entry from a session queue",
				Flags: []cli.Flag{
					sessionFlag(),
					serverFlag(),
					&cli.StringFlag{
						Name:     "entry",
						Aliases:  []string{"e"},
						Usage:    "Queue entry ID",
						Required: true,
					},
				},
				Action: r.QueueRemove,
			},
		},
	}
}

// watchCommand launches the terminal remote
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Join a session and control it from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "session",
				Aliases:  []string{"s"},
				Usage:    "Session ID",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Server base URL, defaults to http://{server.host}:{server.port}",
			},
		},
		Action: r.Watch,
	}
}

// statusCommand reports on a running server
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server health and listener counts",
		Flags:  []cli.Flag{serverFlag()},
		Action: r.Status,
	}
}

// serverFlag routes a command through a running server's JSON API instead of the local database.
func serverFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "server",
		Usage:   "Server base URL; commands go through its API so joined listeners see the change",
		Sources: cli.EnvVars("JUKEBOX_SERVER"),
	}
}

func formatNames() string {
	names := make([]string, len(formatter.Formats))
	for i, f := range formatter.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}
