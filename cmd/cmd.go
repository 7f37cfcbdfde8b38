// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag { return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"} }

func filterFlag() cli.Flag {
	return &cli.StringFlag{Name: "filter", Usage: "all, image or video", Value: "all"}
}

// setupCommand handles setup operations for configuration and the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file with default settings to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
		},
	}
}

// authCommand handles the postsiva session.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the postsiva session",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in with email and password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Sources: cli.EnvVars("POSTSIVA_PASSWORD"), Required: true},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "signup",
				Usage: "Create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "Account email", Required: true},
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "Username", Required: true},
					&cli.StringFlag{Name: "name", Usage: "Full name"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "Account password", Sources: cli.EnvVars("POSTSIVA_PASSWORD"), Required: true},
				},
				Action: r.AuthSignup,
			},
			{
				Name:  "google",
				Usage: "Log in with Google through the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the login URL instead of opening it"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for the browser to come back (default: integration.consent_timeout)"},
				},
				Action: r.AuthGoogle,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored credential",
				Action: r.AuthLogout,
			},
			{
				Name:   "status",
				Usage:  "Validate the stored credential and show the account",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// linkedinCommand handles the LinkedIn integration.
func linkedinCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "linkedin",
		Aliases: []string{"li"},
		Usage:   "Manage the LinkedIn connection",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Check whether a LinkedIn account is connected",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.LinkedInStatus,
			},
			{
				Name:  "connect",
				Usage: "Connect a LinkedIn account through the browser",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "no-browser", Usage: "Print the consent URL instead of opening it"},
					&cli.DurationFlag{Name: "timeout", Usage: "How long to wait for consent (default: integration.consent_timeout)"},
				},
				Action: r.LinkedInConnect,
			},
			{
				Name:   "disconnect",
				Usage:  "Remove the LinkedIn connection",
				Action: r.LinkedInDisconnect,
			},
			{
				Name:   "refresh",
				Usage:  "Refresh the LinkedIn access token",
				Action: r.LinkedInRefresh,
			},
			{
				Name:   "profile",
				Usage:  "Show the connected LinkedIn profile",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.LinkedInProfile,
			},
		},
	}
}

// postCommand publishes (or schedules) a post.
func postCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "post",
		Usage: "Publish a LinkedIn post, uploading attached files first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Post text"},
			&cli.StringFlag{Name: "title", Usage: "Video title (default: first line of the text)"},
			&cli.StringFlag{Name: "visibility", Aliases: []string{"v"}, Usage: "public or connections", Value: "public"},
			&cli.StringSliceFlag{Name: "file", Aliases: []string{"f"}, Usage: "File to upload and attach (repeatable, order is kept)"},
			&cli.StringSliceFlag{Name: "media", Aliases: []string{"m"}, Usage: "Already uploaded media id to attach (repeatable)"},
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "text, image, multiple or video (default: inferred from attachments)"},
			&cli.StringFlag{Name: "at", Usage: "Schedule instead of publishing now: RFC3339 time or a delay like 2h30m"},
		},
		Action: r.Post,
	}
}

// mediaCommand handles the media library.
func mediaCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "media",
		Usage: "Browse and manage uploaded media",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List uploaded media",
				Flags: []cli.Flag{
					filterFlag(),
					&cli.IntFlag{Name: "limit", Usage: "Page size (default: media.page_size)"},
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Keep loading pages until the library is exhausted"},
					&cli.BoolFlag{Name: "offline", Usage: "Read the local mirror instead of the backend"},
					jsonFlag(),
				},
				Action: r.MediaList,
			},
			{
				Name:      "upload",
				Usage:     "Upload files to the library",
				ArgsUsage: "FILE...",
				Action:    r.MediaUpload,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete media by id",
				ArgsUsage: "MEDIA_ID...",
				Action:    r.MediaDelete,
			},
			{
				Name:   "cleanup",
				Usage:  "Ask the backend to purge expired media",
				Action: r.MediaCleanup,
			},
			{
				Name:  "export",
				Usage: "Export the library as CSV, Markdown or JSON",
				Flags: []cli.Flag{
					filterFlag(),
					&cli.StringFlag{Name: "format", Usage: "csv, md or json", Value: "csv"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file path"},
					&cli.BoolFlag{Name: "offline", Usage: "Export the local mirror instead of the backend"},
				},
				Action: r.MediaExport,
			},
		},
	}
}

// scheduleCommand handles scheduled posts.
func scheduleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "schedule",
		Aliases: []string{"sched"},
		Usage:   "List and edit scheduled posts",
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List scheduled posts",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Usage: "scheduled, published or failed", Value: "scheduled"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of posts"},
					&cli.IntFlag{Name: "offset", Usage: "Number of posts to skip"},
					&cli.BoolFlag{Name: "csv", Usage: "Output CSV"},
					jsonFlag(),
				},
				Action: r.ScheduleList,
			},
			{
				Name:      "update",
				Usage:     "Change the time or content of a scheduled post",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "at", Usage: "New publish time: RFC3339 or a delay like 45m"},
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "New post text"},
					&cli.StringFlag{Name: "visibility", Aliases: []string{"v"}, Usage: "public or connections"},
				},
				Action: r.ScheduleUpdate,
			},
			{
				Name:      "cancel",
				Usage:     "Cancel a scheduled post",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.ScheduleCancel,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for browsing media and scheduled posts.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive media browser",
		Action:  r.TUI,
	}
}
