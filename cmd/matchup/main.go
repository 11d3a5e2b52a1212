// Command matchup queries the analytics backend from a terminal.
//
//	matchup predict MIN 2023 BUF 2023
//	matchup history --team MIN --season 2022 --sort 2 --desc --limit 10
//	matchup teams
//
// Each run opens one backend connection, issues one request and waits for it
// to finish.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/wricardo/gridiron-odds/matchup/config"
	"github.com/wricardo/gridiron-odds/matchup/protocol"
	"github.com/wricardo/gridiron-odds/matchup/router"
	"github.com/wricardo/gridiron-odds/matchup/service"
	"github.com/wricardo/gridiron-odds/matchup/session"
	"github.com/wricardo/gridiron-odds/matchup/teams"
	"github.com/wricardo/gridiron-odds/transport/websocket"
)

const pageID = "cli"

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	defaults := config.Default()

	return &cli.Command{
		Name:  "matchup",
		Usage: "NFL matchup predictions and game history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "analytics backend websocket URL",
				Value:   defaults.Backend.URL,
				Sources: cli.EnvVars(config.EnvPrefix + "BACKEND_URL"),
			},
			&cli.StringFlag{
				Name:    "teams-file",
				Usage:   "team catalog JSON (built-in catalog when empty)",
				Sources: cli.EnvVars(config.EnvPrefix + "TEAMS_FILE"),
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Usage:   "how long to wait for the backend",
				Value:   30 * time.Second,
				Sources: cli.EnvVars(config.EnvPrefix + "TIMEOUT"),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "log connection activity to stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "predict",
				Usage:     "predict wins out of 100 for two team-seasons",
				ArgsUsage: "TEAM1 SEASON1 TEAM2 SEASON2",
				Action:    runPredict,
			},
			{
				Name:  "history",
				Usage: "print the game table for a season",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "team",
						Usage: "team code or ALL",
						Value: string(protocol.ScopeAll),
					},
					&cli.IntFlag{
						Name:  "season",
						Usage: "season to query",
						Value: session.DefaultSeason,
					},
					&cli.IntFlag{
						Name:  "sort",
						Usage: "zero-based column to sort by",
					},
					&cli.BoolFlag{
						Name:  "desc",
						Usage: "sort descending (requires --sort)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum rows to print (0 prints all)",
					},
				},
				Action: runHistory,
			},
			{
				Name:   "teams",
				Usage:  "list the team catalog",
				Action: runTeams,
			},
		},
	}
}

func runPredict(ctx context.Context, cmd *cli.Command) error {
	q, err := parsePredictArgs(cmd.Args().Slice())
	if err != nil {
		return err
	}

	return withService(ctx, cmd, func(ctx context.Context, svc service.MatchupService) error {
		snap, err := svc.PredictAndWait(ctx, pageID, q)
		if err != nil {
			return err
		}
		if snap.Error != "" {
			return fmt.Errorf("%s", snap.Error)
		}
		if snap.Outcome == nil {
			return fmt.Errorf("the backend returned no prediction")
		}
		fmt.Fprint(cmd.Root().Writer, service.FormatPrediction(q, *snap.Outcome))
		return nil
	})
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	q := service.HistoryQuery{
		Scope:      protocol.Scope(strings.ToUpper(strings.TrimSpace(cmd.String("team")))),
		Season:     int(cmd.Int("season")),
		Descending: cmd.Bool("desc"),
		Limit:      int(cmd.Int("limit")),
	}
	if cmd.IsSet("sort") {
		col := int(cmd.Int("sort"))
		q.SortColumn = &col
	} else if q.Descending {
		return fmt.Errorf("--desc requires --sort")
	}

	return withService(ctx, cmd, func(ctx context.Context, svc service.MatchupService) error {
		snap, err := svc.FetchHistoryAndWait(ctx, pageID, q)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.Root().Writer, service.FormatHistory(snap))
		return nil
	})
}

func runTeams(ctx context.Context, cmd *cli.Command) error {
	catalog, err := loadCatalog(cmd.String("teams-file"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.Root().Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tFIRST SEASON")
	for _, t := range catalog.All() {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Code, t.Name, t.FirstSeason())
	}
	return tw.Flush()
}

// parsePredictArgs reads TEAM1 SEASON1 TEAM2 SEASON2.
func parsePredictArgs(args []string) (session.PredictionQuery, error) {
	if len(args) != 4 {
		return session.PredictionQuery{}, fmt.Errorf("predict needs TEAM1 SEASON1 TEAM2 SEASON2, got %d arguments", len(args))
	}
	season1, err := strconv.Atoi(args[1])
	if err != nil {
		return session.PredictionQuery{}, fmt.Errorf("invalid season %q", args[1])
	}
	season2, err := strconv.Atoi(args[3])
	if err != nil {
		return session.PredictionQuery{}, fmt.Errorf("invalid season %q", args[3])
	}
	return session.PredictionQuery{
		Team:     args[0],
		Season1:  season1,
		Opponent: args[2],
		Season2:  season2,
	}, nil
}

func loadCatalog(path string) (*teams.Catalog, error) {
	if path == "" {
		return teams.Default(), nil
	}
	return teams.Load(path)
}

// withService connects to the backend, runs fn under the command timeout and
// closes the connection.
func withService(ctx context.Context, cmd *cli.Command, fn func(context.Context, service.MatchupService) error) error {
	logger := zap.NewNop()
	if cmd.Bool("debug") {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	defer logger.Sync()

	catalog, err := loadCatalog(cmd.String("teams-file"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	r := router.New(router.WithLogger(logger))
	conn := websocket.Open(ctx, websocket.Options{
		URL:       cmd.String("backend"),
		Logger:    logger,
		OnMessage: r.HandleMessage,
	})
	defer conn.Close()

	if err := conn.WaitConnected(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cmd.String("backend"), err)
	}

	pages := session.NewManager(session.Deps{
		Sender:  conn,
		Router:  r,
		Catalog: catalog,
		Logger:  logger,
	})
	defer pages.Close()

	svc := service.NewMatchupService(pages, conn, service.Options{
		Catalog: catalog,
		Backend: cmd.String("backend"),
		Logger:  logger,
	})
	return fn(ctx, svc)
}
