// Command trustgraph runs the scoring and detection engines over JSON
// snapshot files, for batch jobs and offline tuning.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sybilwatch/trustgraph/internal/adapters"
	"github.com/sybilwatch/trustgraph/internal/clustering"
	"github.com/sybilwatch/trustgraph/internal/config"
	"github.com/sybilwatch/trustgraph/internal/encoding"
	"github.com/sybilwatch/trustgraph/internal/reputation"
	"github.com/sybilwatch/trustgraph/internal/security"
)

func main() {
	app := &cli.App{
		Name:  "trustgraph",
		Usage: "score trust graphs and detect sybil clusters from JSON files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "profile",
				Aliases: []string{"p"},
				Usage:   "engine profile YAML, defaults apply when omitted",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelWarn
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
		Commands: []*cli.Command{
			scoreCommand(),
			clusterCommand(),
			auditCommand(),
			tuneCommand(),
			tokenCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadProfile(c *cli.Context) (config.Profile, error) {
	return config.ReadOrCreate(c.String("profile"))
}

func inputFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "JSON input file",
		Required: true,
	}
}

func emit(v interface{}) error {
	enc := encoding.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func scoreCommand() *cli.Command {
	return &cli.Command{
		Name:  "score",
		Usage: "compute reputation scores for a snapshot file",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.Float64Flag{
				Name:  "adjust-bias",
				Usage: "apply the fairness adjustment with this strength (0 disables)",
			},
		},
		Action: func(c *cli.Context) error {
			profile, err := loadProfile(c)
			if err != nil {
				return err
			}

			snapshot, err := adapters.NewFileAdapter(c.String("input")).LoadSnapshot(c.Context)
			if err != nil {
				return err
			}

			start := time.Now()
			set, err := reputation.ComputeScores(c.Context, snapshot, profile.Reputation)
			if err != nil {
				return err
			}
			if strength := c.Float64("adjust-bias"); strength > 0 {
				set, err = reputation.AdjustForBias(snapshot, set, strength)
				if err != nil {
					return err
				}
			}

			slog.Info("scoring complete",
				"nodes", snapshot.Len(),
				"edges", snapshot.NumEdges(),
				"iterations", set.Iterations,
				"converged", set.Converged,
				"duration", time.Since(start))
			return emit(set)
		},
	}
}

func clusterCommand() *cli.Command {
	return &cli.Command{
		Name:  "cluster",
		Usage: "detect sybil clusters in an accounts file",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.StringFlag{
				Name:  "method",
				Usage: "override the clustering method (unionfind, dbscan, hierarchical, components)",
			},
		},
		Action: func(c *cli.Context) error {
			profile, err := loadProfile(c)
			if err != nil {
				return err
			}
			cfg := profile.Clustering
			if method := c.String("method"); method != "" {
				cfg.Method = method
			}

			set, err := adapters.NewFileAdapter(c.String("input")).LoadAccounts(c.Context)
			if err != nil {
				return err
			}

			result, err := clustering.Detect(c.Context, set, cfg)
			if err != nil {
				return err
			}
			result.GeneratedAt = time.Now().UTC()
			return emit(result)
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "leave-one-out edge sensitivity audit for one node",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.StringFlag{
				Name:     "node",
				Usage:    "node to audit",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "number of edges to report, profile default when 0",
			},
		},
		Action: func(c *cli.Context) error {
			profile, err := loadProfile(c)
			if err != nil {
				return err
			}
			topK := c.Int("top")
			if topK <= 0 {
				topK = profile.AuditTopK
			}

			snapshot, err := adapters.NewFileAdapter(c.String("input")).LoadSnapshot(c.Context)
			if err != nil {
				return err
			}

			// Audits can take a while on high-degree nodes.
			ctx, cancel := context.WithTimeout(c.Context, 10*time.Minute)
			defer cancel()

			impacts, err := reputation.AuditEdges(ctx, snapshot, profile.Reputation, c.String("node"), topK)
			if err != nil {
				return err
			}
			return emit(impacts)
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "mint an admin token for the server's protected endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "subject",
				Usage: "token subject, recorded in server logs",
				Value: "cli",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "token lifetime",
				Value: time.Hour,
			},
		},
		Action: func(c *cli.Context) error {
			secret := os.Getenv("ADMIN_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("ADMIN_JWT_SECRET is not set")
			}
			token, err := security.IssueAdminToken(secret, c.String("subject"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func tuneCommand() *cli.Command {
	return &cli.Command{
		Name:  "tune",
		Usage: "sweep clustering thresholds and report the best",
		Flags: []cli.Flag{
			inputFlag(),
			&cli.Float64SliceFlag{
				Name:  "threshold",
				Usage: "candidate thresholds, default sweep when omitted",
			},
		},
		Action: func(c *cli.Context) error {
			profile, err := loadProfile(c)
			if err != nil {
				return err
			}

			set, err := adapters.NewFileAdapter(c.String("input")).LoadAccounts(c.Context)
			if err != nil {
				return err
			}

			result, err := clustering.Tune(c.Context, set, profile.Clustering, c.Float64Slice("threshold"))
			if err != nil {
				return err
			}
			return emit(result)
		},
	}
}
