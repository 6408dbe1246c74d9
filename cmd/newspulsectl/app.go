package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/newspulse/internal/adapter/auth"
	"github.com/pscheid92/newspulse/internal/adapter/broker"
	"github.com/pscheid92/newspulse/internal/adapter/metrics"
	"github.com/pscheid92/newspulse/internal/adapter/postgres"
	"github.com/pscheid92/newspulse/internal/crawler"
	"github.com/pscheid92/newspulse/internal/domain"
	"github.com/pscheid92/newspulse/internal/ingest"
	"github.com/pscheid92/newspulse/internal/platform/config"
	"github.com/pscheid92/newspulse/internal/platform/logging"
	"github.com/pscheid92/newspulse/internal/platform/version"
	"github.com/urfave/cli/v2"
)

const defaultTokenTTL = 24 * time.Hour

var databaseURLFlag = &cli.StringFlag{
	Name:     "database-url",
	Usage:    "PostgreSQL connection URL",
	EnvVars:  []string{"DATABASE_URL"},
	Required: true,
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "newspulsectl",
		Usage:   "operate a newspulse deployment",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "log-level", Value: "warn", EnvVars: []string{"LOG_LEVEL"}},
		},
		Before: func(c *cli.Context) error {
			_ = godotenv.Load()
			logging.InitLogger(c.App.ErrWriter, c.String("log-level"), "text")
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			ingestCommand(),
			feedCommand(),
			subscribeCommand(),
			tokenCommand(),
			sendCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply pending database migrations",
		Flags: []cli.Flag{databaseURLFlag},
		Action: func(c *cli.Context) error {
			return withPool(c, func(pool *pgxpool.Pool) error {
				if err := postgres.RunMigrationsWithLock(c.Context, pool); err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, "migrations applied")
				return nil
			})
		},
	}
}

func ingestCommand() *cli.Command {
	return &cli.Command{
		Name:  "ingest",
		Usage: "crawl all feeds once and publish new items",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			clock := clockwork.NewRealClock()
			reg := metrics.NewRegistry()

			pool, err := postgres.Connect(c.Context, cfg.DatabaseURL, nil)
			if err != nil {
				return err
			}
			defer pool.Close()

			b, err := broker.Open(c.Context, cfg, metrics.NewBrokerMetrics(reg))
			if err != nil {
				return err
			}
			defer func() { _ = b.Close() }()

			scraper := crawler.New(crawler.NewHTTPFetcher(cfg.FetchTimeout), clock, metrics.NewCrawlerMetrics(reg), crawler.Options{
				Concurrency:  cfg.CrawlConcurrency,
				MaxAttempts:  cfg.CrawlMaxAttempts,
				RetryBackoff: cfg.CrawlRetryBackoff,
			})
			ingestor := ingest.NewIngestor(postgres.NewFeedRepo(pool), postgres.NewContentRepo(pool), b.Producer(),
				scraper, clock, metrics.NewIngestMetrics(reg), cfg.IngestBuffer)

			report := ingestor.Ingest(c.Context)
			fmt.Fprintf(c.App.Writer, "feeds=%d created=%d duplicates=%d failed=%d\n",
				report.Feeds, report.Created, report.Duplicates, report.Failed)
			return nil
		},
	}
}

func feedCommand() *cli.Command {
	return &cli.Command{
		Name:  "feed",
		Usage: "manage feeds",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "register a feed",
				Flags: []cli.Flag{
					databaseURLFlag,
					&cli.StringFlag{Name: "url", Required: true},
					&cli.StringFlag{Name: "title"},
					&cli.StringFlag{Name: "author"},
				},
				Action: func(c *cli.Context) error {
					return withPool(c, func(pool *pgxpool.Pool) error {
						feed, err := postgres.NewFeedRepo(pool).Create(c.Context, domain.Feed{
							Author: c.String("author"),
							Title:  c.String("title"),
							URL:    c.String("url"),
						})
						if err != nil {
							return err
						}
						fmt.Fprintln(c.App.Writer, feed.ID)
						return nil
					})
				},
			},
			{
				Name:  "list",
				Usage: "list registered feeds",
				Flags: []cli.Flag{databaseURLFlag},
				Action: func(c *cli.Context) error {
					return withPool(c, func(pool *pgxpool.Pool) error {
						feeds, err := postgres.NewFeedRepo(pool).List(c.Context)
						if err != nil {
							return err
						}
						return printFeeds(c, feeds)
					})
				},
			},
		},
	}
}

func printFeeds(c *cli.Context, feeds []domain.Feed) error {
	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tURL")
	for _, f := range feeds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.ID, f.Title, f.Author, f.URL)
	}
	return w.Flush()
}

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscribe",
		Usage: "subscribe a user to a feed",
		Flags: []cli.Flag{
			databaseURLFlag,
			&cli.StringFlag{Name: "feed", Usage: "feed id", Required: true},
			&cli.StringFlag{Name: "user", Usage: "user id", Required: true},
		},
		Action: func(c *cli.Context) error {
			feedID, err := uuid.Parse(c.String("feed"))
			if err != nil {
				return fmt.Errorf("invalid feed id: %w", err)
			}
			userID, err := uuid.Parse(c.String("user"))
			if err != nil {
				return fmt.Errorf("invalid user id: %w", err)
			}

			return withPool(c, func(pool *pgxpool.Pool) error {
				if _, err := postgres.NewFeedRepo(pool).Get(c.Context, feedID); err != nil {
					return err
				}
				sub := domain.Subscription{FeedID: feedID, UserID: userID}
				if err := postgres.NewSubscriptionRepo(pool).Create(c.Context, sub); err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "user %s subscribed to feed %s\n", userID, feedID)
				return nil
			})
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "issue a login token for a user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "user", Required: true},
			&cli.DurationFlag{Name: "ttl", Value: defaultTokenTTL},
			&cli.StringFlag{Name: "secret", EnvVars: []string{"JWT_SECRET"}, Required: true},
		},
		Action: func(c *cli.Context) error {
			svc, err := auth.NewJWTService(c.String("secret"), clockwork.NewRealClock())
			if err != nil {
				return err
			}
			token, err := svc.EncodeToken(c.String("user"), c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, token)
			return nil
		},
	}
}

func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "push a direct message to a connected user",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "server", Value: "http://localhost:8000", EnvVars: []string{"NEWSPULSE_SERVER"}},
			&cli.StringFlag{Name: "user", Required: true},
			&cli.StringFlag{Name: "message", Required: true},
		},
		Action: func(c *cli.Context) error {
			body, err := json.Marshal(map[string]string{
				"message": c.String("message"),
				"user_id": c.String("user"),
			})
			if err != nil {
				return err
			}

			endpoint := strings.TrimRight(c.String("server"), "/") + "/messages"
			req, err := http.NewRequestWithContext(c.Context, http.MethodPost, endpoint, bytes.NewReader(body))
			if err != nil {
				return err
			}
			req.Header.Set("Content-Type", "application/json")

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to reach server: %w", err)
			}
			defer func() { _ = resp.Body.Close() }()

			if resp.StatusCode != http.StatusAccepted {
				return cli.Exit(fmt.Sprintf("server rejected message: %s", resp.Status), 1)
			}
			fmt.Fprintln(c.App.Writer, "message accepted")
			return nil
		},
	}
}

func withPool(c *cli.Context, fn func(pool *pgxpool.Pool) error) error {
	ctx, cancel := context.WithTimeout(c.Context, 30*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, c.String("database-url"), nil)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool)
}

func init() {
	cli.VersionPrinter = func(c *cli.Context) {
		v := version.Get()
		fmt.Fprintf(c.App.Writer, "%s %s (commit %s, built %s, %s)\n", c.App.Name, v.Version, v.Commit, v.BuildTime, v.GoVersion)
	}
}
