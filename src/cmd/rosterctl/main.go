// Command rosterctl loads a roster file into the shared roster stores and
// mints development tokens.
//
//	rosterctl import -file staff.csv -to postgres,redis
//	rosterctl token -email alice@example.com -ttl 8h
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ce-fello/recruitment-review-service/src/internal/api"
	"github.com/ce-fello/recruitment-review-service/src/internal/config"
	"github.com/ce-fello/recruitment-review-service/src/internal/logger"
	"github.com/ce-fello/recruitment-review-service/src/internal/roster"
	"github.com/ce-fello/recruitment-review-service/src/internal/store"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "rosterctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rosterctl import -file <path> [-to postgres,redis] | rosterctl token -email <email>")
}

func runImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	file := fs.String("file", "", "roster file (.csv, .json, .yaml)")
	to := fs.String("to", "postgres", "comma separated targets: postgres, redis")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("-file is required")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	entries, err := roster.FileSource{Path: *file, EmailDomain: cfg.Roster.EmailDomain}.Load(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return roster.ErrEmptyRoster
	}
	log.Info("roster file parsed", zap.String("file", *file), zap.Int("entries", len(entries)))

	for _, target := range strings.Split(*to, ",") {
		switch strings.TrimSpace(target) {
		case "postgres":
			if err := importPostgres(ctx, cfg.Database.URL, entries, log); err != nil {
				return err
			}
		case "redis":
			if err := publishRedis(ctx, cfg, entries); err != nil {
				return err
			}
			log.Info("roster published to redis", zap.String("key", cfg.Roster.RedisKey))
		case "":
		default:
			return fmt.Errorf("unknown target %q", target)
		}
	}
	return nil
}

func importPostgres(ctx context.Context, dsn string, entries []roster.Entry, log *zap.Logger) error {
	if dsn == "" {
		return errors.New("database.url is not configured")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return store.NewRepositories(db, log).ReplaceRoster(ctx, entries)
}

func publishRedis(ctx context.Context, cfg *config.Config, entries []roster.Entry) error {
	if cfg.Redis.URL == "" {
		return errors.New("redis.url is not configured")
	}
	client, err := roster.DialRedis(ctx, cfg.Redis.URL)
	if err != nil {
		return err
	}
	defer client.Close()
	return roster.NewRedisSource(client, cfg.Roster.RedisKey).Publish(ctx, entries)
}

func runToken(args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	email := fs.String("email", "", "caller email to embed")
	ttl := fs.Duration("ttl", 8*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("-email is required")
	}
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is not configured")
	}
	tok, err := api.IssueToken(cfg.Auth.JWTSecret, roster.NormalizeEmail(*email), *ttl)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}
