package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vitrine-commerce/vitrine-backend/pkg/config"
	"github.com/vitrine-commerce/vitrine-backend/pkg/db"
	"github.com/vitrine-commerce/vitrine-backend/pkg/logger"
	"github.com/vitrine-commerce/vitrine-backend/pkg/migrate"
)

type options struct {
	dir     string
	name    string
	version string
}

// command is one migrate subcommand. offline commands run without a database.
type command struct {
	offline bool
	run     func(ctx context.Context, client *db.Client, opts options) error
}

var commands = map[string]command{
	"create": {offline: true, run: func(_ context.Context, _ *db.Client, opts options) error {
		if opts.name == "" {
			return errors.New("-name is required")
		}
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name)
		if err != nil {
			return err
		}
		fmt.Println("created", path)
		return nil
	}},
	"validate": {offline: true, run: func(_ context.Context, _ *db.Client, opts options) error {
		return migrate.ValidateDir(opts.dir)
	}},
	"up": {run: func(ctx context.Context, client *db.Client, opts options) error {
		return migrate.Up(ctx, client, opts.dir)
	}},
	"down":   {run: gooseCommand("down")},
	"status": {run: gooseCommand("status")},
	"version": {run: func(ctx context.Context, client *db.Client, opts options) error {
		if opts.version == "" {
			return errors.New("-version is required")
		}
		sqlDB, err := postgresOnly(client)
		if err != nil {
			return err
		}
		return migrate.MigrateToVersion(ctx, sqlDB, opts.dir, opts.version)
	}},
}

func gooseCommand(name string) func(context.Context, *db.Client, options) error {
	return func(ctx context.Context, client *db.Client, opts options) error {
		sqlDB, err := postgresOnly(client)
		if err != nil {
			return err
		}
		return migrate.Run(ctx, sqlDB, opts.dir, name)
	}
}

func postgresOnly(client *db.Client) (*sql.DB, error) {
	if client.Dialect() == db.DialectSQLite {
		return nil, migrate.ErrSQLiteUnsupported
	}
	return client.SQL()
}

func commandNames() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func main() {
	_ = godotenv.Load()

	cmdName := flag.String("cmd", "up", "migration command: "+commandNames())
	var opts options
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "goose migrations directory")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: "migrate"}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmdName,
		"dir": opts.dir,
	})

	cmd, ok := commands[*cmdName]
	if !ok {
		logg.Error(ctx, "unknown migrate command", fmt.Errorf("want one of %s", commandNames()))
		os.Exit(2)
	}

	var client *db.Client
	if !cmd.offline {
		client, err = db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap database", err)
			os.Exit(1)
		}
		defer client.Close()
		ctx = logg.WithField(ctx, "dialect", client.Dialect())
	}

	if err := cmd.run(ctx, client, opts); err != nil {
		logg.Error(ctx, "migrate command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate command complete")
}
