package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/angelmondragon/ledgerly-backend/pkg/config"
	"github.com/angelmondragon/ledgerly-backend/pkg/logger"
	"github.com/angelmondragon/ledgerly-backend/pkg/migrate"
)

const usage = `ledgerly schema tool

  -cmd=up|down|status|redo     run a goose command against LEDGERLY_DB_DSN
  -cmd=version -version=N      move the schema to version N
  -cmd=check                   exit 1 when the schema differs from this build
  -cmd=create -name=...        write a new migration into -dir
  -cmd=validate                lint migration files in -dir

Database commands use the migrations embedded in the binary unless -dir is set.
`

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command")
	dir := flag.String("dir", "", "migrations directory (default: embedded; create/validate use "+migrate.DefaultDir+")")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	switch *cmd {
	case "create":
		if *name == "" {
			fail("missing -name for create")
		}
		path, err := migrate.CreateSQLMigration(orDefault(*dir), *name)
		if err != nil {
			fail("failed to create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.ValidateDir(orDefault(*dir)); err != nil {
			fail("migration validation failed: %v", err)
		}
		fmt.Println("migration validation passed")
		return
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		fail("failed to load database config: %v", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       cfg.App.LogLevel,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	// goose talks to Postgres through lib/pq rather than the gorm pool.
	sqlDB, err := sql.Open("postgres", cfg.DB.DSN)
	if err != nil {
		logg.Error(ctx, "failed to open database", err)
		os.Exit(1)
	}
	defer sqlDB.Close()
	if err := sqlDB.PingContext(ctx); err != nil {
		logg.Error(ctx, "database unreachable", err)
		os.Exit(1)
	}

	m, err := migrate.New(sqlDB, *dir)
	if err != nil {
		logg.Error(ctx, "failed to load migrations", err)
		os.Exit(1)
	}

	switch *cmd {
	case "up", "down", "status", "redo":
		err = m.Run(ctx, *cmd)
	case "version":
		if *version == "" {
			fail("missing -version for version command")
		}
		err = m.ToVersion(ctx, *version)
	case "check":
		var state migrate.SchemaState
		state, err = m.State(ctx)
		if err == nil && (state.Behind() || state.Ahead()) {
			err = fmt.Errorf("schema at %d, build expects %d", state.Current, state.Latest)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logg.Error(ctx, "migration command failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration command finished")
}

func orDefault(dir string) string {
	if dir == "" {
		return migrate.DefaultDir
	}
	return dir
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
