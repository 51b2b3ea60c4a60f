// Command tilectl administers the tile grid: schema migrations, grid
// rebuilds and bitmask backfills.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/assassinoNz/CarShare-Server/internal/app"
	"github.com/assassinoNz/CarShare-Server/internal/config"
	"github.com/assassinoNz/CarShare-Server/internal/logging"
	internalRedis "github.com/assassinoNz/CarShare-Server/internal/redis"
	"github.com/assassinoNz/CarShare-Server/internal/repository/postgres"
	"github.com/assassinoNz/CarShare-Server/internal/service"
)

const usage = `usage: tilectl <command> [flags]

commands:
  migrate        apply pending migrations (--down N rolls back N)
  rebuild-grid   build and activate a new grid version (--x, --y)
  backfill       recompute stale trip bitmasks (--batch)
  show-grid      print the active grid
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil && !errors.Is(err, errHelp) {
		fmt.Fprintln(os.Stderr, "tilectl:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprint(out, usage)
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := logging.New(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	command, rest := args[0], args[1:]
	flags := pflag.NewFlagSet("tilectl "+command, pflag.ContinueOnError)

	switch command {
	case "migrate":
		down := flags.Int("down", 0, "number of migrations to roll back")
		if err := parse(flags, rest); err != nil {
			return err
		}
		if *down > 0 {
			return app.MigrateDown(cfg.Database, *down, logger)
		}
		return app.MigrateUp(cfg.Database, logger)

	case "rebuild-grid":
		x := flags.Int("x", cfg.Grid.NumTilesX, "number of tile columns")
		y := flags.Int("y", cfg.Grid.NumTilesY, "number of tile rows")
		if err := parse(flags, rest); err != nil {
			return err
		}
		return withGridService(ctx, cfg, logger, func(grids *service.GridService) error {
			grid, err := grids.Rebuild(ctx, *x, *y)
			if err != nil {
				return err
			}
			return printJSON(out, gridSummary(grid.Version, grid.NumTilesX, grid.NumTilesY, len(grid.Tiles), grid.Active, grid.CreatedAt))
		})

	case "backfill":
		batch := flags.Int("batch", 100, "trips re-indexed per batch")
		timeout := flags.Duration("timeout", 30*time.Minute, "overall time limit")
		if err := parse(flags, rest); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(ctx, *timeout)
		defer cancel()
		return withGridService(ctx, cfg, logger, func(grids *service.GridService) error {
			result, err := grids.Backfill(ctx, *batch)
			if err != nil {
				return err
			}
			return printJSON(out, result)
		})

	case "show-grid":
		if err := parse(flags, rest); err != nil {
			return err
		}
		db, err := app.NewDatabase(ctx, cfg.Database, nil)
		if err != nil {
			return err
		}
		defer db.Close()
		grid, err := postgres.NewTileGridRepository(db).GetActive(ctx)
		if err != nil {
			return err
		}
		summary := gridSummary(grid.Version, grid.NumTilesX, grid.NumTilesY, len(grid.Tiles), grid.Active, grid.CreatedAt)
		summary["boundingBox"] = grid.BoundingBox
		return printJSON(out, summary)
	}

	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", command)
}

// errHelp stops a command after its flag usage was printed.
var errHelp = errors.New("help requested")

func parse(flags *pflag.FlagSet, args []string) error {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}
	return nil
}

// withGridService connects to PostgreSQL and Redis and hands fn a grid
// service sharing the server's lock and cache.
func withGridService(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(*service.GridService) error) error {
	db, err := app.NewDatabase(ctx, cfg.Database, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nil)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	cacheStore := internalRedis.NewCacheStore(redisClient)
	engine, err := app.NewGeometryEngine(cfg.Geometry, db)
	if err != nil {
		return err
	}
	routes, err := app.NewRouteProvider(cfg.Routing, cacheStore, logger)
	if err != nil {
		return err
	}

	return fn(service.NewGridService(service.GridServiceConfig{
		Grids:     postgres.NewTileGridRepository(db),
		Hosted:    postgres.NewHostedTripRepository(db),
		Requested: postgres.NewRequestedTripRepository(db),
		Routes:    routes,
		Engine:    engine,
		Cache:     cacheStore,
		Lock:      internalRedis.NewLockStore(redisClient),
		Box:       cfg.Grid.BoundingBox(),
		MaxRoutes: cfg.Matching.ValueLimit,
		Logger:    logger,
	}))
}

func gridSummary(version int64, x, y, tiles int, active bool, created time.Time) map[string]any {
	return map[string]any{
		"version":   version,
		"numTilesX": x,
		"numTilesY": y,
		"tiles":     tiles,
		"active":    active,
		"createdAt": created,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
