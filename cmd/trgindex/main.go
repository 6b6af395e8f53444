// Command trgindex builds (or updates) a trigram index over a set of
// files, the way cindex builds codesearch's on-disk index — except the
// index here lives in a SQLite database rather than a bespoke file
// format, and every file becomes one indexed row.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/gotrigram/trigram/store/sqlitestore"
	"github.com/gotrigram/trigram/vtab"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	app := &cli.App{
		Name:  "trgindex",
		Usage: "build or update a trigram index over a set of files",
		Description: `trgindex adds the file or directory tree named by each path to the
index, one row per file keyed by the path's deterministic FNV hash. Run it
again over the same paths to refresh an existing index after edits.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "path to the SQLite index database", Value: "trigram.db"},
			&cli.StringFlag{Name: "table", Usage: "indexed column name (shadow-table prefix)", Value: "files"},
			&cli.BoolFlag{Name: "reset", Usage: "drop and recreate the shadow tables before indexing"},
			&cli.BoolFlag{Name: "forbid-full-match-scan", Usage: "error instead of falling back to a full scan for unfilterable patterns"},
			&cli.IntFlag{Name: "max-regexp-memory", Usage: "regex compilation byte budget", Value: 8 << 20},
		},
		Action: func(c *cli.Context) error {
			return runIndex(c, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("trgindex failed", zap.Error(err))
	}
}

func runIndex(c *cli.Context, logger *zap.Logger) error {
	ctx := context.Background()
	dbPath := c.String("db")
	tableName := c.String("table")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if c.Bool("reset") {
		logger.Info("resetting shadow tables", zap.String("table", tableName))
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+tableName+`_content"`); err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+tableName+`_index"`); err != nil {
			return err
		}
	}

	ss, err := sqlitestore.Open(ctx, db, tableName)
	if err != nil {
		return fmt.Errorf("open shadow tables: %w", err)
	}

	table := vtab.Open(ss, ss, vtab.Config{
		ForbidFullMatchScan: c.Bool("forbid-full-match-scan"),
		MaxRegexpMemory:     c.Int("max-regexp-memory"),
	})

	if err := table.Begin(ctx); err != nil {
		return err
	}

	var indexed int
	for _, root := range c.Args().Slice() {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			text, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
				return nil
			}
			if err := table.Update(ctx, fnvID(path), text); err != nil {
				return fmt.Errorf("index %s: %w", path, err)
			}
			indexed++
			return nil
		})
		if err != nil {
			table.Rollback(ctx)
			return err
		}
	}

	if err := table.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	logger.Info("index updated", zap.Int("files", indexed), zap.String("db", dbPath))
	return nil
}

// fnvID derives a stable row id from a file path, so re-indexing the same
// path updates rather than duplicates its row.
func fnvID(path string) int64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211
	h := uint64(offset64)
	for i := 0; i < len(path); i++ {
		h ^= uint64(path[i])
		h *= prime64
	}
	return int64(h & (1<<63 - 1))
}
