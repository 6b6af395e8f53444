// Command trgquery runs a MATCH pattern against a table built by
// trgindex and prints the matching row ids, the way csearch runs a
// regexp against codesearch's index and prints matching paths — minus
// cserver's HTML front end, which has no home in this module.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"

	"github.com/gotrigram/trigram/planner"
	"github.com/gotrigram/trigram/store/sqlitestore"
	"github.com/gotrigram/trigram/vtab"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	app := &cli.App{
		Name:      "trgquery",
		Usage:     "search a trigram-indexed table for rows matching a pattern",
		ArgsUsage: "pattern...",
		Description: `trgquery behaves like csearch over a table trgindex built: each
argument is a MATCH pattern ("substr:foo", "substr-extents:foo",
"regexp:f.o", or "regexp-extents:f.o"); multiple patterns are ANDed
together. Matching row ids are printed one per line, in ascending order
unless -desc is given; with an "-extents" pattern, matched byte ranges
are printed alongside each id.`,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Usage: "path to the SQLite index database", Value: "trigram.db"},
			&cli.StringFlag{Name: "table", Usage: "indexed column name (shadow-table prefix)", Value: "files"},
			&cli.BoolFlag{Name: "desc", Usage: "report matches in descending id order"},
			&cli.BoolFlag{Name: "forbid-full-match-scan", Usage: "error instead of falling back to a full scan for unfilterable patterns"},
			&cli.IntFlag{Name: "max-regexp-memory", Usage: "regex compilation byte budget", Value: 8 << 20},
		},
		Action: func(c *cli.Context) error {
			return runQuery(c, logger)
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Fatal("trgquery failed", zap.Error(err))
	}
}

func runQuery(c *cli.Context, logger *zap.Logger) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one pattern is required", 2)
	}
	ctx := context.Background()

	db, err := sql.Open("sqlite", c.String("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ss, err := sqlitestore.Open(ctx, db, c.String("table"))
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
	defer table.Rollback(ctx)

	raw := make([][]byte, c.NArg())
	extents := make([]bool, c.NArg())
	for i, p := range c.Args().Slice() {
		raw[i] = []byte(p)
		extents[i] = isExtentsPattern(p)
	}

	order := planner.OrderAsc
	if c.Bool("desc") {
		order = planner.OrderDesc
	}

	cur, err := table.Filter(ctx, raw, nil, order)
	if err != nil {
		return fmt.Errorf("filter: %w", err)
	}
	defer cur.Reset()

	found := 0
	for {
		id, ok, err := cur.Next()
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if !ok {
			break
		}
		found++
		printMatch(id, cur, extents)
	}
	logger.Info("query complete", zap.Int("matches", found))
	return nil
}

func isExtentsPattern(p string) bool {
	for _, prefix := range []string{"substr-extents:", "regexp-extents:"} {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func printMatch(id int64, cur *vtab.Cursor, extents []bool) {
	any := false
	for i, wantExtents := range extents {
		if !wantExtents {
			continue
		}
		for _, e := range cur.Extents(i) {
			fmt.Printf("%d:%d:%d\n", id, e.Start, e.End)
			any = true
		}
	}
	if !any {
		fmt.Println(id)
	}
}
