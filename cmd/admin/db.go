package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type dbQuery struct {
	Name    string
	HouseID string
	Key     string
	Limit   int
}

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", envString("HV_DATA_DIR", "./data"), "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/state/housevault.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	houseID := fs.String("house", "", "house_id filter (sessions)")
	key := fs.String("key", "", "registration key filter (players, deleted)")
	_ = fs.Parse(args)

	q := dbQuery{Name: "players", HouseID: *houseID, Key: *key, Limit: *limit}
	if fs.NArg() > 0 {
		q.Name = strings.TrimSpace(fs.Arg(0))
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "state", "housevault.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runDBQuery(db, q, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if strings.HasPrefix(err.Error(), "unknown query") {
			fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-limit N] [-house ID] [-key KEY] players|deleted|badges|houses|abandoned|sessions|counts")
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// runDBQuery prints one JSON document per row.
func runDBQuery(db *sql.DB, q dbQuery, w io.Writer) error {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	switch q.Name {
	case "players":
		if q.Key != "" {
			return printDocs(db, w, `SELECT doc FROM players WHERE registered_by=? ORDER BY player_id LIMIT ?`, q.Key, q.Limit)
		}
		return printDocs(db, w, `SELECT doc FROM players ORDER BY player_id LIMIT ?`, q.Limit)
	case "deleted":
		if q.Key != "" {
			return printDocs(db, w, `SELECT doc FROM deleted_players WHERE json_extract(doc, '$.registered_by')=? ORDER BY deleted_on DESC LIMIT ?`, q.Key, q.Limit)
		}
		return printDocs(db, w, `SELECT doc FROM deleted_players ORDER BY deleted_on DESC LIMIT ?`, q.Limit)
	case "badges":
		return printDocs(db, w, `SELECT doc FROM registration ORDER BY registration_key LIMIT ?`, q.Limit)
	case "houses":
		return printDocs(db, w, `SELECT doc FROM houses ORDER BY house_id LIMIT ?`, q.Limit)
	case "abandoned":
		return printDocs(db, w, `SELECT doc FROM houses WHERE abandoned=1 ORDER BY house_id LIMIT ?`, q.Limit)
	case "sessions":
		if q.HouseID != "" {
			return printDocs(db, w, `SELECT doc FROM sessions WHERE house_id=? ORDER BY player_id LIMIT ?`, q.HouseID, q.Limit)
		}
		return printDocs(db, w, `SELECT doc FROM sessions ORDER BY player_id LIMIT ?`, q.Limit)
	case "counts":
		var r struct {
			Players   int `json:"players"`
			Houses    int `json:"houses"`
			Abandoned int `json:"abandoned"`
			Sessions  int `json:"sessions"`
			Badges    int `json:"badges"`
			Deleted   int `json:"deleted"`
		}
		row := db.QueryRow(`SELECT
			(SELECT COUNT(*) FROM players),
			(SELECT COUNT(*) FROM houses),
			(SELECT COUNT(*) FROM houses WHERE abandoned=1),
			(SELECT COUNT(*) FROM sessions),
			(SELECT COUNT(*) FROM registration),
			(SELECT COUNT(*) FROM deleted_players)`)
		if err := row.Scan(&r.Players, &r.Houses, &r.Abandoned, &r.Sessions, &r.Badges, &r.Deleted); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		return printJSON(w, r)
	default:
		return fmt.Errorf("unknown query: %s", q.Name)
	}
}

func printDocs(db *sql.DB, w io.Writer, query string, args ...any) error {
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := printJSON(w, json.RawMessage(doc)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
