package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"housevault/internal/protocol"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "state":
		stateCmd(args)
	case "evictions":
		evictionsCmd(args)
	case "evict":
		evictCmd(args)
	case "delete-player":
		deletePlayerCmd(args)
	case "compare":
		compareCmd(args)
	case "config":
		configCmd(args)
	case "registration":
		registrationCmd(args)
	case "purge":
		purgeCmd(args)
	case "journal":
		journalCmd(args)
	case "db":
		dbCmd(args)
	case "schema":
		schemaCmd(args)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: admin <command> [flags]

server (loopback, needs ADMINISTRATION_KEY):
  state                      player/house/session counts
  evictions [-all]           run an eviction sweep now
  evict PLAYER_ID            end one session
  delete-player PLAYER_ID    delete a player and abandon their house
  compare HOUSE_A HOUSE_B    list differing cells
  config [KEY [VALUE]]       dump, read or override tuning
  registration enable|disable|clear|list
                             manage registration keys
  purge [-keep N] [-by money|first_created|all] KEY
                             delete surplus players under a key

offline:
  journal [-kind audit|events] [-action A] [-actor P] [-house H] [-since DUR]
  db [-db PATH] players|deleted|badges|houses|abandoned|sessions|counts
  schema [NAME]              print request JSON schemas`)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func journalCmd(args []string) {
	fs := flag.NewFlagSet("journal", flag.ExitOnError)
	dataDir := fs.String("data", envString("HV_DATA_DIR", "./data"), "runtime data directory")
	dir := fs.String("dir", "", "journal directory (default: <data>/journal)")
	kind := fs.String("kind", "audit", "audit or events")
	f := journalFilter{}
	fs.StringVar(&f.Action, "action", "", "audit action filter (ROB, BUILD, EVICT, ...)")
	fs.StringVar(&f.Actor, "actor", "", "audit actor filter")
	fs.StringVar(&f.HouseID, "house", "", "audit house_id filter")
	fs.StringVar(&f.EventKind, "event", "", "event kind filter (robbery_attempt, house_edit, ...)")
	since := fs.Duration("since", 0, "only entries newer than this")
	_ = fs.Parse(args)

	if *kind != "audit" && *kind != "events" {
		fmt.Fprintln(os.Stderr, "-kind must be audit or events")
		os.Exit(2)
	}
	if *since > 0 {
		f.Since = time.Now().Add(-*since)
	}
	base := strings.TrimSpace(*dir)
	if base == "" {
		base = envString("HV_JOURNAL_DIR", filepath.Join(*dataDir, "journal"))
	}
	n, err := dumpJournal(filepath.Join(base, *kind), *kind, f, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "journal:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d entries\n", n)
}

func schemaCmd(args []string) {
	names := args
	if len(names) == 0 {
		names = protocol.SchemaNames()
	}
	if err := writeSchemas(os.Stdout, names); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func writeSchemas(w io.Writer, names []string) error {
	for _, name := range names {
		b, err := protocol.SchemaJSON(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "# %s\n%s\n", name, b); err != nil {
			return err
		}
	}
	return nil
}
