package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"housevault/internal/protocol"
	"housevault/internal/transport/httpapi"
)

// adminClient talks to the server's loopback-only /api/admin routes.
type adminClient struct {
	baseURL string
	key     string
	http    *http.Client
}

func adminFlags(name string) (*flag.FlagSet, *string, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	baseURL := fs.String("url", envString("HV_ADMIN_URL", "http://127.0.0.1:8080"), "server base url")
	key := fs.String("key", envString("ADMINISTRATION_KEY", ""), "administration key")
	return fs, baseURL, key
}

func newAdminClient(baseURL, key string) *adminClient {
	return &adminClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		key:     key,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// do sends one admin request and copies the response body to out. Non-2xx
// replies are returned as errors after the body is written.
func (c *adminClient) do(method, path string, body any, out io.Writer) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.baseURL+"/api/admin"+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set(httpapi.HeaderAPIToken, c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Fprintln(out, strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s %s: %s", method, path, resp.Status)
	}
	return nil
}

func runAdmin(name string, args []string, minArgs int, usage string, fn func(c *adminClient, args []string) error) {
	fs, baseURL, key := adminFlags(name)
	_ = fs.Parse(args)
	if fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "usage: admin", name, usage)
		os.Exit(2)
	}
	if err := fn(newAdminClient(*baseURL, *key), fs.Args()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func stateCmd(args []string) {
	runAdmin("state", args, 0, "[-url URL]", func(c *adminClient, _ []string) error {
		return c.do(http.MethodGet, "/state", nil, os.Stdout)
	})
}

func evictionsCmd(args []string) {
	fs, baseURL, key := adminFlags("evictions")
	all := fs.Bool("all", false, "evict every session, not just stale ones")
	_ = fs.Parse(args)
	path := "/trigger-evictions"
	if *all {
		path += "/all"
	}
	if err := newAdminClient(*baseURL, *key).do(http.MethodPost, path, nil, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func evictCmd(args []string) {
	runAdmin("evict", args, 1, "PLAYER_ID", func(c *adminClient, a []string) error {
		return c.do(http.MethodPost, "/evict/"+url.PathEscape(a[0]), nil, os.Stdout)
	})
}

func deletePlayerCmd(args []string) {
	runAdmin("delete-player", args, 1, "PLAYER_ID", func(c *adminClient, a []string) error {
		return c.do(http.MethodDelete, "/player/"+url.PathEscape(a[0]), nil, os.Stdout)
	})
}

func compareCmd(args []string) {
	runAdmin("compare", args, 2, "HOUSE_A HOUSE_B", func(c *adminClient, a []string) error {
		return c.do(http.MethodGet, "/compare/"+url.PathEscape(a[0])+"/"+url.PathEscape(a[1]), nil, os.Stdout)
	})
}

// configCmd dumps every key, reads one key, or sets one key.
func configCmd(args []string) {
	runAdmin("config", args, 0, "[KEY [VALUE]]", func(c *adminClient, a []string) error {
		switch len(a) {
		case 0:
			return c.do(http.MethodGet, "/config", nil, os.Stdout)
		case 1:
			return c.do(http.MethodGet, "/config/"+url.PathEscape(a[0]), nil, os.Stdout)
		default:
			return c.do(http.MethodPut, "/config/"+url.PathEscape(a[0]), protocol.ConfigSetRequest{Value: a[1]}, os.Stdout)
		}
	})
}

// registration runs one registration-list action against the server.
func registration(c *adminClient, action string, out io.Writer) error {
	switch action {
	case "list":
		return c.do(http.MethodGet, "/registration", nil, out)
	case "enable":
		return c.do(http.MethodPost, "/enable-registration", nil, out)
	case "disable":
		return c.do(http.MethodPost, "/disable-registration", nil, out)
	case "clear":
		return c.do(http.MethodDelete, "/clear-registration", nil, out)
	default:
		return fmt.Errorf("unknown registration action %q", action)
	}
}

func registrationCmd(args []string) {
	runAdmin("registration", args, 1, "enable|disable|clear|list", func(c *adminClient, a []string) error {
		return registration(c, a[0], os.Stdout)
	})
}

func purgeCmd(args []string) {
	fs, baseURL, key := adminFlags("purge")
	keep := fs.Int("keep", 1, "players to keep under the key")
	by := fs.String("by", "money", "deletion order: money|first_created|all")
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: admin purge [-keep N] [-by money|first_created|all] REGISTRATION_KEY")
		os.Exit(2)
	}
	req := protocol.PurgeRequest{
		RegistrationKey: fs.Arg(0),
		Options:         protocol.PurgeOptions{RemainingPlayers: keep, DeleteBy: *by},
	}
	if err := newAdminClient(*baseURL, *key).do(http.MethodPost, "/purge-players", req, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
