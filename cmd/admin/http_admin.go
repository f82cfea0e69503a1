package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// getCmd fetches one of the server's loopback-only admin views.
func getCmd(view string, args []string) {
	fs := flag.NewFlagSet(view, flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	session := fs.String("session", "", "session_id filter (rolls)")
	limit := fs.Int("limit", 0, "result limit (rolls, batches)")
	_ = fs.Parse(args)

	q := url.Values{}
	if s := strings.TrimSpace(*session); s != "" && view == "rolls" {
		q.Set("session_id", s)
	}
	if *limit > 0 {
		q.Set("limit", fmt.Sprint(*limit))
	}
	u := strings.TrimRight(strings.TrimSpace(*baseURL), "/") + "/admin/v1/" + view
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	cl := &http.Client{Timeout: 5 * time.Second}
	resp, err := cl.Get(u)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(string(b))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
