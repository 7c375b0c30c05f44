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

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	doAdmin(http.MethodGet, *baseURL, "/admin/v1/state", nil)
}

func snapshotCmd(args []string) {
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)
	doAdmin(http.MethodPost, *baseURL, "/admin/v1/snapshot", nil)
}

// raidCmd drives the operator raid commands:
//
//	raid status|start|win|lose|restore|history
//	raid time set|add <value> [ticks|sec|min]
//	raid level <n>
//	raid difficulty <peaceful|easy|normal|hard>
//	raid anchor <x> <y> <z>
func raidCmd(args []string) {
	fs := flag.NewFlagSet("raid", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	method, path, q, err := raidRequest(fs.Args())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	doAdmin(method, *baseURL, path, q)
}

func raidRequest(args []string) (method, path string, q url.Values, err error) {
	if len(args) == 0 {
		return "", "", nil, fmt.Errorf("usage: raid <status|start|win|lose|restore|history|time|level|difficulty|anchor> ...")
	}
	q = url.Values{}
	sub, rest := args[0], args[1:]
	path = "/admin/v1/raid/" + sub
	switch sub {
	case "status", "history":
		return http.MethodGet, path, q, nil
	case "start", "win", "lose", "restore":
		return http.MethodPost, path, q, nil
	case "time":
		if len(rest) < 2 {
			return "", "", nil, fmt.Errorf("usage: raid time set|add <value> [ticks|sec|min]")
		}
		q.Set("op", rest[0])
		q.Set("value", rest[1])
		if len(rest) > 2 {
			q.Set("unit", rest[2])
		}
		return http.MethodPost, path, q, nil
	case "level", "difficulty":
		if len(rest) != 1 {
			return "", "", nil, fmt.Errorf("usage: raid %s <value>", sub)
		}
		q.Set("value", rest[0])
		return http.MethodPost, path, q, nil
	case "anchor":
		if len(rest) != 3 {
			return "", "", nil, fmt.Errorf("usage: raid anchor <x> <y> <z>")
		}
		q.Set("x", rest[0])
		q.Set("y", rest[1])
		q.Set("z", rest[2])
		return http.MethodPost, path, q, nil
	default:
		return "", "", nil, fmt.Errorf("unknown raid command %q", sub)
	}
}

func doAdmin(method, baseURL, path string, q url.Values) {
	u := strings.TrimRight(strings.TrimSpace(baseURL), "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, _ := http.NewRequest(method, u, nil)
	cl := &http.Client{Timeout: 10 * time.Second}
	resp, err := cl.Do(req)
	if err != nil {
		fmt.Fprintln(os.Stderr, "request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	fmt.Println(strings.TrimSpace(string(b)))
	if resp.StatusCode/100 != 2 {
		os.Exit(1)
	}
}
