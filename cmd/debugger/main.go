// debugger samples a running plasad over its debug endpoints.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/eiannone/keyboard"
	jsoniter "github.com/json-iterator/go"

	"plasa/consensus/snapshot"
	"plasa/plasa"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	go quitter()
	if len(os.Args[1:]) < 1 {
		help()
		return
	}
	loc := "127.0.0.1:1031"
	if len(os.Args[1:]) == 2 {
		loc = os.Args[2]
	}
	var sample func() bool
	switch os.Args[1] {
	case "mem":
		dirname := fmt.Sprintf("debug/mem/%d", time.Now().Unix())
		sample = func() bool { return logHeap(loc, dirname) }
	case "stats":
		sample = func() bool { return logStats(loc) }
	default:
		help()
		return
	}
	for sample() {
		<-time.After(time.Second * 30)
	}
}

func quitter() {
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			panic(err)
		}
		str := string(r)
		switch str {
		default:
			if k == 13 {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to anything, press q to quit.")
		case "q":
			os.Exit(1)
		}
	}
}

func help() {
	fmt.Println()
	fmt.Println("PLASA DEBUGGER TOOL USAGE")
	fmt.Println()
	fmt.Println("This tool samples a running plasad every 30 seconds.")
	fmt.Println()
	fmt.Println("debugger <mem|stats> <plasad address (optional)>")
	fmt.Println()
}

func fetch(loc, path string) ([]byte, bool) {
	response, err := http.Get("http://" + loc + path)
	if err != nil {
		plasa.LogCLI(err.Error(), 2)
		return nil, false
	}
	defer response.Body.Close()
	buf := bytes.Buffer{}
	if _, err = io.Copy(&buf, response.Body); err != nil {
		plasa.LogCLI(err.Error(), 2)
		return nil, false
	}
	if response.StatusCode != http.StatusOK {
		plasa.LogCLI(fmt.Sprintf("%s returned %s", path, response.Status), 2)
		return nil, false
	}
	return buf.Bytes(), true
}

func logHeap(loc, dirname string) bool {
	b, ok := fetch(loc, "/debug/pprof/heap")
	if !ok {
		return false
	}
	if err := os.MkdirAll(dirname, 0755); err != nil {
		plasa.LogCLI(err.Error(), 2)
		return false
	}
	name := filepath.Join(dirname, fmt.Sprintf("mem.%d.pprof", time.Now().Unix()))
	if err := os.WriteFile(name, b, 0644); err != nil {
		plasa.LogCLI(err.Error(), 2)
		return false
	}
	fmt.Printf("\nwrote %d bytes to %s\n", len(b), name)
	return true
}

func logStats(loc string) bool {
	b, ok := fetch(loc, "/debug/compositions")
	if !ok {
		return false
	}
	var out struct {
		Stats       snapshot.Stats `json:"stats"`
		Latest      plasa.Anchor   `json:"latest"`
		FrozenCount int64          `json:"frozenCount"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		plasa.LogCLI(err.Error(), 2)
		return false
	}
	s := out.Stats
	fmt.Printf("\n%s anchor %s: %d runs, %d retries, %d unavailable, %d failures, %.2f attempts/run, p50 %.1fms p90 %.1fms max %.1fms, %d frozen balances\n",
		time.Now().Format(time.RFC3339), out.Latest, s.Runs, s.Retries, s.Unavailable, s.Failures, s.MeanAttempts, s.P50Millis, s.P90Millis, s.MaxMillis, out.FrozenCount)
	return true
}
