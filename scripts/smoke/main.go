// Command smoke exercises a running flightline-api instance with a list of
// read-only requests and reports status mismatches. Intended for post-deploy
// verification against staging.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

type target struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Expect   int    `json:"expect"`
	Critical bool   `json:"critical"`
}

type config struct {
	Targets []target `json:"targets"`
}

type result struct {
	Target   target
	Status   int
	OK       bool
	Err      error
	Duration time.Duration
}

func main() {
	var (
		base        string
		token       string
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&token, "token", os.Getenv("SMOKE_TOKEN"), "Bearer token for authenticated targets")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "smoke", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	targets, err := loadTargets(targetsPath)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	client := &http.Client{Timeout: timeout}

	var failures, criticalFailures int
	for _, t := range targets {
		res := run(client, base, token, t)
		printResult(res)
		if !res.OK {
			failures++
			if t.Critical {
				criticalFailures++
			}
		}
	}

	fmt.Printf("\n%d targets, %d failures (%d critical)\n", len(targets), failures, criticalFailures)
	if criticalFailures > 0 {
		os.Exit(1)
	}
}

func loadTargets(path string) ([]target, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets in %s", path)
	}
	return cfg.Targets, nil
}

func run(client *http.Client, base, token string, t target) result {
	req, err := http.NewRequest(t.Method, base+t.Path, nil)
	if err != nil {
		return result{Target: t, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return result{Target: t, Err: err, Duration: elapsed}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	expect := t.Expect
	if expect == 0 {
		expect = http.StatusOK
	}
	return result{
		Target:   t,
		Status:   resp.StatusCode,
		OK:       resp.StatusCode == expect,
		Duration: elapsed,
	}
}

func printResult(r result) {
	mark := "PASS"
	if !r.OK {
		mark = "FAIL"
	}
	if r.Err != nil {
		fmt.Printf("%s %-6s %-45s error: %v\n", mark, r.Target.Method, r.Target.Path, r.Err)
		return
	}
	fmt.Printf("%s %-6s %-45s %d (%s)\n", mark, r.Target.Method, r.Target.Path, r.Status, r.Duration.Round(time.Millisecond))
}
