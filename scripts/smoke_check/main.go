package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// step is one request in the smoke run. Later steps may use values captured
// by earlier ones through {token} and {id} placeholders.
type step struct {
	Name     string
	Method   string
	Path     string
	Body     interface{}
	Expect   int
	Critical bool
	Capture  func(data map[string]interface{}, vars map[string]string)
}

type result struct {
	Step     step
	Status   int
	Duration time.Duration
	Error    error
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	var (
		base    string
		prefix  string
		timeout time.Duration
	)

	flag.StringVar(&base, "base", "http://localhost:8080", "API base URL")
	flag.StringVar(&prefix, "prefix", "/api", "API route prefix")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	client := &http.Client{Timeout: timeout}
	vars := map[string]string{}

	var (
		results  []result
		breaking int
		optional int
	)
	for _, s := range anonymousFlow(prefix) {
		res := run(client, base, s, vars)
		if res.Error != nil || res.Status != s.Expect {
			if s.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)

	fmt.Printf("Critical failures: %d, Optional failures: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

// anonymousFlow exercises the public surface: health, submission, tracking
// and the checks that must refuse an anonymous caller.
func anonymousFlow(prefix string) []step {
	prefix = "/" + strings.Trim(prefix, "/")
	return []step{
		{Name: "health", Method: http.MethodGet, Path: "/health", Expect: http.StatusOK, Critical: true},
		{Name: "ready", Method: http.MethodGet, Path: "/ready", Expect: http.StatusOK},
		{
			Name:   "submit report",
			Method: http.MethodPost,
			Path:   prefix + "/reports",
			Body: map[string]string{
				"title":       "Smoke check",
				"description": "Automated post-deploy submission",
				"category":    "Other",
			},
			Expect:   http.StatusCreated,
			Critical: true,
			Capture: func(data map[string]interface{}, vars map[string]string) {
				if v, ok := data["anonymousToken"].(string); ok {
					vars["token"] = v
				}
				if v, ok := data["id"].(string); ok {
					vars["id"] = v
				}
			},
		},
		{Name: "track report", Method: http.MethodGet, Path: prefix + "/reports/track/{token}", Expect: http.StatusOK, Critical: true},
		{Name: "track unknown token", Method: http.MethodGet, Path: prefix + "/reports/track/unknown", Expect: http.StatusNotFound, Critical: true},
		{Name: "list requires admin", Method: http.MethodGet, Path: prefix + "/reports", Expect: http.StatusUnauthorized, Critical: true},
		{Name: "status change requires admin", Method: http.MethodPatch, Path: prefix + "/reports/{id}/status", Body: map[string]string{"status": "closed"}, Expect: http.StatusUnauthorized, Critical: true},
	}
}

func run(client *http.Client, base string, s step, vars map[string]string) result {
	res := result{Step: s}
	if client == nil {
		res.Error = errors.New("nil client")
		return res
	}

	path := s.Path
	for k, v := range vars {
		path = strings.ReplaceAll(path, "{"+k+"}", v)
	}
	if strings.Contains(path, "{") {
		res.Error = fmt.Errorf("unresolved placeholder in %s", path)
		return res
	}

	var body io.Reader
	if s.Body != nil {
		raw, err := json.Marshal(s.Body)
		if err != nil {
			res.Error = err
			return res
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(s.Method, strings.TrimRight(base, "/")+path, body)
	if err != nil {
		res.Error = err
		return res
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	res.Duration = time.Since(start)
	if err != nil {
		res.Error = err
		return res
	}
	defer resp.Body.Close()
	res.Status = resp.StatusCode

	if s.Capture == nil || resp.StatusCode != s.Expect {
		return res
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		res.Error = fmt.Errorf("decode envelope: %w", err)
		return res
	}
	var data map[string]interface{}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		res.Error = fmt.Errorf("decode data: %w", err)
		return res
	}
	s.Capture(data, vars)
	return res
}

func printReport(results []result) {
	fmt.Println("Smoke Check Report")
	fmt.Println("==================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.Status != res.Step.Expect {
			status = "FAIL"
		}
		fmt.Printf("[%s] %s %s %s\n", status, res.Step.Name, res.Step.Method, res.Step.Path)
		fmt.Printf("  Status: %d, expected %d (%s)\n", res.Status, res.Step.Expect, res.Duration)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
		}
	}
}
