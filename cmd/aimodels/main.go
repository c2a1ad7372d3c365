// Command aimodels lists the models the configured AI provider offers,
// so the aiModel config value can be checked against what is actually
// available.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/GarethPark/story-subscription-sub001/internal/config"
)

type modelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	if cfg.AIBaseURL == "" {
		exitErr(fmt.Errorf("aiBaseURL is not configured"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := strings.TrimRight(cfg.AIBaseURL, "/") + "/models"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		exitErr(fmt.Errorf("build request: %w", err))
	}
	if cfg.AIAPIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.AIAPIKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		exitErr(fmt.Errorf("list models: %w", err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		exitErr(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		exitErr(fmt.Errorf("list models: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var models modelsResponse
	if err := json.Unmarshal(body, &models); err != nil {
		exitErr(fmt.Errorf("parse response: %w", err))
	}

	sort.Slice(models.Data, func(i, j int) bool { return models.Data[i].ID < models.Data[j].ID })
	var configuredFound bool
	for _, m := range models.Data {
		marker := " "
		if m.ID == cfg.AIModel {
			marker = "*"
			configuredFound = true
		}
		fmt.Printf("%s %s\t%s\n", marker, m.ID, m.OwnedBy)
	}
	fmt.Printf("\n%d models\n", len(models.Data))
	if cfg.AIModel != "" && !configuredFound {
		fmt.Fprintf(os.Stderr, "warning: configured model %q not in list\n", cfg.AIModel)
		os.Exit(1)
	}
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
