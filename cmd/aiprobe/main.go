// Command aiprobe sends a short test prompt through the configured AI
// provider and prints the reply. Useful for checking credentials and
// connectivity before deploying.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/GarethPark/story-subscription-sub001/internal/config"
	"github.com/GarethPark/story-subscription-sub001/pkg/ai"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	prompt := flag.String("prompt", "Write one sentence about a lighthouse.", "prompt to send")
	timeout := flag.Duration("timeout", 60*time.Second, "request timeout")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		exitErr(fmt.Errorf("load config: %w", err))
	}
	if cfg.AIBaseURL == "" {
		exitErr(fmt.Errorf("aiBaseURL is not configured"))
	}

	gen := ai.NewOpenAICompatGenerator(cfg.AIBaseURL, cfg.AIAPIKey, cfg.AIModel)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	reply, err := gen.GenerateText(ctx, "You are a concise assistant.", *prompt)
	if err != nil {
		exitErr(fmt.Errorf("generate: %w", err))
	}
	fmt.Printf("model:   %s\n", cfg.AIModel)
	fmt.Printf("latency: %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("reply:   %s\n", reply)
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
