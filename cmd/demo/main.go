// Command demo walks through the client API against a running server:
// listing models, one buffered completion and one streamed completion.
//
//	LLMCLIENT_BASE_URL=http://localhost:9090/v1 go run ./cmd/demo
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rhuss/llmclient/pkg/api"
	"github.com/rhuss/llmclient/pkg/client"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "demo failed: %v\n", err)
		var pe *api.ProtocolError
		if errors.As(err, &pe) {
			fmt.Fprintf(os.Stderr, "server said (%d): %s\n", pe.StatusCode, pe.Message())
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	baseURL := envOrDefault("LLMCLIENT_BASE_URL", "http://localhost:9090/v1")
	model := envOrDefault("LLMCLIENT_MODEL", "dummy")

	fmt.Println("=== llmclient demo ===")
	fmt.Printf("server: %s\n\n", baseURL)

	c, err := client.New(client.Config{
		BaseURL: baseURL,
		APIKey:  os.Getenv("LLMCLIENT_API_KEY"),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	// 1. Model catalog
	models, err := c.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("listing models: %w", err)
	}
	fmt.Printf("[1] %d model(s):\n", len(models.Data))
	for _, m := range models.Data {
		fmt.Printf("    - %s\n", m.ID)
	}

	params := client.Params{
		Model: model,
		Messages: []api.Message{
			{Role: api.RoleSystem, Content: "Answer in one short sentence."},
			{Role: api.RoleUser, Content: "Count from 1 to 5"},
		},
		Temperature: client.Float64(0),
		MaxTokens:   client.Int(50),
	}

	// 2. Buffered completion
	completion, err := c.Chat.Completions.Create(ctx, params)
	if err != nil {
		return fmt.Errorf("buffered completion: %w", err)
	}
	finish := api.FinishReasonUnset
	if len(completion.Choices) > 0 {
		finish = completion.Choices[0].FinishReason
	}
	fmt.Printf("\n[2] Buffered (%s, finish=%s):\n    %s\n", completion.Model, finish, completion.Text())

	// 3. Streamed completion, printed as it arrives
	stream, err := c.Chat.Completions.CreateStream(ctx, params)
	if err != nil {
		return fmt.Errorf("streamed completion: %w", err)
	}
	fmt.Print("\n[3] Streamed:\n    ")
	chunks := 0
	for chunk, err := range stream.All() {
		if err != nil {
			return fmt.Errorf("reading stream: %w", err)
		}
		chunks++
		for _, choice := range chunk.Choices {
			fmt.Print(choice.Delta.Text())
		}
	}
	fmt.Printf("\n    (%d chunks, %d dropped frames)\n", chunks, stream.Dropped())

	fmt.Println("\n=== demo complete ===")
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
