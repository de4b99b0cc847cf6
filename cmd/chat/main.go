// Command chat runs the booking dialogue in the terminal against the demo
// directory and an in-memory checkpoint store.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-scheduling-assistant/cmd/mainconfig"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/checkpoint"
	appconfig "github.com/wolfman30/clinic-scheduling-assistant/internal/config"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/demo"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/dialogue"
	"github.com/wolfman30/clinic-scheduling-assistant/internal/lus"
	"github.com/wolfman30/clinic-scheduling-assistant/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	client, err := mainconfig.BuildLLMClient(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "llm client: %v\n", err)
		os.Exit(1)
	}
	svc := lus.NewLLMService(client, lus.WithLogger(logger), lus.WithTimeout(cfg.LUSTimeout))

	engine, err := dialogue.New(svc, demo.NewDirectory(), checkpoint.NewMemoryStore(),
		dialogue.WithLogger(logger),
		dialogue.WithLocation(cfg.Location()),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dialogue engine: %v\n", err)
		os.Exit(1)
	}

	conversationID := uuid.NewString()
	fmt.Printf("conversation %s (type /quit to exit)\n", conversationID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			return
		}
		reply, err := engine.HandleInboundMessage(ctx, conversationID, line)
		if err != nil {
			logger.Error("turn checkpoint failed", "error", err)
		}
		for _, u := range reply.Utterances {
			fmt.Println(u)
		}
		fmt.Printf("  [%s / %s]\n", reply.State, reply.Context)
	}
}
