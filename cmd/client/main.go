package main

import (
	"bufio"
	"chat-relay/client"
	"chat-relay/internal"
	"chat-relay/protocol"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const dialTimeout = 5 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	config, err := internal.LoadClientConfig(os.Args[1:])
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdin := bufio.NewScanner(os.Stdin)
	name := config.Name
	if name == "" {
		fmt.Print("Nickname: ")
		if stdin.Scan() {
			name = strings.TrimSpace(stdin.Text())
		}
	}

	// 2. Connection & identity
	c, err := client.Dial(ctx, log, config.Address(), dialTimeout, os.Stdout, true)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		_ = c.Close()
	}()
	if err := c.Identify(name); err != nil {
		return exitRuntime, fmt.Errorf("identify failed: %w", err)
	}

	// 3. Reception runs until the broker closes the connection
	received := make(chan error, 1)
	go func() {
		received <- c.Receive(ctx)
		stop()
	}()

	// 4. Every stdin line is sent as is, /exit ends the session
	lines := make(chan string)
	go func() {
		defer close(lines)
		for stdin.Scan() {
			lines <- stdin.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, <-received
		case line, ok := <-lines:
			if !ok {
				_ = c.Send(protocol.ExitCommand)
				return exitOK, nil
			}
			if err := c.Send(line); err != nil {
				return exitRuntime, fmt.Errorf("send failed: %w", err)
			}
			if line == protocol.ExitCommand {
				return exitOK, nil
			}
		}
	}
}
