package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"sandgate/internal/bus"
	"sandgate/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	consoleChannel = "cli"
	consoleChatID  = "direct"
	consoleSender  = "user"
)

// runConsole feeds stdin lines to the bus as inbound messages and prints
// replies for the console chat until ctx ends or in is exhausted.
func runConsole(ctx context.Context, b bus.MessageBus, in io.Reader, out io.Writer) {
	go func() {
		for {
			msg, err := b.ConsumeOutbound(ctx)
			if err != nil {
				return
			}
			if msg.Channel != consoleChannel {
				continue
			}
			fmt.Fprintf(out, "%s\n", msg.Content)
		}
	}()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := b.PublishInbound(ctx, bus.InboundMessage{
			Channel:   consoleChannel,
			SenderID:  consoleSender,
			ChatID:    consoleChatID,
			Content:   line,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			logger.Warn(ctx, "console publish failed", zap.Error(err))
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn(ctx, "console input failed", zap.Error(err))
	}
}
