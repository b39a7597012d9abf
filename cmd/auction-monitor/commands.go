package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"auction-monitor/internal/domain"
	"auction-monitor/pkg/logger"
)

type subscriptionControl interface {
	ID() domain.SubscriptionID
	Open()
	Close() error
	State() domain.ConnectionState
	Attempts() int
}

// commandLoop reads operator commands, one per line:
//
//	open [id]   connect, or reconnect after the retries ran out
//	close [id]  disconnect
//	status      print each subscription's state
//	help
//
// Without an id, open and close apply to every subscription.
type commandLoop struct {
	subs []subscriptionControl
	byID map[domain.SubscriptionID]subscriptionControl
	out  io.Writer
	log  logger.Logger
}

func newCommandLoop(subs []subscriptionControl, out io.Writer, log logger.Logger) *commandLoop {
	byID := make(map[domain.SubscriptionID]subscriptionControl, len(subs))
	for _, sub := range subs {
		byID[sub.ID()] = sub
	}
	return &commandLoop{subs: subs, byID: byID, out: out, log: log}
}

// Run executes commands until in is exhausted.
func (c *commandLoop) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		c.Execute(scanner.Text())
	}
	return scanner.Err()
}

func (c *commandLoop) Execute(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch strings.ToLower(fields[0]) {
	case "open", "connect":
		for _, sub := range c.targets(fields[1:]) {
			c.log.Info("Manual open", "auction_id", sub.ID().String())
			sub.Open()
		}
	case "close", "disconnect":
		for _, sub := range c.targets(fields[1:]) {
			c.log.Info("Manual close", "auction_id", sub.ID().String())
			if err := sub.Close(); err != nil {
				c.log.Error("Failed to close subscription", "auction_id", sub.ID().String(), "error", err)
			}
		}
	case "status":
		for _, sub := range c.subs {
			fmt.Fprintf(c.out, "auction %s: %s (attempts %d)\n", sub.ID(), sub.State(), sub.Attempts())
		}
	case "help":
		fmt.Fprintln(c.out, "commands: open [id], close [id], status, help")
	default:
		fmt.Fprintf(c.out, "unknown command %q, try help\n", fields[0])
	}
}

// ReopenAll is used on SIGHUP.
func (c *commandLoop) ReopenAll() {
	c.Execute("open")
}

func (c *commandLoop) targets(ids []string) []subscriptionControl {
	if len(ids) == 0 {
		return c.subs
	}
	targets := make([]subscriptionControl, 0, len(ids))
	for _, id := range ids {
		sub, ok := c.byID[domain.SubscriptionID(id)]
		if !ok {
			fmt.Fprintf(c.out, "not watching auction %s\n", id)
			continue
		}
		targets = append(targets, sub)
	}
	return targets
}
