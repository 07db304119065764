// Package main replays a newline-delimited JSON event log from genesis and
// prints the digest of the resulting ledger state. With -publish it instead
// appends the log to a Redis post stream for the ledger worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"go.uber.org/zap"

	"github.com/canopy-network/postertoken/app/replay"
	"github.com/canopy-network/postertoken/pkg/config"
	"github.com/canopy-network/postertoken/pkg/ledger"
	"github.com/canopy-network/postertoken/pkg/logging"
	"github.com/canopy-network/postertoken/pkg/redis"
)

func main() {
	var input string
	var policy string
	var verbose bool
	var publish string

	flag.StringVar(&input, "in", "-", "event log path (- for stdin)")
	flag.StringVar(&policy, "nonce-policy", config.NonceEnforce, "nonce policy (enforce, disabled)")
	flag.BoolVar(&verbose, "v", false, "log every event")
	flag.StringVar(&publish, "publish", "", "append the log to this Redis stream instead of replaying it")
	flag.Parse()

	if policy != config.NonceEnforce && policy != config.NonceDisabled {
		fmt.Fprintf(os.Stderr, "Error: unknown nonce policy %q\n", policy)
		os.Exit(2)
	}

	logger := zap.NewNop()
	if verbose {
		l, err := logging.New()
		if err != nil {
			// nothing else to do here, we'll just log to stderr'
			panic(err)
		}
		logger = l
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var r io.Reader = os.Stdin
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	if publish != "" {
		client, err := redis.NewClient(ctx, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = client.Close() }()

		n, err := replay.Publish(ctx, r, client, publish, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("published: %d\n", n)
		return
	}

	res, err := replay.Run(ctx, r, ledger.NoncePolicy(policy), logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	statuses := make([]string, 0, len(res.Outcomes))
	for s := range res.Outcomes {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)

	fmt.Printf("events:    %d\n", res.Events)
	fmt.Printf("malformed: %d\n", res.Malformed)
	for _, s := range statuses {
		fmt.Printf("  %-12s %d\n", s, res.Outcomes[ledger.Status(s)])
	}
	fmt.Printf("digest:    %s\n", res.Digest)
}
