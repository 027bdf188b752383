package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"corerpc/contract"
	"corerpc/endpoint"
	"corerpc/engine"
	"corerpc/examples/calc"
	"corerpc/transport/tcp"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newCallCmd(logger *zap.Logger) *cobra.Command {
	var (
		addr    string
		a, b    int
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Call Calc.Add against a running corerpcd server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(logger, addr, a, b, timeout)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "server address to dial")
	cmd.Flags().IntVar(&a, "a", 2, "first operand")
	cmd.Flags().IntVar(&b, "b", 3, "second operand")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "call deadline")
	return cmd
}

func runCall(logger *zap.Logger, addr string, a, b int, timeout time.Duration) error {
	tr, err := tcp.Dial("tcp", addr, logger)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	ep := endpoint.New(tr, engine.OriginatorClient, logger)
	defer ep.Close(0)

	req, err := json.Marshal(calc.AddRequest{A: a, B: b})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	respBytes, err := ep.UnaryRequest(ctx, "Calc", "Add", contract.Metadata{TimeoutMS: timeout.Milliseconds()}, req)
	if err != nil {
		color.Red("call failed: %v", err)
		return err
	}

	var resp calc.AddResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return err
	}
	color.Green("Calc.Add(%d, %d) = %d", a, b, resp.Sum)
	return nil
}
