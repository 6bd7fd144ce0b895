package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/chainsafe/mvm-bridge/pkg/keys"
)

// PromptApprover asks on out and reads a y/N answer from in before every
// wallet signature. Anything but yes declines with keys.ErrUserRejected.
func PromptApprover(in io.Reader, out io.Writer) keys.Approver {
	var mu sync.Mutex
	reader := bufio.NewReader(in)

	return func(ctx context.Context, req keys.ApprovalRequest) error {
		mu.Lock()
		defer mu.Unlock()

		if err := ctx.Err(); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(out, describe(req))
		_, _ = fmt.Fprint(out, "Approve? [y/N]: ")

		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read confirmation: %w", keys.ErrUserRejected)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return nil
		default:
			return fmt.Errorf("declined at prompt: %w", keys.ErrUserRejected)
		}
	}
}

func describe(req keys.ApprovalRequest) string {
	switch req.Kind {
	case keys.RequestSignMessage:
		return fmt.Sprintf("Sign message from %s:\n  %s", req.From.Hex(), req.Message)
	case keys.RequestSendTransaction:
		to := "contract creation"
		if req.To != nil {
			to = req.To.Hex()
		}
		value := "0"
		if req.Value != nil {
			value = decimal.NewFromBigInt(req.Value, -18).String()
		}
		return fmt.Sprintf("Send transaction from %s to %s with value %s", req.From.Hex(), to, value)
	default:
		return fmt.Sprintf("Wallet request %q from %s", req.Kind, req.From.Hex())
	}
}
