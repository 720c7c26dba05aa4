package solana

import (
	"context"
	"time"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"
)

var commitmentRank = map[string]int{
	string(rpc.CommitmentProcessed): 1,
	string(rpc.CommitmentConfirmed): 2,
	string(rpc.CommitmentFinalized): 3,
}

// reached reports whether a signature status satisfies the wanted commitment.
func reached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	have, ok := commitmentRank[string(status)]
	if !ok {
		return false
	}
	return have >= commitmentRank[string(want)]
}

// confirm polls the signature status until it reaches the confirm commitment.
// lastValid of zero disables the blockhash expiry check.
func (cl *Client) confirm(ctx context.Context, sig sol.Signature, lastValid uint64) error {
	if cl.opts.ConfirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.opts.ConfirmTimeout)
		defer cancel()
	}
	start := time.Now()
	ticker := time.NewTicker(cl.opts.PollInterval)
	defer ticker.Stop()

	for {
		var res *rpc.GetSignatureStatusesResult
		err := cl.call(ctx, "getSignatureStatuses", func(ctx context.Context) error {
			var err error
			res, err = cl.rpc.GetSignatureStatuses(ctx, false, sig)
			return err
		})

		var status *rpc.SignatureStatusesResult
		if err == nil && res != nil && len(res.Value) > 0 {
			status = res.Value[0]
		}
		switch {
		case err != nil:
			// transient; keep polling until ctx or expiry decides
			cl.logger.WarnContext(ctx, "signature status poll failed",
				"event", "confirm_poll_error",
				"signature", sig.String(),
				"error", err,
			)
		case status != nil && status.Err != nil:
			cl.metrics.RecordConfirmPoll("failed")
			return &TransactionError{Signature: sig, Err: status.Err}
		case status != nil && reached(status.ConfirmationStatus, cl.opts.ConfirmCommitment):
			cl.metrics.RecordConfirmPoll("confirmed")
			cl.logger.InfoContext(ctx, "transaction confirmed",
				"event", "tx_confirmed",
				"signature", sig.String(),
				"slot", status.Slot,
				"status", status.ConfirmationStatus,
				"wait_ms", time.Since(start).Milliseconds(),
			)
			return nil
		case status == nil && lastValid > 0:
			height, herr := cl.BlockHeight(ctx)
			if herr == nil && height > lastValid {
				cl.metrics.RecordConfirmPoll("expired")
				cl.blockhashes.Invalidate(blockhashKey)
				return errors.Wrapf(ErrBlockhashExpired, "signature %s (height %d > %d)", sig, height, lastValid)
			}
		}
		cl.metrics.RecordConfirmPoll("pending")

		select {
		case <-ctx.Done():
			cl.metrics.RecordConfirmPoll("timeout")
			return errors.Wrapf(ErrConfirmTimeout, "signature %s after %s: %v", sig, time.Since(start).Round(time.Millisecond), ctx.Err())
		case <-ticker.C:
		}
	}
}
