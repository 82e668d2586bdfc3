// Package advancer fires the time-gated pop transaction that moves the queue
// head forward.
package advancer

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/viczommers/QueueChain/internal/chain"
	"github.com/viczommers/QueueChain/internal/journal"
	"github.com/viczommers/QueueChain/internal/keyring"
	"github.com/viczommers/QueueChain/internal/metrics"
)

// tooEarlyMarker is the revert message substring the contract emits while the
// eligibility window has not elapsed. Hitting it is the expected steady state
// between pops, not a failure.
const tooEarlyMarker = "3 minutes have not passed yet"

// Gateway is the slice of the chain gateway the advancer needs.
type Gateway interface {
	SubmissionCount(ctx context.Context) (uint64, error)
	SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, gasLimit uint64, args ...interface{}) (common.Hash, error)
}

// Outcome classifies one advance attempt.
type Outcome string

const (
	OutcomeNoAccount    Outcome = "no_account"
	OutcomeSkippedEmpty Outcome = "skipped_empty"
	OutcomePopped       Outcome = "popped"
	OutcomeTooEarly     Outcome = "too_early"
	OutcomeFailed       Outcome = "failed"
)

// Advancer sends best-effort popIfReady transactions. It never escalates
// failures: every outcome is logged and counted, and the caller's schedule
// continues regardless.
type Advancer struct {
	gw       Gateway
	keys     *keyring.Manager
	gasLimit uint64
	jrnl     *journal.Journal
	log      zerolog.Logger
}

func New(gw Gateway, keys *keyring.Manager, gasLimit uint64, jrnl *journal.Journal, log zerolog.Logger) *Advancer {
	return &Advancer{
		gw:       gw,
		keys:     keys,
		gasLimit: gasLimit,
		jrnl:     jrnl,
		log:      log,
	}
}

// AdvanceIfReady attempts one pop. Each call re-evaluates from scratch:
// resolve the account, pre-check queue emptiness, then fire popIfReady
// without waiting for its receipt — the next tick comes around soon enough
// either way.
func (a *Advancer) AdvanceIfReady(ctx context.Context) Outcome {
	outcome := a.advance(ctx)
	metrics.PopOutcomes.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (a *Advancer) advance(ctx context.Context) Outcome {
	account, err := a.keys.Account()
	if err != nil {
		a.log.Info().Msg("no account available for popIfReady")
		return OutcomeNoAccount
	}

	// Optimistic pre-check saves the gas of popping an empty queue. A failed
	// read must not block the attempt itself.
	count, err := a.gw.SubmissionCount(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("queue count check failed, attempting pop anyway")
	} else if count == 0 {
		a.log.Debug().Msg("queue is empty, skipping popIfReady")
		return OutcomeSkippedEmpty
	}

	txHash, err := a.gw.SendTransaction(ctx, account.Key(), "popIfReady", nil, a.gasLimit)
	if err != nil {
		if chain.IsRevert(err) && strings.Contains(chain.RevertReason(err), tooEarlyMarker) {
			a.log.Info().Msg("popIfReady called too early, eligibility window not elapsed")
			_ = a.jrnl.Write(journal.Record{Event: "pop_too_early"})
			return OutcomeTooEarly
		}
		a.log.Error().Err(err).Msg("popIfReady failed")
		_ = a.jrnl.Write(journal.Record{Event: "pop_failed", Err: err.Error()})
		return OutcomeFailed
	}

	a.log.Info().Str("tx_hash", txHash.Hex()).Msg("popIfReady transaction sent")
	_ = a.jrnl.Write(journal.Record{Event: "pop_sent", TxHash: txHash.Hex()})
	return OutcomePopped
}
