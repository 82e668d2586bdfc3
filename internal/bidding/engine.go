// Package bidding builds and submits paid bid transactions into the queue
// contract.
package bidding

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/viczommers/QueueChain/internal/journal"
	"github.com/viczommers/QueueChain/internal/keyring"
	"github.com/viczommers/QueueChain/internal/metrics"
)

// Gateway is the slice of the chain gateway the engine needs.
type Gateway interface {
	SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, gasLimit uint64, args ...interface{}) (common.Hash, error)
	AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Confirmation is the caller-visible result of a mined bid.
type Confirmation struct {
	TxHash      common.Hash
	BlockNumber uint64
}

// Engine submits bids with the account held by the keyring.
type Engine struct {
	gw       Gateway
	keys     *keyring.Manager
	gasLimit uint64
	jrnl     *journal.Journal
	log      zerolog.Logger
}

func NewEngine(gw Gateway, keys *keyring.Manager, gasLimit uint64, jrnl *journal.Journal, log zerolog.Logger) *Engine {
	return &Engine{
		gw:       gw,
		keys:     keys,
		gasLimit: gasLimit,
		jrnl:     jrnl,
		log:      log,
	}
}

// SubmitBid sends submitData(url) with value attached and blocks until the
// transaction is mined, so the caller gets back a confirmed block number.
// Without a configured account it fails before touching the chain. A single
// attempt only; any failure is returned to the caller, never retried.
func (e *Engine) SubmitBid(ctx context.Context, url string, value *big.Int) (*Confirmation, error) {
	account, err := e.keys.Account()
	if err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}

	txHash, err := e.gw.SendTransaction(ctx, account.Key(), "submitData", value, e.gasLimit, url)
	if err != nil {
		metrics.BidFailures.Inc()
		_ = e.jrnl.Write(journal.Record{Event: "bid_failed", URL: url, Err: err.Error()})
		return nil, fmt.Errorf("submit bid: %w", err)
	}
	e.log.Info().
		Str("tx_hash", txHash.Hex()).
		Str("url", url).
		Str("value", value.String()).
		Msg("bid submitted")
	_ = e.jrnl.Write(journal.Record{Event: "bid_submitted", URL: url, Value: value.String(), TxHash: txHash.Hex()})

	receipt, err := e.gw.AwaitReceipt(ctx, txHash)
	if err != nil {
		metrics.BidFailures.Inc()
		_ = e.jrnl.Write(journal.Record{Event: "bid_failed", URL: url, TxHash: txHash.Hex(), Err: err.Error()})
		return nil, fmt.Errorf("await bid receipt: %w", err)
	}
	block := receipt.BlockNumber.Uint64()
	if receipt.Status == types.ReceiptStatusFailed {
		e.log.Warn().Str("tx_hash", txHash.Hex()).Uint64("block", block).Msg("bid transaction reverted on-chain")
	} else {
		e.log.Info().Str("tx_hash", txHash.Hex()).Uint64("block", block).Msg("bid confirmed")
	}

	metrics.BidsSubmitted.Inc()
	_ = e.jrnl.Write(journal.Record{Event: "bid_confirmed", URL: url, TxHash: txHash.Hex(), BlockNumber: block})
	return &Confirmation{TxHash: txHash, BlockNumber: block}, nil
}
