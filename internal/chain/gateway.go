// Package chain is the single point of contact with the blockchain node and
// the queue contract. All reads and writes funnel through the Gateway so the
// gas-price/nonce/sign/broadcast sequence stays one unit and RPC tuning lives
// in one place.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

const receiptPollInterval = time.Second

// Gateway binds an RPC connection to the queue contract's ABI.
type Gateway struct {
	client   *ethclient.Client
	abi      abi.ABI
	contract common.Address
	chainID  *big.Int
	log      zerolog.Logger

	// txMu serializes the fetch-nonce/sign/broadcast unit so two concurrent
	// writes from the same account cannot race on nonce allocation.
	txMu sync.Mutex
}

// Dial connects to the RPC endpoint, reads the contract ABI description from
// abiPath once, and resolves the chain ID used for transaction signing.
func Dial(ctx context.Context, rpcURL string, contract common.Address, abiPath string, log zerolog.Logger) (*Gateway, error) {
	raw, err := os.ReadFile(abiPath)
	if err != nil {
		return nil, fmt.Errorf("read contract ABI: %w", err)
	}
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC %s: %w", rpcURL, err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("fetch chain ID: %w", err)
	}

	log.Info().
		Str("contract", contract.Hex()).
		Str("chain_id", chainID.String()).
		Msg("chain gateway connected")

	return &Gateway{
		client:   client,
		abi:      parsed,
		contract: contract,
		chainID:  chainID,
		log:      log,
	}, nil
}

func (g *Gateway) Close() { g.client.Close() }

// Connected probes RPC liveness. A false result is terminal for the request
// that observed it; nothing here retries.
func (g *Gateway) Connected(ctx context.Context) bool {
	_, err := g.client.BlockNumber(ctx)
	return err == nil
}

// call packs, executes, and unpacks one read-only contract call.
func (g *Gateway) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return nil, &Error{Kind: KindABI, Method: method, Err: err}
	}
	out, err := g.client.CallContract(ctx, ethereum.CallMsg{To: &g.contract, Data: data}, nil)
	if err != nil {
		return nil, classifyRPCError(method, err)
	}
	vals, err := g.abi.Unpack(method, out)
	if err != nil {
		return nil, &Error{Kind: KindABI, Method: method, Err: err}
	}
	return vals, nil
}

// SubmissionCount reads the current queue length.
func (g *Gateway) SubmissionCount(ctx context.Context) (uint64, error) {
	vals, err := g.call(ctx, "getSubmissionCount")
	if err != nil {
		return 0, err
	}
	n, err := uintResult("getSubmissionCount", vals, 0)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// CurrentSongURL reads the URL of the queue head.
func (g *Gateway) CurrentSongURL(ctx context.Context) (string, error) {
	vals, err := g.call(ctx, "getCurrentSong")
	if err != nil {
		return "", err
	}
	return stringResult("getCurrentSong", vals, 0)
}

// SubmissionURL reads the URL payload at a queue index.
func (g *Gateway) SubmissionURL(ctx context.Context, index uint64) (string, error) {
	vals, err := g.call(ctx, "getSubmissionByIndex", new(big.Int).SetUint64(index))
	if err != nil {
		return "", err
	}
	return stringResult("getSubmissionByIndex", vals, 0)
}

// SubmitterByIndex reads the submitting address at a queue index.
func (g *Gateway) SubmitterByIndex(ctx context.Context, index uint64) (common.Address, error) {
	vals, err := g.call(ctx, "getSubmitterByIndex", new(big.Int).SetUint64(index))
	if err != nil {
		return common.Address{}, err
	}
	if len(vals) < 1 {
		return common.Address{}, &Error{Kind: KindABI, Method: "getSubmitterByIndex", Err: errors.New("empty result")}
	}
	addr, ok := vals[0].(common.Address)
	if !ok {
		return common.Address{}, &Error{Kind: KindABI, Method: "getSubmitterByIndex", Err: fmt.Errorf("unexpected result type %T", vals[0])}
	}
	return addr, nil
}

// TimestampByIndex reads the submission timestamp (unix seconds) at an index.
func (g *Gateway) TimestampByIndex(ctx context.Context, index uint64) (uint64, error) {
	vals, err := g.call(ctx, "getTimestampByIndex", new(big.Int).SetUint64(index))
	if err != nil {
		return 0, err
	}
	return uintResult("getTimestampByIndex", vals, 0)
}

// SendTransaction builds, signs, and broadcasts one contract write as a
// single unit: suggest gas price, fetch the sender's pending nonce, pack the
// call, sign, send. A failure in any sub-step aborts the unit; nothing
// partial is retained and nothing is retried.
func (g *Gateway) SendTransaction(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, gasLimit uint64, args ...interface{}) (common.Hash, error) {
	data, err := g.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, &Error{Kind: KindABI, Method: method, Err: err}
	}
	if value == nil {
		value = new(big.Int)
	}

	g.txMu.Lock()
	defer g.txMu.Unlock()

	from := crypto.PubkeyToAddress(key.PublicKey)
	gasPrice, err := g.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, classifyRPCError(method, fmt.Errorf("suggest gas price: %w", err))
	}
	nonce, err := g.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, classifyRPCError(method, fmt.Errorf("pending nonce for %s: %w", from.Hex(), err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &g.contract,
		Value:    value,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(g.chainID), key)
	if err != nil {
		return common.Hash{}, &Error{Kind: KindABI, Method: method, Err: fmt.Errorf("sign: %w", err)}
	}
	if err := g.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, classifyRPCError(method, err)
	}

	g.log.Debug().
		Str("method", method).
		Str("tx_hash", signed.Hash().Hex()).
		Uint64("nonce", nonce).
		Str("gas_price", gasPrice.String()).
		Msg("transaction broadcast")
	return signed.Hash(), nil
}

// AwaitReceipt blocks until the transaction is mined or ctx expires.
func (g *Gateway) AwaitReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, classifyRPCError("eth_getTransactionReceipt", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func uintResult(method string, vals []interface{}, i int) (uint64, error) {
	if len(vals) <= i {
		return 0, &Error{Kind: KindABI, Method: method, Err: errors.New("missing result value")}
	}
	n, ok := vals[i].(*big.Int)
	if !ok {
		return 0, &Error{Kind: KindABI, Method: method, Err: fmt.Errorf("unexpected result type %T", vals[i])}
	}
	return n.Uint64(), nil
}

func stringResult(method string, vals []interface{}, i int) (string, error) {
	if len(vals) <= i {
		return "", &Error{Kind: KindABI, Method: method, Err: errors.New("missing result value")}
	}
	s, ok := vals[i].(string)
	if !ok {
		return "", &Error{Kind: KindABI, Method: method, Err: fmt.Errorf("unexpected result type %T", vals[i])}
	}
	return s, nil
}
