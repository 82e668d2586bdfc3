package chain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialRejectsMissingABIFile(t *testing.T) {
	_, err := Dial(context.Background(), "http://localhost:8545", common.Address{}, filepath.Join(t.TempDir(), "missing.abi"), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read contract ABI")
}

func TestDialRejectsMalformedABI(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.abi")
	require.NoError(t, os.WriteFile(path, []byte("{not an abi"), 0o644))

	_, err := Dial(context.Background(), "http://localhost:8545", common.Address{}, path, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse contract ABI")
}

func TestUintResult(t *testing.T) {
	n, err := uintResult("getSubmissionCount", []interface{}{big.NewInt(7)}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), n)

	_, err = uintResult("getSubmissionCount", []interface{}{}, 0)
	require.Error(t, err)
	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, KindABI, ce.Kind)

	_, err = uintResult("getSubmissionCount", []interface{}{"seven"}, 0)
	require.Error(t, err)
}

func TestStringResult(t *testing.T) {
	s, err := stringResult("getSubmissionByIndex", []interface{}{"https://example.org/a"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org/a", s)

	_, err = stringResult("getSubmissionByIndex", []interface{}{big.NewInt(1)}, 0)
	require.Error(t, err)
}
