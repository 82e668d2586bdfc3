// Package keyring owns the single signing credential the agent operates with.
//
// The credential lives in process memory only. It is never written to disk,
// never logged, and is lost when the process exits.
package keyring

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrNoAccount reports the normal "not configured yet" state: no credential
// has been accepted, so there is nothing to sign with.
var ErrNoAccount = errors.New("no account available")

// Account is a signing identity derived from the stored credential.
type Account struct {
	Address common.Address
	key     *ecdsa.PrivateKey
}

// Key returns the private key used for transaction signing.
func (a *Account) Key() *ecdsa.PrivateKey { return a.key }

// Info is the externally visible account state.
type Info struct {
	Address       string `json:"address"`
	HasPrivateKey bool   `json:"has_private_key"`
}

// Manager holds the credential and lazily derives the account from it.
// It is safe for concurrent use: credential replacement is atomic under the
// write lock, readers see either the old or the new fully formed account.
type Manager struct {
	mu      sync.RWMutex
	secret  string
	account *Account
}

func NewManager() *Manager {
	return &Manager{}
}

// SetCredential validates and stores a new raw secret. The secret must be
// exactly 64 hex characters after stripping an optional 0x prefix; anything
// else is rejected without touching the previously stored state. Accepting a
// new secret drops any cached account so the next use derives fresh.
func (m *Manager) SetCredential(secret string) error {
	clean := strings.TrimPrefix(strings.TrimSpace(secret), "0x")
	if len(clean) != 64 {
		return fmt.Errorf("private key must be 64 hex characters, got %d characters", len(clean))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.secret = clean
	m.account = nil
	return nil
}

// Account returns the cached account, deriving it from the credential on
// first use. With no credential set it returns ErrNoAccount. A derivation
// failure (a 64-char secret that is not a valid key) leaves the cache absent
// so a later credential update gets a clean retry.
func (m *Manager) Account() (*Account, error) {
	m.mu.RLock()
	if m.account != nil {
		acc := m.account
		m.mu.RUnlock()
		return acc, nil
	}
	secret := m.secret
	m.mu.RUnlock()

	if secret == "" {
		return nil, ErrNoAccount
	}

	key, err := crypto.HexToECDSA(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	acc := &Account{
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}

	m.mu.Lock()
	// A concurrent SetCredential may have replaced the secret while we were
	// deriving; never cache a result for a credential that is gone.
	if m.secret != secret {
		m.mu.Unlock()
		return m.Account()
	}
	defer m.mu.Unlock()
	if m.account == nil {
		m.account = acc
	}
	return m.account, nil
}

// Info reports the current account state. Absence is a normal state, not an
// error: the zero-value Info is returned when no account can be derived.
func (m *Manager) Info() Info {
	acc, err := m.Account()
	if err != nil {
		return Info{}
	}
	return Info{
		Address:       acc.Address.Hex(),
		HasPrivateKey: true,
	}
}
