package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

// Config carries all process startup parameters. Values come from the
// environment, optionally seeded from a .env file in the working directory.
type Config struct {
	RPCURL          string
	ContractAddress common.Address
	ABIPath         string

	ListenAddr string

	// Loop intervals. The defaults preserve the deployed cadence (1800s pop,
	// 1830s refresh); set POP_INTERVAL_SEC / REFRESH_INTERVAL_SEC explicitly
	// to run on a different schedule.
	PopInterval     time.Duration
	RefreshInterval time.Duration

	GasLimit    uint64
	JournalPath string
	LogLevel    string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	rpcURL := strings.TrimSpace(getEnv("RPC_URL", ""))
	if rpcURL == "" {
		return nil, fmt.Errorf("RPC_URL required")
	}
	if !strings.HasPrefix(rpcURL, "http") && !strings.HasPrefix(rpcURL, "ws") {
		return nil, fmt.Errorf("RPC_URL must be http(s):// or ws(s)://, got %q", rpcURL)
	}

	rawAddr := strings.TrimSpace(getEnv("CONTRACT_ADDRESS", ""))
	if !common.IsHexAddress(rawAddr) {
		return nil, fmt.Errorf("CONTRACT_ADDRESS missing or not a hex address: %q", rawAddr)
	}

	cfg := &Config{
		RPCURL:          rpcURL,
		ContractAddress: common.HexToAddress(rawAddr),
		ABIPath:         getEnv("ABI_PATH", "contract.abi"),
		ListenAddr:      getEnv("LISTEN_ADDR", ":8000"),
		PopInterval:     time.Duration(getEnvInt("POP_INTERVAL_SEC", 1800)) * time.Second,
		RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_SEC", 1830)) * time.Second,
		GasLimit:        uint64(getEnvInt("GAS_LIMIT", 200000)),
		JournalPath:     getEnv("TX_JOURNAL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	if cfg.PopInterval <= 0 || cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("loop intervals must be positive")
	}
	if cfg.GasLimit == 0 {
		return nil, fmt.Errorf("GAS_LIMIT must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}
