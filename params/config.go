package params

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Exchange struct {
	// FeeAccount receives the fee skimmed from every trade. Hex address.
	FeeAccount string
	// FeePercent is the integer percentage applied to the taker's
	// incoming amount on each fill.
	FeePercent int64
	// CustodyAccount identifies the exchange on external token ledgers:
	// deposits require an allowance granted to this address.
	CustodyAccount string
}

type Node struct {
	DBPath     string
	ListenAddr string
	LogFile    string
	// RequireSignatures makes the API reject mutating requests that are
	// not signed by the acting account. Off by default for devnet.
	RequireSignatures bool
}

type Config struct {
	Exchange Exchange
	Node     Node
}

func Default() Config {
	return Config{
		Exchange: Exchange{
			FeeAccount:     "0x00000000000000000000000000000000000000FE",
			FeePercent:     10,
			CustodyAccount: "0x00000000000000000000000000000000000000EC",
		},
		Node: Node{
			DBPath:     "data/exchange.db",
			ListenAddr: ":8080",
			LogFile:    "data/exchange.log",
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("FEE_ACCOUNT"); v != "" {
		cfg.Exchange.FeeAccount = v
	}
	if v := os.Getenv("FEE_PERCENT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Exchange.FeePercent = n
		}
	}
	if v := os.Getenv("CUSTODY_ACCOUNT"); v != "" {
		cfg.Exchange.CustodyAccount = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Node.DBPath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Node.ListenAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Node.LogFile = v
	}
	if v := os.Getenv("REQUIRE_SIGNATURES"); v != "" {
		cfg.Node.RequireSignatures = v == "true"
	}

	return cfg
}
