package params

import (
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// TokenUnit is the number of smallest token units per whole token (18 decimals).
var TokenUnit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Economics holds the fixed parameters of the issuance/exchange engine.
// All of them are frozen at platform construction; nothing here is per-call.
type Economics struct {
	RoundDuration time.Duration

	// Bootstrap terms for the very first sale round.
	InitialPrice  *big.Int // wei per whole token
	InitialSupply *big.Int // smallest token units

	// Price recurrence: next = prev * GrowthBps / 10000 + Increment.
	PriceGrowthBps int64
	PriceIncrement *big.Int // wei

	// Referral commission schedule, in basis points of gross cost.
	SaleRefLevel0Bps int64
	SaleRefLevel1Bps int64
	TradeRefBps      int64 // paid to each of the two levels on trade fills
}

type Node struct {
	DataDir string
	APIAddr string
	LogFile string
	// PlatformAddr is the platform's own account on the token and currency
	// ledgers (token owner, escrow custodian, revenue sink).
	PlatformAddr string
	// DevFaucet enables the /faucet endpoint that credits native currency.
	// Devnet only; never enable on a shared deployment.
	DevFaucet bool
}

type Config struct {
	Economics Economics
	Node      Node
}

func Default() Config {
	return Config{
		Economics: Economics{
			RoundDuration:    24 * time.Hour,
			InitialPrice:     wei("10000000000000"),      // 0.00001 ether per token
			InitialSupply:    units("100000000000000000000000"), // 100_000 tokens
			PriceGrowthBps:   10300,
			PriceIncrement:   wei("4000000000000"), // 0.000004 ether
			SaleRefLevel0Bps: 500,
			SaleRefLevel1Bps: 300,
			TradeRefBps:      250,
		},
		Node: Node{
			DataDir:      "./data",
			APIAddr:      ":8080",
			LogFile:      "data/node.log",
			PlatformAddr: "0x1000000000000000000000000000000000000001",
			DevFaucet:    false,
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

	if d := os.Getenv("ROUND_DURATION_S"); d != "" {
		if s, err := strconv.Atoi(d); err == nil && s > 0 {
			cfg.Economics.RoundDuration = time.Duration(s) * time.Second
		}
	}
	if dir := os.Getenv("DATA_DIR"); dir != "" {
		cfg.Node.DataDir = dir
	}
	if addr := os.Getenv("API_ADDR"); addr != "" {
		cfg.Node.APIAddr = addr
	}
	if lf := os.Getenv("LOG_FILE"); lf != "" {
		cfg.Node.LogFile = lf
	}
	if pa := os.Getenv("PLATFORM_ADDR"); pa != "" {
		cfg.Node.PlatformAddr = pa
	}
	if f := os.Getenv("DEV_FAUCET"); f != "" {
		cfg.Node.DevFaucet = f == "true"
	}

	return cfg
}

// wei parses a base-10 wei amount. Panics on malformed literals, which can
// only happen for the hardcoded defaults above.
func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("params: bad wei literal " + s)
	}
	return v
}

func units(s string) *big.Int { return wei(s) }
