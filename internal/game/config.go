package game

import (
	"time"

	"barter/internal/item"
	"barter/internal/tick"
	"barter/internal/trade"
)

// CurrencyConfig defines one tradeable currency backed by store wallets
type CurrencyConfig struct {
	Key      string
	Name     string
	Plural   string
	Decimal  bool
	Max      int64 // Upper bound per offer, 0 = unlimited
	Starting int64 // Granted on registration
}

// Config configures the game service
type Config struct {
	Currencies    []CurrencyConfig
	Pattern       *trade.Pattern // nil = default layout with the first currency
	InventorySize int
	StarterKit    []item.Stack // Given to new users
	Trade         trade.Config
	Interval      time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Currencies: []CurrencyConfig{
			{Key: "gold", Name: "gold", Plural: "gold", Starting: 100},
		},
		InventorySize: item.DefaultSize,
		StarterKit: []item.Stack{
			item.New("DIAMOND", 3),
			item.New("WOOD", 64),
			item.New("STONE", 32),
		},
		Trade:    trade.DefaultConfig(),
		Interval: tick.DefaultInterval,
	}
}
