// Package game connects players to trades: it owns the tick loop, the trade
// manager and the adapters that back trades with the store.
package game

import (
	"context"
	"errors"
	"fmt"
	"log"

	"barter/internal/item"
	"barter/internal/store"
	"barter/internal/tick"
	"barter/internal/trade"
)

var (
	ErrNotConnected     = errors.New("player is not connected")
	ErrAlreadyConnected = errors.New("player is already connected")
	ErrNotTrading       = errors.New("player is not trading")
)

// ShutdownReason is sent to everyone still trading when the service stops
const ShutdownReason = "The trade was cancelled: the server is shutting down."

// Service runs every trade on a single tick loop
type Service struct {
	cfg     Config
	store   *store.Store
	loop    *tick.Loop
	world   *World
	manager *trade.Manager
	players map[trade.PartyID]*Player

	onTradeEnd []func(trade.Event)
}

// NewService validates the layout and builds the trade manager
func NewService(st *store.Store, cfg Config) (*Service, error) {
	if cfg.InventorySize <= 0 {
		cfg.InventorySize = item.DefaultSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = tick.DefaultInterval
	}

	s := &Service{
		cfg:     cfg,
		store:   st,
		loop:    tick.NewLoop(),
		world:   NewWorld(st),
		players: make(map[trade.PartyID]*Player),
	}

	currencies := make(trade.Currencies, len(cfg.Currencies))
	for _, c := range cfg.Currencies {
		currencies[c.Key] = trade.Currency{
			Name:    c.Name,
			Plural:  c.Plural,
			Decimal: c.Decimal,
			Max:     c.Max,
			Wallet:  storeWallet{svc: s, currency: c.Key},
		}
	}

	pattern := cfg.Pattern
	if pattern == nil {
		key := ""
		if len(cfg.Currencies) > 0 {
			key = cfg.Currencies[0].Key
		}
		pattern = trade.DefaultPattern(key)
	}
	if err := pattern.Validate(currencies); err != nil {
		return nil, fmt.Errorf("layout %q: %w", pattern.Name, err)
	}

	s.manager = trade.NewManager(trade.Options{
		Pattern:    pattern,
		Currencies: currencies,
		Scheduler:  s.loop,
		World:      s.world,
		Recorder:   tradeLog{svc: s},
		Config:     cfg.Trade,
	})

	return s, nil
}

// Loop returns the tick loop every trade runs on
func (s *Service) Loop() *tick.Loop {
	return s.loop
}

// World returns the world holding dropped items
func (s *Service) World() *World {
	return s.world
}

// OnTradeEnd registers a callback for finished and cancelled trades. It runs on the loop.
func (s *Service) OnTradeEnd(fn func(trade.Event)) {
	s.onTradeEnd = append(s.onTradeEnd, fn)
}

// Run drives the loop until ctx is done, then cancels running trades and
// saves every connected inventory
func (s *Service) Run(ctx context.Context) {
	log.Printf("[Game] service started (tick %s)", s.cfg.Interval)
	s.loop.Run(ctx, s.cfg.Interval)

	// The loop has stopped; this goroutine owns the state now
	s.manager.CancelAll(ShutdownReason)
	for _, p := range s.players {
		p.save()
	}
	log.Printf("[Game] service stopped, %d inventories saved", len(s.players))
}

// Register creates a user with the starting balances and starter kit
func (s *Service) Register(username, password string) (*store.User, error) {
	user, err := s.store.CreateUser(username, password)
	if err != nil {
		return nil, err
	}

	for _, c := range s.cfg.Currencies {
		if c.Starting <= 0 {
			continue
		}
		if err := s.store.Deposit(user.ID, c.Key, c.Starting); err != nil {
			return nil, fmt.Errorf("grant %s: %w", c.Key, err)
		}
	}

	inv := item.NewInventory(s.cfg.InventorySize)
	for _, st := range s.cfg.StarterKit {
		inv.Add(st)
	}
	if err := s.store.SaveInventory(user.ID, inv); err != nil {
		return nil, fmt.Errorf("save starter kit: %w", err)
	}

	log.Printf("[Game] registered %s", username)
	return user, nil
}

// Connect attaches a user's client to the service
func (s *Service) Connect(ctx context.Context, userID string, out Outbox) (trade.PartyID, error) {
	var id trade.PartyID
	err := s.loop.Call(ctx, func() error {
		p, err := s.connect(userID, out)
		if err != nil {
			return err
		}
		id = p.ID()
		return nil
	})
	return id, err
}

// Disconnect cancels the player's trade and saves their inventory
func (s *Service) Disconnect(ctx context.Context, id trade.PartyID) error {
	return s.loop.Call(ctx, func() error {
		s.disconnect(id)
		return nil
	})
}

// Handle applies one client command on the loop
func (s *Service) Handle(ctx context.Context, id trade.PartyID, cmd Command) error {
	return s.loop.Call(ctx, func() error {
		return s.handle(id, cmd)
	})
}

// Inventory returns a copy of a user's inventory, live if connected
func (s *Service) Inventory(ctx context.Context, user *store.User) (*item.Inventory, error) {
	var inv *item.Inventory
	err := s.loop.Call(ctx, func() error {
		if p := s.players[trade.PartyID(user.Username)]; p != nil {
			inv = p.inv.Copy()
			return nil
		}
		var err error
		inv, err = s.store.LoadInventory(user.ID, s.cfg.InventorySize)
		return err
	})
	return inv, err
}

func (s *Service) connect(userID string, out Outbox) (*Player, error) {
	user, err := s.store.GetUserByID(userID)
	if err != nil {
		return nil, err
	}
	id := trade.PartyID(user.Username)
	if s.players[id] != nil {
		return nil, fmt.Errorf("%s: %w", id, ErrAlreadyConnected)
	}

	inv, err := s.store.LoadInventory(user.ID, s.cfg.InventorySize)
	if err != nil {
		return nil, err
	}

	p := &Player{svc: s, user: user, inv: inv, out: out}
	s.players[id] = p
	p.pushInventory()

	log.Printf("[Game] %s connected (%d online)", id, len(s.players))
	return p, nil
}

func (s *Service) disconnect(id trade.PartyID) {
	p := s.players[id]
	if p == nil {
		return
	}
	s.manager.Leave(id)
	p.save()
	delete(s.players, id)
	log.Printf("[Game] %s disconnected (%d online)", id, len(s.players))
}

// userID resolves a party to the user that owns its wallets
func (s *Service) userID(id trade.PartyID) (string, error) {
	if p := s.players[id]; p != nil {
		return p.user.ID, nil
	}
	user, err := s.store.GetUserByUsername(string(id))
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
