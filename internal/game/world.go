package game

import (
	"errors"
	"fmt"
	"log"

	"barter/internal/item"
	"barter/internal/store"
	"barter/internal/trade"
)

var (
	ErrNoDrop        = errors.New("no such dropped item")
	ErrPickupBlocked = errors.New("make room for your offered items before picking this up")
	ErrInventoryFull = errors.New("inventory is full")
)

// World keeps items dropped for players and tells running trades about pickups
type World struct {
	store     *store.Store
	listeners map[int]trade.PickupFunc
	nextID    int
}

// NewWorld creates a world backed by the store's drop table
func NewWorld(st *store.Store) *World {
	return &World{
		store:     st,
		listeners: make(map[int]trade.PickupFunc),
	}
}

// ListenPickup registers a guard that is asked before every pickup
func (w *World) ListenPickup(fn trade.PickupFunc) func() {
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	return func() {
		delete(w.listeners, id)
	}
}

// Listeners returns the number of registered guards
func (w *World) Listeners() int {
	return len(w.listeners)
}

// Drop records a stack that is now lying in the world for a party
func (w *World) Drop(id trade.PartyID, s item.Stack) {
	if err := w.store.RecordDrop(string(id), s); err != nil {
		log.Printf("[World] failed to record drop of %dx %s for %s: %v", s.Amount, s.Material, id, err)
		return
	}
	log.Printf("[World] dropped %dx %s for %s", s.Amount, s.Material, id)
}

// Drops lists the items lying in the world for a party
func (w *World) Drops(id trade.PartyID) ([]store.Drop, error) {
	return w.store.DropsFor(string(id))
}

// Pickup moves a dropped stack into the player's inventory if every
// running trade allows it
func (w *World) Pickup(p *Player, dropID int64) error {
	drops, err := w.store.DropsFor(string(p.ID()))
	if err != nil {
		return err
	}

	var drop *store.Drop
	for i := range drops {
		if drops[i].ID == dropID {
			drop = &drops[i]
			break
		}
	}
	if drop == nil {
		return fmt.Errorf("%w: %d", ErrNoDrop, dropID)
	}

	for _, allow := range w.listeners {
		if !allow(p.ID(), drop.Stack) {
			return ErrPickupBlocked
		}
	}

	if !p.inv.Add(drop.Stack) {
		return ErrInventoryFull
	}
	if err := w.store.RemoveDrop(drop.ID); err != nil {
		p.inv.Remove(drop.Stack)
		return err
	}

	p.save()
	return nil
}
