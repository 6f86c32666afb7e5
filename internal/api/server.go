package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"time"

	"barter/internal/game"
	"barter/internal/item"
	"barter/internal/store"
	"barter/internal/trade"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
)

type Server struct {
	svc         *game.Service
	hub         *Hub
	store       *store.Store
	sessions    *SessionStore
	rateLimiter *RateLimiter
	staticFS    fs.FS
	upgrader    websocket.Upgrader
	corsOrigins []string // Allowed CORS origins (empty = allow all)
}

func NewServer(svc *game.Service, st *store.Store, staticFS fs.FS) *Server {
	s := &Server{
		svc:         svc,
		hub:         NewHub(),
		store:       st,
		sessions:    NewSessionStore(st, DefaultSessionTTL),
		rateLimiter: NewRateLimiter(300, 1*time.Minute),
		staticFS:    staticFS,
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.checkCORSOrigin(r.Header.Get("Origin"))
		},
	}

	// Clients refresh their history and wallet when a trade ends
	svc.OnTradeEnd(func(ev trade.Event) {
		for _, id := range ev.Parties {
			s.hub.Notify(id, game.Message{
				Type:    game.MsgTradeEnd,
				TradeID: ev.TradeID,
				Outcome: ev.Outcome.String(),
			})
		}
	})
	return s
}

// SetCORSOrigins sets the allowed CORS origins.
// Pass an empty slice to allow all origins (default, for development).
func (s *Server) SetCORSOrigins(origins []string) {
	s.corsOrigins = origins
}

func (s *Server) checkCORSOrigin(origin string) bool {
	if len(s.corsOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.corsOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.rateLimiter.Middleware)

	allowedOrigins := s.corsOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)
		r.Post("/auth/logout", s.handleLogout)

		r.Get("/wallet", s.getWallet)
		r.Get("/inventory", s.getInventory)
		r.Get("/trades", s.getTrades)
		r.Get("/trades/{id}", s.getTrade)
		r.Get("/drops", s.getDrops)
	})

	r.Get("/ws", s.handleWebSocket)

	if s.staticFS != nil {
		fileServer := http.FileServer(http.FS(s.staticFS))
		r.Handle("/*", fileServer)
	}

	return r
}

type WalletResponse struct {
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

type TradeItemResponse struct {
	From  string     `json:"from"`
	To    string     `json:"to"`
	Stack item.Stack `json:"stack"`
}

type CurrencyResponse struct {
	Party    string `json:"party"`
	Currency string `json:"currency"`
	Diff     int64  `json:"diff"`
}

type TradeResponse struct {
	ID          string              `json:"id"`
	FirstParty  string              `json:"first_party"`
	SecondParty string              `json:"second_party"`
	Outcome     string              `json:"outcome"`
	Reason      string              `json:"reason,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	Items       []TradeItemResponse `json:"items"`
	Currencies  []CurrencyResponse  `json:"currencies"`
}

type DropResponse struct {
	ID        int64      `json:"id"`
	Stack     item.Stack `json:"stack"`
	CreatedAt time.Time  `json:"created_at"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func tradeResponse(rec store.TradeRecord) TradeResponse {
	resp := TradeResponse{
		ID:          rec.ID,
		FirstParty:  rec.FirstParty,
		SecondParty: rec.SecondParty,
		Outcome:     rec.Outcome,
		Reason:      rec.Reason,
		CreatedAt:   rec.CreatedAt,
		Items:       make([]TradeItemResponse, 0, len(rec.Items)),
		Currencies:  make([]CurrencyResponse, 0, len(rec.Currencies)),
	}
	for _, it := range rec.Items {
		resp.Items = append(resp.Items, TradeItemResponse{From: it.From, To: it.To, Stack: it.Stack})
	}
	for _, c := range rec.Currencies {
		resp.Currencies = append(resp.Currencies, CurrencyResponse{Party: c.Party, Currency: c.Currency, Diff: c.Diff})
	}
	return resp
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	wallets, err := s.store.Wallets(user.ID)
	if err != nil {
		http.Error(w, "failed to get wallet", http.StatusInternalServerError)
		return
	}

	resp := make([]WalletResponse, 0, len(wallets))
	for _, wl := range wallets {
		resp = append(resp, WalletResponse{Currency: wl.Currency, Balance: wl.Balance})
	}
	writeJSON(w, resp)
}

func (s *Server) getInventory(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	inv, err := s.svc.Inventory(r.Context(), user)
	if err != nil {
		http.Error(w, "failed to get inventory", http.StatusInternalServerError)
		return
	}
	writeJSON(w, inv)
}

func (s *Server) getTrades(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	limit := 50
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 {
		limit = n
	}

	records, err := s.store.TradesFor(user.Username, limit)
	if err != nil {
		http.Error(w, "failed to get trades", http.StatusInternalServerError)
		return
	}

	resp := make([]TradeResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, tradeResponse(rec))
	}
	writeJSON(w, resp)
}

func (s *Server) getTrade(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	rec, err := s.store.GetTrade(chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrTradeNotFound) {
		http.Error(w, "trade not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "failed to get trade", http.StatusInternalServerError)
		return
	}
	if rec.FirstParty != user.Username && rec.SecondParty != user.Username {
		http.Error(w, "trade not found", http.StatusNotFound)
		return
	}
	writeJSON(w, tradeResponse(*rec))
}

func (s *Server) getDrops(w http.ResponseWriter, r *http.Request) {
	user := s.requireUser(w, r)
	if user == nil {
		return
	}

	drops, err := s.svc.World().Drops(trade.PartyID(user.Username))
	if err != nil {
		http.Error(w, "failed to get drops", http.StatusInternalServerError)
		return
	}

	resp := make([]DropResponse, 0, len(drops))
	for _, d := range drops {
		resp = append(resp, DropResponse{ID: d.ID, Stack: d.Stack, CreatedAt: d.CreatedAt})
	}
	writeJSON(w, resp)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session := s.getSession(r)
	if session == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := newClient(s.hub, s.svc, conn)

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	id, err := s.svc.Connect(ctx, session.UserID, client)
	cancel()
	if err != nil {
		log.Printf("[API] websocket connect for %s refused: %v", session.UserID, err)
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()))
		conn.Close()
		return
	}

	client.id = id
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// Online returns the number of connected players
func (s *Server) Online() int {
	return s.hub.Online()
}

// Shutdown stops internal goroutines (session cleanup, rate limiter, hub)
func (s *Server) Shutdown() {
	s.sessions.Stop()
	s.rateLimiter.Stop()
	s.hub.Stop()
}
