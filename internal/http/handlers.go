package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codeBaron-dev/Rider/internal/dispatch"
	"github.com/codeBaron-dev/Rider/internal/matcher"
	"github.com/codeBaron-dev/Rider/internal/ride"
)

const maxIntentBody = 1 << 16

// Machine is the ride state machine as seen by the HTTP layer.
type Machine interface {
	SendIntent(i ride.Intent) error
	Snapshot() ride.State
	States(ctx context.Context) <-chan ride.State
	Navigation(ctx context.Context) <-chan ride.NavigationEvent
	InitialRoute() ride.Route
	Places() ride.PlacesState
	SearchSavedLocations(keyword string) error
	DeleteLocation(id int64) error
	DeleteAllLocations() error
	SearchPlaces(query string) error
	SelectPlace(placeID string) error
	StartDriverMovement(plate string) error
	StopDriverMovement(plate string) bool
}

type Server struct {
	Machine Machine
	Matcher *matcher.Service
	WSReg   *dispatch.WSRegistry
	logger  *slog.Logger
	mux     *mux.Router
}

func NewServer(m Machine, ranker *matcher.Service, ws *dispatch.WSRegistry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if ws == nil {
		ws = dispatch.NewWSRegistry(logger)
	}
	if ranker == nil {
		ranker = &matcher.Service{}
	}
	s := &Server{Machine: m, Matcher: ranker, WSReg: ws, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	api := s.mux.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/intents", s.handleIntent).Methods(http.MethodPost)
	api.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	api.HandleFunc("/route", s.handleRoute).Methods(http.MethodGet)
	api.HandleFunc("/drivers/candidates", s.handleCandidates).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{plate}/movement", s.handleStartMovement).Methods(http.MethodPost)
	api.HandleFunc("/drivers/{plate}/movement", s.handleStopMovement).Methods(http.MethodDelete)
	api.HandleFunc("/locations/search", s.handleSearchLocations).Methods(http.MethodGet)
	api.HandleFunc("/locations/{id:[0-9]+}", s.handleDeleteLocation).Methods(http.MethodDelete)
	api.HandleFunc("/locations", s.handleDeleteAllLocations).Methods(http.MethodDelete)
	api.HandleFunc("/places/autocomplete", s.handleAutocomplete).Methods(http.MethodGet)
	api.HandleFunc("/places/{id}/select", s.handleSelectPlace).Methods(http.MethodPost)
	api.HandleFunc("/places", s.handlePlaces).Methods(http.MethodGet)

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIntentBody))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	intent, err := ride.DecodeIntent(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	annotate(r, slog.String("intent", ride.IntentName(intent)))
	if err := s.Machine.SendIntent(intent); err != nil {
		s.writeMachineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"queued": ride.IntentName(intent)})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Machine.Snapshot())
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ride.NavigationEvent{Route: s.Machine.InitialRoute()})
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	st := s.Machine.Snapshot()
	if st.CurrentLocation == nil {
		http.Error(w, ride.ErrNoLocation.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, s.Matcher.Rank(st.CurrentLocation.Loc, st.Drivers))
}

func (s *Server) handleStartMovement(w http.ResponseWriter, r *http.Request) {
	plate := mux.Vars(r)["plate"]
	if err := s.Machine.StartDriverMovement(plate); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopMovement(w http.ResponseWriter, r *http.Request) {
	if !s.Machine.StopDriverMovement(mux.Vars(r)["plate"]) {
		http.Error(w, "no movement running", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearchLocations(w http.ResponseWriter, r *http.Request) {
	keyword := r.URL.Query().Get("q")
	annotate(r, slog.String("keyword", keyword))
	if err := s.Machine.SearchSavedLocations(keyword); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := s.Machine.DeleteLocation(id); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleDeleteAllLocations(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.DeleteAllLocations(); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	annotate(r, slog.String("query", query))
	if err := s.Machine.SearchPlaces(query); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleSelectPlace(w http.ResponseWriter, r *http.Request) {
	if err := s.Machine.SelectPlace(mux.Vars(r)["id"]); err != nil {
		s.writeMachineError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Machine.Places())
}

func (s *Server) writeMachineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ride.ErrStopped), errors.Is(err, ride.ErrNotStarted):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ride.ErrUnknownDriver):
		status = http.StatusNotFound
	case errors.Is(err, ride.ErrNoLocation):
		status = http.StatusConflict
	default:
		s.logger.Error("machine call failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS streams state snapshots to one client. Navigation events reach
// it through the registry broadcast started by PumpNavigation.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}
	sess := s.WSReg.Add(conn)
	annotate(r, slog.String("session", sess.ID))
	log := s.logger.With("session", sess.ID, "request_id", requestID(r.Context()))
	log.Info("ws session opened")

	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		s.WSReg.Remove(sess.ID)
		_ = conn.Close()
		log.Info("ws session closed")
	}()

	// the read loop only detects the client going away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for st := range s.Machine.States(ctx) {
		if err := sess.Send(dispatch.Frame{Kind: dispatch.KindState, Data: st}); err != nil {
			log.Warn("ws state send failed", "error", err)
			return
		}
	}
}

// PumpNavigation forwards navigation events to every connected session
// until ctx ends.
func (s *Server) PumpNavigation(ctx context.Context) {
	for ev := range s.Machine.Navigation(ctx) {
		n := s.WSReg.Broadcast(dispatch.Frame{Kind: dispatch.KindNavigation, Data: ev})
		s.logger.Debug("navigation broadcast", "route", ev.Route, "sessions", n)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
