package relay

import (
	"encoding/json"
	"errors"
	"expvar"
	"net/http"

	"github.com/gorilla/mux"
)

// RoomStatus is the admin view of one room.
type RoomStatus struct {
	Name     string   `json:"name"`
	Capacity int      `json:"capacity"`
	Members  []string `json:"members"`
	Host     string   `json:"host,omitempty"`
}

// Status returns every room with its members, sorted by name.
func (s *Server) Status() []RoomStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.lobby.List()
	out := make([]RoomStatus, len(list))
	for i, r := range list {
		out[i] = RoomStatus{
			Name:     r.Name,
			Capacity: r.Capacity,
			Members:  s.lobby.Members(r.Name),
			Host:     s.lobby.Host(r.Name),
		}
	}
	return out
}

// NewAdminRouter exposes room listings, kicks and expvar counters over HTTP.
func NewAdminRouter(s *Server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/rooms", s.handleRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms/{name}", s.handleRoom).Methods(http.MethodGet)
	r.HandleFunc("/peers/{id}", s.handleKick).Methods(http.MethodDelete)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	for _, room := range s.Status() {
		if room.Name == name {
			writeJSON(w, http.StatusOK, room)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	reason := r.URL.Query().Get("reason")
	if err := s.Kick(id, reason); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrUnknownPeer) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
