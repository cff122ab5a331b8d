package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/NicolasHaas/peermatch/pkg/identity"
	"github.com/NicolasHaas/peermatch/pkg/model"
	"github.com/NicolasHaas/peermatch/pkg/rbac"
	"github.com/NicolasHaas/peermatch/pkg/version"
)

type queueEntryJSON struct {
	UserID       model.UserID        `json:"userId"`
	Difficulties model.DifficultySet `json:"difficulties"`
	EnqueuedAt   string              `json:"enqueuedAt"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

// authorize verifies the caller and checks perm. It writes the error
// response and returns false when the request must stop.
func (s *Server) authorize(w http.ResponseWriter, r *http.Request, perm model.Permission) (identity.Identity, bool) {
	id, err := s.verifier.Verify(r)
	if err != nil {
		s.metrics.FailedAuths.Add(1)
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return identity.Identity{}, false
	}
	if err := rbac.RequirePermission(id.Role, perm); err != nil {
		s.log.Warn("admin request denied", "user", id.UserID, "perm", rbac.PermName(perm))
		writeError(w, http.StatusForbidden, err.Error())
		return identity.Identity{}, false
	}
	return id, true
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, model.PermListRooms); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.coord.Rooms()})
}

func (s *Server) handleExportRooms(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, model.PermListRooms); !ok {
		return
	}
	data, err := ExportRoomsYAML(s.coord.Rooms())
	if err != nil {
		s.log.Error("export rooms", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(data)
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authorize(w, r, model.PermListRooms); !ok {
		return
	}
	entries := s.coord.Queue()
	out := make([]queueEntryJSON, 0, len(entries))
	for _, e := range entries {
		out = append(out, queueEntryJSON{
			UserID:       e.UserID,
			Difficulties: e.Difficulties,
			EnqueuedAt:   e.EnqueuedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"queue": out,
		"stats": s.coord.Stats(),
	})
}

func (s *Server) handleCloseRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := s.authorize(w, r, model.PermCloseRoom)
	if !ok {
		return
	}
	roomID := r.PathValue("id")
	if err := s.closeRoom(roomID, model.CloseAdmin); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			writeError(w, http.StatusNotFound, "room not found")
			return
		}
		s.log.Error("close room", "room", roomID, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	s.log.Info("room closed by admin", "room", roomID, "admin", id.UserID)

	rm, err := s.coord.Room(roomID)
	if err != nil {
		// Evicted from the closed history in the meantime.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rm)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
