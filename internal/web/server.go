// Package web provides the HTTP status page, action configuration, and live
// gesture feed for the keyless-relay daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/sweeney/keyless-relay/internal/actions"
	"github.com/sweeney/keyless-relay/internal/logic"
	"github.com/sweeney/keyless-relay/internal/mqtt"
	"github.com/sweeney/keyless-relay/internal/status"
)

// maxBody caps request bodies on the config endpoints.
const maxBody = 4096

// Server serves the status page, the action form, and the JSON API.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	manager    *actions.Manager
	hub        *Hub
	logger     *slog.Logger
}

// New creates a Server. hub may be nil to disable /ws.
func New(addr string, tracker *status.Tracker, manager *actions.Manager, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{tracker: tracker, manager: manager, hub: hub, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/actions", s.handleActions)
	mux.HandleFunc("/api/actions", s.handleAPIActions)
	if hub != nil {
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			hub.serveWS(w, r, tracker)
		})
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderIndex(w, snap, s.hub != nil)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// formKey names the select element for one table entry, e.g. "c0short".
func formKey(ch int, g logic.Gesture) string {
	return fmt.Sprintf("c%d%s", ch, g)
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		renderActions(w, s.manager, "", nil)

	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		current := s.manager.Table().Snapshot()
		var problems []string
		changed := 0
		for ch := 0; ch < logic.Channels; ch++ {
			for _, g := range logic.Gestures {
				key := formKey(ch, g)
				if !r.PostForm.Has(key) {
					continue
				}
				a, err := logic.ParseAction(r.PostForm.Get(key))
				if err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", key, err))
					continue
				}
				if current[actions.Key{Channel: ch, Gesture: g}] == a {
					continue
				}
				if err := s.manager.Apply(ch, g, a); err != nil {
					problems = append(problems, fmt.Sprintf("%s: %v", key, err))
					continue
				}
				changed++
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if len(problems) > 0 {
			w.WriteHeader(http.StatusBadRequest)
			renderActions(w, s.manager, "", problems)
			return
		}
		renderActions(w, s.manager, fmt.Sprintf("Saved (%d changed).", changed), nil)

	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// ActionEntry is one table entry in the JSON API.
type ActionEntry struct {
	Channel int    `json:"channel"`
	Gesture string `json:"gesture"`
	Action  string `json:"action"`
}

// ActionsJSON is the JSON API document for the whole table.
type ActionsJSON struct {
	Relays  int           `json:"relays"`
	Actions []ActionEntry `json:"actions"`
}

func (s *Server) actionsJSON() ActionsJSON {
	snap := s.manager.Table().Snapshot()
	out := ActionsJSON{Relays: s.manager.Relays()}
	for ch := 0; ch < logic.Channels; ch++ {
		for _, g := range logic.Gestures {
			out.Actions = append(out.Actions, ActionEntry{
				Channel: ch,
				Gesture: g.String(),
				Action:  snap[actions.Key{Channel: ch, Gesture: g}].String(),
			})
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

type errorJSON struct {
	Error string `json:"error"`
}

func (s *Server) handleAPIActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.actionsJSON())

	case http.MethodPut, http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
		if err != nil {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorJSON{Error: err.Error()})
			return
		}
		cmd, err := mqtt.ParseActionCommand(body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
			return
		}

		err = s.manager.Apply(cmd.Channel, cmd.Gesture, cmd.Action)
		switch {
		case err == nil:
		case errors.Is(err, actions.ErrPersist):
			// Applied in memory; report the storage failure.
			writeJSON(w, http.StatusInternalServerError, errorJSON{Error: err.Error()})
			return
		default:
			writeJSON(w, http.StatusBadRequest, errorJSON{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, ActionEntry{
			Channel: cmd.Channel,
			Gesture: cmd.Gesture.String(),
			Action:  cmd.Action.String(),
		})

	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorJSON{Error: "method not allowed"})
	}
}
