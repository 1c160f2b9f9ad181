package trigger

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Nr18/shipline/internal/ctxlog"
	"github.com/Nr18/shipline/internal/run"
)

// Dispatcher receives normalized events. Dispatch must not block; the
// server acknowledges the webhook as soon as the event is accepted.
type Dispatcher interface {
	Dispatch(event Event)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(event Event)

func (f DispatcherFunc) Dispatch(event Event) { f(event) }

// Server exposes the webhook endpoint of the daemon.
type Server struct {
	dispatcher Dispatcher
	router     chi.Router
}

func NewServer(dispatcher Dispatcher) *Server {
	s := &Server{dispatcher: dispatcher}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealth)
	r.Post("/webhook", s.handleWebhook)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// pushPayload is the subset of a forge push webhook the daemon consumes.
type pushPayload struct {
	Ref        string `json:"ref"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// pullRequestPayload is the subset of a pull_request webhook.
type pullRequestPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		Head struct {
			Ref string `json:"ref"`
			SHA string `json:"sha"`
		} `json:"head"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	log := ctxlog.FromContext(r.Context())

	switch event := r.Header.Get("X-Forge-Event"); event {
	case "push":
		var p pushPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "malformed push payload", http.StatusBadRequest)
			return
		}
		kind, err := ClassifyPush(p.Ref)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		// A push of all-zero "after" is a branch/tag deletion; nothing to run.
		if p.After == "" || p.After == zeroCommit {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.accept(w, Event{Kind: kind, Repo: p.Repository.FullName, Ref: p.Ref, Commit: p.After})

	case "pull_request":
		var p pullRequestPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			http.Error(w, "malformed pull_request payload", http.StatusBadRequest)
			return
		}
		switch p.Action {
		case "opened", "synchronize", "reopened":
		default:
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.accept(w, Event{
			Kind:   run.TriggerPullRequest,
			Repo:   p.Repository.FullName,
			Ref:    "refs/heads/" + p.PullRequest.Head.Ref,
			Commit: p.PullRequest.Head.SHA,
		})

	default:
		log.Debug("Ignoring webhook event", "event", event)
		w.WriteHeader(http.StatusNoContent)
	}
}

const zeroCommit = "0000000000000000000000000000000000000000"

func (s *Server) accept(w http.ResponseWriter, event Event) {
	s.dispatcher.Dispatch(event)
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":   string(event.Kind),
		"ref":    event.Ref,
		"commit": event.Commit,
	})
}
