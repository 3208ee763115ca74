// Package viewserver serves composed views over HTTP, and pushes them over a
// websocket whenever a new anchor changes what a subscriber would see.
package viewserver

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"sync"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/spf13/cast"

	"plasa/consensus/conductor"
	"plasa/consensus/snapshot"
	"plasa/plasa"
	"plasa/views"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	conductor *conductor.Conductor
	router    *mux.Router
}

func New(c *conductor.Conductor) *Server {
	s := &Server{conductor: c, router: mux.NewRouter()}
	// catch the websocket call before anything else
	s.router.Path("/subscribe").Headers("Upgrade", "websocket").HandlerFunc(s.handleWebsocket())
	s.router.HandleFunc("/plasa", s.handleView(views.KindPlasa)).Methods(http.MethodGet)
	s.router.HandleFunc("/spaces/{id}", s.handleView(views.KindSpace)).Methods(http.MethodGet)
	s.router.HandleFunc("/questions/{id}", s.handleView(views.KindQuestion)).Methods(http.MethodGet)
	s.router.HandleFunc("/stamps/{id}", s.handleView(views.KindStamp)).Methods(http.MethodGet)
	s.router.HandleFunc("/anchor", s.handleAnchor).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/compositions", s.handleStats).Methods(http.MethodGet)
	s.router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)
	return s
}

func (s *Server) Handler() http.Handler {
	return cors.Default().Handler(s.router)
}

// Start serves on addr until terminate is closed.
func (s *Server) Start(addr string, terminate chan struct{}, wg *sync.WaitGroup) {
	plasa.LogCLI("Starting the view server", 4)
	srv := &http.Server{
		Handler:           s.Handler(),
		Addr:              addr,
		WriteTimeout:      30 * time.Second,
		ReadTimeout:       2 * time.Second,
		IdleTimeout:       30 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		plasa.LogCLI(fmt.Sprintf("listening on %s", srv.Addr), 4)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			plasa.LogCLI(err.Error(), 1)
		}
	}()
	go func() {
		<-terminate
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			plasa.LogCLI(err.Error(), 2)
		}
		plasa.LogCLI("View server: shutdown complete", 4)
	}()
}

// request is what a caller asks for, over HTTP or over the websocket.
type request struct {
	Kind     views.Kind    `json:"kind"`
	ID       plasa.Address `json:"id"`
	Account  plasa.Account `json:"account"`
	Username string        `json:"username"`
	// At is an optional timestamp to compose as of, in milliseconds.
	At *plasa.Timestamp `json:"at,omitempty"`
}

func (q request) viewer() plasa.Viewer {
	return plasa.Viewer{Account: q.Account, Username: q.Username}
}

func parseRequest(kind views.Kind, r *http.Request) (request, error) {
	values := r.URL.Query()
	q := request{
		Kind:     kind,
		ID:       mux.Vars(r)["id"],
		Account:  values.Get("account"),
		Username: values.Get("username"),
	}
	if at := values.Get("at"); at != "" {
		t, err := cast.ToInt64E(at)
		if err != nil {
			return q, errors.Wrapf(err, "at=%q is not a timestamp", at)
		}
		q.At = &t
	}
	return q, nil
}

// compose resolves the request's anchor, if any, and composes its view.
func (s *Server) compose(ctx context.Context, q request) (interface{}, error) {
	var at *plasa.Anchor
	if q.At != nil {
		a, err := s.conductor.Coordinator().ResolveAnchor(ctx, *q.At)
		if err != nil {
			return nil, err
		}
		at = &a
	}
	return s.conductor.View(ctx, q.Kind, q.ID, q.viewer(), at)
}

func (s *Server) handleView(kind views.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := parseRequest(kind, r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		v, err := s.compose(r.Context(), q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (s *Server) handleAnchor(w http.ResponseWriter, r *http.Request) {
	a, err := s.conductor.Coordinator().Latest(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	coord := s.conductor.Coordinator()
	latest, _ := coord.Anchors().Latest()
	writeJSON(w, http.StatusOK, struct {
		Stats       snapshot.Stats `json:"stats"`
		Latest      plasa.Anchor   `json:"latest"`
		FrozenCount int64          `json:"frozenCount"`
	}{coord.Stats(), latest, coord.Anchors().FrozenCount()})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Status maps a view error to the HTTP status it is served with.
func Status(err error) int {
	switch plasa.KindOf(err) {
	case plasa.KindNotFound:
		return http.StatusNotFound
	case plasa.KindSnapshotUnavailable:
		return http.StatusServiceUnavailable
	case plasa.KindTimeout:
		return http.StatusGatewayTimeout
	case plasa.KindMalformedFact:
		return http.StatusBadGateway
	}
	if errors.Is(err, context.Canceled) {
		return 499
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	body := errorBody{Error: err.Error()}
	if k := plasa.KindOf(err); k != plasa.KindUnknown {
		body.Kind = k.String()
	}
	writeJSON(w, Status(err), body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		plasa.LogCLI(err.Error(), 1)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		plasa.LogCLI(err.Error(), 3)
	}
}
