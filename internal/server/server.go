package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server accepts websocket connections and hands each one to the
// connection handler on its own goroutine.
type Server struct {
	log      *logrus.Logger
	handler  *Handler
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a server listening on addr.
func New(addr string, log *logrus.Logger, handler *Handler) *Server {
	s := &Server{
		log:     log,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients are first-party apps; origin policy is enforced
			// upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	connID := uuid.NewString()
	s.log.WithFields(logrus.Fields{
		"conn_id": connID,
		"remote":  r.RemoteAddr,
	}).Info("connection accepted")

	// The request goroutine is dedicated to this connection for its
	// whole lifetime.
	s.handler.HandleConn(r.Context(), ws, connID)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.httpSrv.Addr).Info("listening")
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return s.httpSrv.Shutdown(shutdownCtx)
}
