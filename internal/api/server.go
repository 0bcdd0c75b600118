// Package api exposes the trained model and the stored series over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lfarias/rodovia/internal/predictor"
	"github.com/lfarias/rodovia/internal/store"
)

type Server struct {
	store *store.Store
	pred  *predictor.Predictor
	port  string
}

func NewServer(store *store.Store, pred *predictor.Predictor, port string) *Server {
	return &Server{
		store: store,
		pred:  pred,
		port:  port,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/heatmap", s.handleHeatmapPoints)
	mux.HandleFunc("/heatmap.png", s.handleHeatmapImage)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
