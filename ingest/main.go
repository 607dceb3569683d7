package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/kafka-go"

	"github.com/aarush6848ddh/robust-data-processor/internal/config"
	"github.com/aarush6848ddh/robust-data-processor/internal/logger"
	"github.com/aarush6848ddh/robust-data-processor/internal/message"
	"github.com/aarush6848ddh/robust-data-processor/internal/models"
	"github.com/aarush6848ddh/robust-data-processor/internal/normalize"
)

const tenantHeader = "X-Tenant-ID"

// publisher hands a normalized message to the channel. The intake blocks
// only long enough for the handoff; it never waits for the consumer side.
type publisher interface {
	Publish(ctx context.Context, m models.NormalizedMessage) error
}

type kafkaPublisher struct {
	writer *kafka.Writer
}

func (p *kafkaPublisher) Publish(ctx context.Context, m models.NormalizedMessage) error {
	return p.writer.WriteMessages(ctx, message.Encode(m))
}

func main() {
	log := logger.New("ingest")
	cfg, err := config.LoadIngest()
	if err != nil {
		log.Error("load config", slog.Any("err", err))
		os.Exit(1)
	}

	// One writer for the whole process, shared by every request.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 20 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	defer writer.Close()

	srv := &server{log: log, cfg: cfg, pub: &kafkaPublisher{writer: writer}}

	httpServer := &http.Server{
		Addr:              cfg.BindAddr,
		Handler:           newRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	go func() {
		log.Info("ingest server starting", slog.String("addr", cfg.BindAddr), slog.String("topic", cfg.Topic))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", slog.Any("err", err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", slog.Any("err", err))
	}
}

func newRouter(srv *server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", srv.handleHealth)
	r.Post("/ingest", srv.handleIngest)
	return r
}

type server struct {
	log *slog.Logger
	cfg *config.Ingest
	pub publisher
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

type acceptedResponse struct {
	Status   string `json:"status"`
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest normalizes the request by content type, publishes it, and
// answers 202 immediately. All heavy work happens in the worker.
func (s *server) handleIngest(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "Request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Failed to read request body"})
		return
	}

	var msg models.NormalizedMessage
	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		msg, err = normalize.FromJSON(body)
	case strings.Contains(contentType, "text/plain"):
		msg, err = normalize.FromText(body, r.Header.Get(tenantHeader))
	default:
		err = &normalize.ValidationError{
			Message: "Unsupported Content-Type. Use application/json or text/plain.",
			Status:  http.StatusBadRequest,
		}
	}

	if err != nil {
		var verr *normalize.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, verr.Status, errorResponse{Error: verr.Message})
			return
		}
		s.log.Error("normalize", slog.Any("err", err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Detail: err.Error()})
		return
	}

	if err := s.pub.Publish(ctx, msg); err != nil {
		s.log.Error("publish", slog.Any("err", err), slog.String("tenant_id", msg.TenantID))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error", Detail: err.Error()})
		return
	}

	s.log.Debug("accepted",
		slog.String("tenant_id", msg.TenantID),
		slog.String("log_id", msg.LogID),
		slog.String("source", msg.Source),
	)
	writeJSON(w, http.StatusAccepted, acceptedResponse{
		Status:   "accepted",
		TenantID: msg.TenantID,
		LogID:    msg.LogID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// nothing better to do
	}
}
