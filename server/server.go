package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/xhad/twitoff/internal/models"
	"github.com/xhad/twitoff/internal/types"
	"github.com/xhad/twitoff/pkg/ingest"
	"github.com/xhad/twitoff/pkg/metrics"
	"github.com/xhad/twitoff/pkg/predictor"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI may be served from another origin
	},
}

// Message is the envelope for every websocket frame sent to the client.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

// request is what the client sends over the websocket.
type request struct {
	Type  string `json:"type"`
	User1 string `json:"user1"`
	User2 string `json:"user2"`
	Text  string `json:"text"`
	Name  string `json:"name"`
}

type compareRequest struct {
	User1 string `json:"user1"`
	User2 string `json:"user2"`
	Text  string `json:"text"`
}

type addRequest struct {
	Name string `json:"name"`
}

type compareResponse struct {
	*models.Prediction
	Message string `json:"message"`
}

type authorResponse struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	NewestTextID int64          `json:"newest_text_id"`
	Texts        []textResponse `json:"texts,omitempty"`
}

type textResponse struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

type Server struct {
	predictor *predictor.Predictor
	ingestor  *ingest.Ingestor
	store     types.AuthorStore
	logger    *zap.Logger
	router    chi.Router
}

func New(pred *predictor.Predictor, ing *ingest.Ingestor, store types.AuthorStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		predictor: pred,
		ingestor:  ing,
		store:     store,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/authors", s.listAuthors)
	r.Get("/authors/{name}", s.getAuthor)
	r.Post("/authors", s.addAuthor)
	r.Post("/compare", s.compare)
	r.Post("/update", s.update)
	r.Post("/reset", s.reset)
	r.Get("/ws", s.handleWebSocket)
	s.router = r

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) listAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.store.ListAuthors(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}
	resp := make([]authorResponse, len(authors))
	for i, a := range authors {
		resp[i] = toAuthorResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getAuthor(w http.ResponseWriter, r *http.Request) {
	author, err := s.store.GetAuthor(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuthorResponse(*author))
}

func (s *Server) addAuthor(w http.ResponseWriter, r *http.Request) {
	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "name is required")
		return
	}

	added, err := s.ingestor.AddOrUpdate(r.Context(), name)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "added": added})
}

func (s *Server) compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	// equal names, empty or not, are left to the predictor's self-comparison check
	if req.User1 != req.User2 && (req.User1 == "" || req.User2 == "") {
		writeError(w, http.StatusBadRequest, "bad_request", "user1 and user2 are required")
		return
	}

	pred, err := s.predictor.Predict(r.Context(), req.User1, req.User2, req.Text)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, compareResponse{Prediction: pred, Message: pred.Message()})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	added, err := s.ingestor.UpdateAll(r.Context(), nil)
	if err != nil {
		s.handleError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"added": added})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Reset(r.Context()); err != nil {
		s.handleError(w, err)
		return
	}
	s.logger.Info("Store reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// Messages are handled in order; a gorilla connection allows one writer at a time.
	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("Error reading message", zap.Error(err))
			}
			return
		}
		s.handleMessage(r, conn, req)
	}
}

func (s *Server) handleMessage(r *http.Request, conn *websocket.Conn, req request) {
	ctx := r.Context()

	switch req.Type {
	case "compare":
		pred, err := s.predictor.Predict(ctx, req.User1, req.User2, req.Text)
		if err != nil {
			s.sendError(conn, err)
			return
		}
		s.sendMessage(conn, Message{Type: "prediction", Content: pred.Message(), Data: pred})
	case "add":
		name := strings.TrimSpace(req.Name)
		if name == "" {
			s.sendMessage(conn, Message{Type: "error", Content: "name is required", Data: errorResponse{Kind: "bad_request"}})
			return
		}
		s.sendMessage(conn, Message{Type: "status", Content: fmt.Sprintf("Fetching timeline for %s", name)})
		added, err := s.ingestor.AddOrUpdate(ctx, name)
		if err != nil {
			s.sendError(conn, err)
			return
		}
		s.sendMessage(conn, Message{
			Type:    "status",
			Content: fmt.Sprintf("Added %d new posts for %s", added, name),
			Data:    map[string]any{"name": name, "added": added},
		})
	default:
		s.sendMessage(conn, Message{
			Type:    "error",
			Content: fmt.Sprintf("unknown message type: %q", req.Type),
			Data:    errorResponse{Kind: "bad_request"},
		})
	}
}

func (s *Server) sendError(conn *websocket.Conn, err error) {
	kind := models.ErrorKind(err)
	if kind == "internal" {
		s.logger.Error("internal error", zap.Error(err))
	}
	s.sendMessage(conn, Message{Type: "error", Content: err.Error(), Data: errorResponse{Error: err.Error(), Kind: kind}})
}

func (s *Server) sendMessage(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug("Error sending message", zap.Error(err))
	}
}

func (s *Server) handleError(w http.ResponseWriter, err error) {
	kind := models.ErrorKind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.logger.Error("internal error", zap.Error(err))
		writeError(w, status, kind, "internal error")
		return
	}
	s.logger.Warn("request failed", zap.String("kind", kind), zap.Error(err))
	writeError(w, status, kind, err.Error())
}

func statusFor(kind string) int {
	switch kind {
	case "self_comparison", "empty_input":
		return http.StatusBadRequest
	case "single_class", "dimension_mismatch", "embedder_mismatch":
		return http.StatusUnprocessableEntity
	case "author_not_found":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func toAuthorResponse(a models.Author) authorResponse {
	resp := authorResponse{ID: a.ID, Name: a.Name, NewestTextID: a.NewestTextID}
	for _, t := range a.Texts {
		resp.Texts = append(resp.Texts, textResponse{ID: t.ID, Content: t.Content})
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}
