package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NoMessages is returned in place of data when the store is empty.
const NoMessages = "No messages found"

const (
	maxBodyBytes = 64 << 10
	maxTextLen   = 255
)

// Config configures the relay HTTP API.
type Config struct {
	Store Store
	// Publisher receives every appended row when set.
	Publisher Publisher
	Subject   string
	// ExposeErrors puts the storage error text into 500 responses.
	ExposeErrors bool
	Logger       *slog.Logger
}

// Server serves the relay API.
type Server struct {
	config Config
	logger *slog.Logger
	router chi.Router
}

// NewServer creates the API server and its routes.
func NewServer(config Config) *Server {
	if config.Subject == "" {
		config.Subject = DefaultSubject
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Server{
		config: config,
		logger: config.Logger,
	}
	s.router = s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Post("/post-msg/", s.handlePostMsg)
	r.Post("/post-text-msg/", s.handlePostTextMsg)
	r.Get("/latest-text-msg/", s.handleLatestTextMsg)
	r.Get("/all-text-msgs/", s.handleAllTextMsgs)
	r.Get("/all-msgs/", s.handleAllMsgs)
	r.Get("/all-messages/", s.handleAllMessages)

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// corsMiddleware allows any origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handlePostMsg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Receiver json.RawMessage `json:"receiver"`
		Msg      json.RawMessage `json:"msg"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	receiver, err := smallint("receiver", req.Receiver)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	msg, err := smallint("msg", req.Msg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.logger.Debug("Message received", "receiver", string(req.Receiver), "msg", string(req.Msg))
	s.append(w, r, NewMessage{Receiver: receiver, Msg: msg})
}

func (s *Server) handlePostTextMsg(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Receiver json.RawMessage `json:"receiver"`
		TextMsg  json.RawMessage `json:"text_msg"`
	}
	if !s.decode(w, r, &req) {
		return
	}

	receiver, err := smallint("receiver", req.Receiver)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	text, err := textField("text_msg", req.TextMsg)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.logger.Debug("Text message received", "receiver", string(req.Receiver), "length", textLen(text))
	s.append(w, r, NewMessage{Receiver: receiver, TextMsg: text})
}

func (s *Server) append(w http.ResponseWriter, r *http.Request, m NewMessage) {
	stored, err := s.config.Store.Append(r.Context(), m)
	if err != nil {
		s.storeError(w, "Failed to append message", err)
		return
	}
	s.logger.Info("Message stored", "id", stored.ID)
	s.publish(stored)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatestTextMsg(w http.ResponseWriter, r *http.Request) {
	text, err := s.config.Store.LatestText(r.Context())
	if errors.Is(err, ErrNotFound) {
		text, err = NoMessages, nil
	}
	if err != nil {
		s.storeError(w, "Failed to query latest text message", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text_msg": text})
}

func (s *Server) handleAllTextMsgs(w http.ResponseWriter, r *http.Request) {
	texts, err := s.config.Store.TextMessages(r.Context())
	if err != nil {
		s.storeError(w, "Failed to query text messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"text_msgs": listOrSentinel(texts)})
}

func (s *Server) handleAllMsgs(w http.ResponseWriter, r *http.Request) {
	codes, err := s.config.Store.Codes(r.Context())
	if err != nil {
		s.storeError(w, "Failed to query messages", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"msgs": listOrSentinel(codes)})
}

func (s *Server) handleAllMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.config.Store.Messages(r.Context())
	if err != nil {
		s.storeError(w, "Failed to query messages", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderMessages(w, messages); err != nil {
		s.logger.Error("Failed to render messages", "error", err)
	}
}

// decode reads a body holding exactly one JSON object. On failure it
// answers 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	err := decodeObject(dec, v)
	if err != nil {
		s.logger.Debug("Invalid request body", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

func decodeObject(dec *json.Decoder, v any) error {
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errTrailingData
	}
	if trimmed := bytes.TrimLeft(raw, " \t\r\n"); len(trimmed) == 0 || trimmed[0] != '{' {
		return errNotObject
	}
	return json.Unmarshal(raw, v)
}

func (s *Server) storeError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, "error", err)
	detail := "internal error"
	if s.config.ExposeErrors {
		detail = err.Error()
	}
	writeError(w, http.StatusInternalServerError, detail)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// smallint decodes an optional SMALLINT column from a JSON number or a
// numeric string.
func smallint(field string, raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, &FieldError{Field: field, Reason: "expected an integer"}
	}
	v, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return nil, &FieldError{Field: field, Reason: "expected an integer"}
	}
	if v < math.MinInt16 || v > math.MaxInt16 {
		return nil, &FieldError{Field: field, Reason: "out of range"}
	}
	i := int(v)
	return &i, nil
}

func textField(field string, raw json.RawMessage) (*string, error) {
	if isNull(raw) {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return nil, &FieldError{Field: field, Reason: "expected a string"}
	}
	if utf8.RuneCountInString(text) > maxTextLen {
		return nil, &FieldError{Field: field, Reason: "longer than 255 characters"}
	}
	return &text, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func textLen(text *string) int {
	if text == nil {
		return 0
	}
	return len(*text)
}

// listOrSentinel keeps the wire shape of the listings: the rows, or the
// NoMessages string for an empty table.
func listOrSentinel[T any](rows []T) any {
	if len(rows) == 0 {
		return NoMessages
	}
	return rows
}
