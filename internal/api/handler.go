// Package api provides the interactive HTTP surface. Every action runs the deposit
// pipeline and reports through the notification queue of the requesting user; the
// handlers never expose raw pipeline errors.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
	"github.com/scholarly-tools/doideposit/internal/deposit/orchestrator"
	"github.com/scholarly-tools/doideposit/internal/log"
	"github.com/scholarly-tools/doideposit/internal/notify"
	"github.com/scholarly-tools/doideposit/internal/presentation"
	"github.com/scholarly-tools/doideposit/internal/pubsub"
)

// UserHeader names the request header carrying the authenticated user, set by the
// fronting proxy.
const UserHeader = "X-Remote-User"

const anonymousUser = "anonymous"

// Actions accepted by POST /deposits.
const (
	ActionDeposit        = "deposit"
	ActionExport         = "export"
	ActionMarkRegistered = "markRegistered"
)

// Pipeline runs deposit, export and mark-registered requests.
type Pipeline interface {
	Register(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
	Export(ctx context.Context, req orchestrator.Request, w io.Writer) error
	MarkRegistered(ctx context.Context, req orchestrator.Request) (*orchestrator.Report, error)
}

// Objects reads object state.
type Objects interface {
	Get(ctx context.Context, id string) (*domain.Object, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Object, error)
	Batches(ctx context.Context, objectID string) ([]domain.Batch, error)
}

// StatusMessages looks up the CrossRef message for an object's last deposit.
type StatusMessages interface {
	Lookup(ctx context.Context, objectID string) (string, error)
}

// Notifications queues messages per user.
type Notifications interface {
	notify.Sink
	Drain(user string) []notify.Notification
	Subscribe(ctx context.Context) <-chan pubsub.Event[notify.Queued]
}

// Handler provides HTTP endpoints for the deposit pipeline.
type Handler struct {
	pipeline       Pipeline
	objects        Objects
	messages       StatusMessages
	queue          Notifications
	catalog        *notify.Catalog
	defaultContext string
	now            func() time.Time
}

// HandlerConfig configures the API handler.
type HandlerConfig struct {
	Pipeline      Pipeline
	Objects       Objects
	Messages      StatusMessages
	Notifications Notifications
	Catalog       *notify.Catalog
	// DefaultContext is used when a request names no context.
	DefaultContext string
}

// NewHandler creates a new API handler.
func NewHandler(cfg HandlerConfig) *Handler {
	catalog := cfg.Catalog
	if catalog == nil {
		catalog = notify.DefaultCatalog()
	}
	return &Handler{
		pipeline:       cfg.Pipeline,
		objects:        cfg.Objects,
		messages:       cfg.Messages,
		queue:          cfg.Notifications,
		catalog:        catalog,
		defaultContext: cfg.DefaultContext,
		now:            time.Now,
	}
}

// Routes returns an http.Handler with all API routes registered.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /deposits", h.Deposits)

	mux.HandleFunc("GET /notifications", h.DrainNotifications)
	mux.HandleFunc("GET /notifications/stream", h.StreamNotifications)

	mux.HandleFunc("GET /objects", h.ListObjects)
	mux.HandleFunc("GET /objects/{id}", h.GetObject)
	mux.HandleFunc("GET /objects/{id}/status-message", h.StatusMessage)

	mux.HandleFunc("GET /health", h.Health)

	return mux
}

// === Request/Response Types ===

// NotificationResponse is one rendered notification.
type NotificationResponse struct {
	notify.Notification
	Text string `json:"text"`
}

// NotificationsResponse is the response body for draining the queue.
type NotificationsResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
}

// ListObjectsResponse is the response body for listing objects.
type ListObjectsResponse struct {
	Objects []presentation.ObjectDTO `json:"objects"`
	Total   int                      `json:"total"`
}

// StatusMessageResponse is the response body for a status message lookup.
type StatusMessageResponse struct {
	ObjectID string `json:"object_id"`
	Message  string `json:"message"`
}

// HealthResponse is the response body for the health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the response body for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// === Handlers ===

// Deposits runs one action over the selected objects.
// POST /deposits (form: action, kind, context, objects, return_to)
//
// Deposit and mark-registered queue their notifications and redirect to return_to.
// A successful export answers with the XML document; a failed one redirects like the
// other actions.
func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_form", "Invalid form body", err.Error())
		return
	}

	action := r.PostForm.Get("action")
	switch action {
	case ActionDeposit, ActionExport, ActionMarkRegistered:
	default:
		h.writeError(w, http.StatusBadRequest, "invalid_action", "Unknown action", action)
		return
	}

	kindName := r.PostForm.Get("kind")
	if kindName == "" {
		kindName = string(domain.KindArticle)
	}
	kind, err := domain.ParseObjectKind(kindName)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_kind", "Unknown object kind", err.Error())
		return
	}

	returnTo := safeReturnTo(r.PostForm.Get("return_to"))
	user := userOf(r)
	ctx := r.Context()

	req := orchestrator.Request{
		ContextID: r.PostForm.Get("context"),
		Kind:      kind,
		ObjectIDs: objectIDs(r.PostForm["objects"]),
	}
	if req.ContextID == "" {
		req.ContextID = h.defaultContext
	}

	if len(req.ObjectIDs) == 0 {
		h.notify(ctx, user, notify.Notification{Key: notify.KeyNoObjectsSelected, Severity: notify.SeverityError})
		http.Redirect(w, r, returnTo, http.StatusSeeOther)
		return
	}

	log.Info(log.CatAPI, "Deposit action", "action", action, "user", user, "context", req.ContextID, "objects", len(req.ObjectIDs))

	switch action {
	case ActionExport:
		var buf bytes.Buffer
		if err := h.pipeline.Export(ctx, req, &buf); err != nil {
			h.notifyError(ctx, user, err, notify.KeyGenericError)
			http.Redirect(w, r, returnTo, http.StatusSeeOther)
			return
		}
		name := fmt.Sprintf("crossref-%ss-%s.xml", kind, h.now().Format("20060102-150405"))
		w.Header().Set("Content-Type", "application/xml")
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
		return

	case ActionDeposit:
		report, err := h.pipeline.Register(ctx, req)
		h.deliver(ctx, user, report, err, notify.KeyDepositError)

	case ActionMarkRegistered:
		report, err := h.pipeline.MarkRegistered(ctx, req)
		h.deliver(ctx, user, report, err, notify.KeyGenericError)
	}

	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// DrainNotifications returns and clears the user's pending notifications.
// GET /notifications
func (h *Handler) DrainNotifications(w http.ResponseWriter, r *http.Request) {
	pending := h.queue.Drain(userOf(r))
	resp := NotificationsResponse{Notifications: make([]NotificationResponse, 0, len(pending))}
	for _, n := range pending {
		resp.Notifications = append(resp.Notifications, NotificationResponse{Notification: n, Text: h.catalog.Render(n)})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// StreamNotifications streams the user's notifications as server-sent events while
// they are queued. Streamed notifications stay pending until drained.
// GET /notifications/stream
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	user := userOf(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", "")
		return
	}

	ctx := r.Context()
	events := h.queue.Subscribe(ctx)

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			if event.Payload.User != user {
				continue
			}
			n := event.Payload.Notification
			data, err := json.Marshal(NotificationResponse{Notification: n, Text: h.catalog.Render(n)})
			if err != nil {
				log.Error(log.CatAPI, "Failed to marshal notification", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

// ListObjects lists objects with optional context, kind and status filters.
// GET /objects?context=&kind=&status=&limit=
func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ListFilter{ContextID: q.Get("context")}

	if kind := q.Get("kind"); kind != "" {
		k, err := domain.ParseObjectKind(kind)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_kind", "Unknown object kind", err.Error())
			return
		}
		filter.Kind = k
	}
	for _, name := range q["status"] {
		s, err := domain.ParseStatus(name)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_status", "Unknown status", err.Error())
			return
		}
		filter.Statuses = append(filter.Statuses, s)
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			h.writeError(w, http.StatusBadRequest, "invalid_limit", "Limit must be a non-negative integer", limit)
			return
		}
		filter.Limit = n
	}

	objects, err := h.objects.List(r.Context(), filter)
	if err != nil {
		log.ErrorErr(log.CatAPI, "Failed to list objects", err)
		h.writeError(w, http.StatusInternalServerError, "list_failed", "Failed to list objects", "")
		return
	}

	dtos := presentation.FromDomainObjects(objects, h.catalog)
	h.writeJSON(w, http.StatusOK, ListObjectsResponse{Objects: dtos, Total: len(dtos)})
}

// GetObject returns one object with its deposit history.
// GET /objects/{id}
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	obj, err := h.objects.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	batches, err := h.objects.Batches(r.Context(), id)
	if err != nil {
		log.ErrorErr(log.CatAPI, "Failed to read deposit history", err, "object", id)
		h.writeError(w, http.StatusInternalServerError, "history_failed", "Failed to read deposit history", "")
		return
	}
	h.writeJSON(w, http.StatusOK, presentation.FromDomainObject(obj, h.catalog, batches))
}

// StatusMessage returns the failure or submission message of an object's last deposit.
// GET /objects/{id}/status-message
func (h *Handler) StatusMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msg, err := h.messages.Lookup(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	h.writeJSON(w, http.StatusOK, StatusMessageResponse{ObjectID: id, Message: msg})
}

// Health reports whether the object store is reachable.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if _, err := h.objects.List(r.Context(), domain.ListFilter{Limit: 1}); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy"})
		return
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// === Helpers ===

// deliver queues the report's notifications. A run aborted by a fatal error still
// delivers the entries gathered before it, followed by one error notification.
func (h *Handler) deliver(ctx context.Context, user string, report *orchestrator.Report, err error, errorKey string) {
	if err != nil {
		if report != nil {
			for _, e := range report.Entries {
				h.notify(ctx, user, notify.Notification{Key: e.Key, Param: e.Param, Severity: e.Severity, Entry: true})
			}
		}
		h.notifyError(ctx, user, err, errorKey)
		return
	}
	if err := report.Deliver(ctx, user, h.queue); err != nil {
		log.ErrorErr(log.CatAPI, "Failed to queue notifications", err, "user", user)
	}
}

func (h *Handler) notifyError(ctx context.Context, user string, err error, errorKey string) {
	log.ErrorErr(log.CatAPI, "Action failed", err, "user", user)
	n := notify.Notification{Key: errorKey, Severity: notify.SeverityError}
	var notFound *domain.ObjectNotFoundError
	if errors.As(err, &notFound) {
		n = notify.Notification{Key: notify.KeyObjectNotFound, Param: notFound.ID, Severity: notify.SeverityError, Entry: true}
	}
	h.notify(ctx, user, n)
}

func (h *Handler) notify(ctx context.Context, user string, n notify.Notification) {
	if err := h.queue.Notify(ctx, user, n); err != nil {
		log.ErrorErr(log.CatAPI, "Failed to queue notification", err, "user", user, "key", n.Key)
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, id string, err error) {
	var notFound *domain.ObjectNotFoundError
	if errors.As(err, &notFound) {
		h.writeError(w, http.StatusNotFound, "not_found", h.catalog.Text(notify.KeyObjectNotFound, id), "")
		return
	}
	log.ErrorErr(log.CatAPI, "Lookup failed", err, "object", id)
	h.writeError(w, http.StatusInternalServerError, "lookup_failed", h.catalog.Text(notify.KeyGenericError, ""), "")
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatAPI, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message, details string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

func userOf(r *http.Request) string {
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		return u
	}
	return anonymousUser
}

// objectIDs accepts repeated fields as well as comma separated lists.
func objectIDs(values []string) []string {
	var ids []string
	for _, v := range values {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// safeReturnTo only allows local absolute paths.
func safeReturnTo(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, `\`) {
		return "/objects"
	}
	return target
}

// Server wraps the Handler with an http.Server for lifecycle management.
type Server struct {
	handler  *Handler
	server   *http.Server
	listener net.Listener
	port     int // Actual port after binding (useful when using :0)
}

// NewServer listens on addr and prepares the server. Port 0 picks a free port.
func NewServer(addr string, handler *Handler) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	port := 0
	if tcpAddr, ok := listener.Addr().(*net.TCPAddr); ok {
		port = tcpAddr.Port
	}

	return &Server{
		handler:  handler,
		port:     port,
		listener: listener,
		server: &http.Server{
			Handler:           handler.Routes(),
			ReadTimeout:       30 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			// No write timeout: deposits run for as long as CrossRef takes and
			// notification streams stay open.
		},
	}, nil
}

// Start starts the HTTP server. It blocks until the server is stopped or fails.
func (s *Server) Start() error {
	log.Info(log.CatAPI, "Starting API server", "addr", s.listener.Addr().String(), "port", s.port)
	err := s.server.Serve(s.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	log.Info(log.CatAPI, "Stopping API server")
	return s.server.Shutdown(ctx)
}

// Port returns the actual port the server is listening on.
func (s *Server) Port() int {
	return s.port
}
