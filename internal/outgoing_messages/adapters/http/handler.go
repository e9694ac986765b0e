package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/edigateway/golang_services/internal/outgoing_messages/app"
	"github.com/edigateway/golang_services/internal/outgoing_messages/domain"
)

const (
	HeaderActorNumber = "X-Actor-Number"
	HeaderActorRole   = "X-Actor-Role"
	HeaderMessageID   = "MessageId"

	maxEnqueueBodyBytes = 4 << 20
)

type Enqueuer interface {
	Enqueue(ctx context.Context, in app.EnqueueOutgoingMessage) (domain.OutgoingMessageID, domain.BundleID, error)
}

type Peeker interface {
	Peek(ctx context.Context, req app.PeekRequest) (*app.PeekedDocument, bool, error)
}

type Dequeuer interface {
	Dequeue(ctx context.Context, req app.DequeueRequest) error
}

// MessageHandler serves the actor facing peek and dequeue endpoints and the enqueue endpoint
// used by producing subsystems. The actor identity is taken from headers set by the
// authenticating gateway in front of the service.
type MessageHandler struct {
	enqueuer Enqueuer
	peeker   Peeker
	dequeuer Dequeuer
	validate *validator.Validate
	logger   *slog.Logger
}

func NewMessageHandler(enqueuer Enqueuer, peeker Peeker, dequeuer Dequeuer, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		enqueuer: enqueuer,
		peeker:   peeker,
		dequeuer: dequeuer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger.With("handler", "outgoing_messages"),
	}
}

// RegisterRoutes registers the message routes with the given router.
func (h *MessageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/peek/{category}", h.handlePeek)
	r.Delete("/dequeue/{messageID}", h.handleDequeue)
	r.Post("/outgoing-messages", h.handleEnqueue)
}

func (h *MessageHandler) handlePeek(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	actor, err := actorFromHeaders(r)
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}
	category, err := domain.ParseMessageCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}
	format, err := formatFromAccept(r.Header.Get("Accept"))
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}

	doc, found, err := h.peeker.Peek(ctx, app.PeekRequest{Receiver: actor, Category: category, Format: format})
	if err != nil {
		logger.ErrorContext(ctx, "Peek failed", "error", err, "actor", actor.String(), "category", category)
		h.jsonError(w, logger, "Failed to peek messages", http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", doc.Format.ContentType())
	w.Header().Set(HeaderMessageID, doc.MessageID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Payload); err != nil {
		logger.WarnContext(ctx, "Failed to write peek response", "error", err, "message_id", doc.MessageID)
	}
}

func (h *MessageHandler) handleDequeue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	actor, err := actorFromHeaders(r)
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}
	messageID := strings.TrimSpace(chi.URLParam(r, "messageID"))
	if messageID == "" {
		h.jsonError(w, logger, "message id is required", http.StatusBadRequest)
		return
	}

	err = h.dequeuer.Dequeue(ctx, app.DequeueRequest{MessageID: messageID, Receiver: actor})
	switch {
	case err == nil:
		w.WriteHeader(http.StatusOK)
	case errors.Is(err, domain.ErrBundleNotFound):
		h.jsonError(w, logger, "Unknown message id", http.StatusBadRequest)
	case errors.Is(err, domain.ErrBundleNotClosed):
		h.jsonError(w, logger, "Message has not been peeked", http.StatusBadRequest)
	default:
		logger.ErrorContext(ctx, "Dequeue failed", "error", err, "message_id", messageID)
		h.jsonError(w, logger, "Failed to dequeue message", http.StatusInternalServerError)
	}
}

func (h *MessageHandler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	var req app.EnqueueRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxEnqueueBodyBytes)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			h.jsonError(w, logger, "Request body is empty", http.StatusBadRequest)
			return
		}
		h.jsonError(w, logger, "Invalid request payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(w, logger, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := req.ToCommand()
	if err != nil {
		h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
		return
	}

	msgID, bundleID, err := h.enqueuer.Enqueue(ctx, cmd)
	if err != nil {
		if errors.Is(err, app.ErrInvalidRecord) {
			h.jsonError(w, logger, err.Error(), http.StatusBadRequest)
			return
		}
		logger.ErrorContext(ctx, "Enqueue failed", "error", err, "receiver", cmd.Receiver.String())
		h.jsonError(w, logger, "Failed to enqueue message", http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, logger, EnqueueResponse{OutgoingMessageID: msgID.String(), BundleID: bundleID.String()}, http.StatusAccepted)
}

func actorFromHeaders(r *http.Request) (domain.Actor, error) {
	number, role := r.Header.Get(HeaderActorNumber), r.Header.Get(HeaderActorRole)
	if number == "" || role == "" {
		return domain.Actor{}, errors.New(HeaderActorNumber + " and " + HeaderActorRole + " headers are required")
	}
	return domain.NewActor(number, role)
}

// formatFromAccept defaults to XML when the client accepts anything.
func formatFromAccept(accept string) (domain.DocumentFormat, error) {
	accept = strings.TrimSpace(accept)
	if accept == "" || strings.HasPrefix(accept, "*/*") {
		return domain.DocumentFormatXML, nil
	}
	var lastErr error
	for _, part := range strings.Split(accept, ",") {
		format, err := domain.ParseDocumentFormat(part)
		if err == nil {
			return format, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (h *MessageHandler) jsonResponse(w http.ResponseWriter, logger *slog.Logger, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *MessageHandler) jsonError(w http.ResponseWriter, logger *slog.Logger, message string, statusCode int) {
	h.jsonResponse(w, logger, ErrorResponse{Error: message}, statusCode)
}
