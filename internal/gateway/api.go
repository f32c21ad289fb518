// ABOUTME: HTTP API handlers for the operator dashboard and inbound webhook.
// ABOUTME: Thin layer - each route maps to exactly one conversation service operation.

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tether-ops/tether/internal/conversation"
	"github.com/tether-ops/tether/internal/store"
)

// ConversationResponse is one row of GET /api/conversations.
type ConversationResponse struct {
	ContactID   string `json:"contact_id"`
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	Intervening bool   `json:"intervening"`
	LastUpdated string `json:"last_updated"`
	LastMessage string `json:"last_message,omitempty"`
}

// MessageResponse is one entry of GET /api/conversations/{handle}/messages.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Sender    string `json:"sender"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// SendMessageRequest is the JSON request body for POST /api/send.
type SendMessageRequest struct {
	Handle  string `json:"handle"`
	Content string `json:"content"`
}

// SendMessageResponse is the JSON response for POST /api/send.
// Status distinguishes "delivered" from "recorded_not_delivered" so the
// dashboard can flag a message that is saved locally but never reached
// the contact.
type SendMessageResponse struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id"`
	Detail    string `json:"detail,omitempty"`
}

// InterveneRequest is the JSON request body for POST /api/conversations/{handle}/intervene.
type InterveneRequest struct {
	Intervening *bool `json:"intervening"`
}

// InterveneResponse is the JSON response for the intervene toggle.
type InterveneResponse struct {
	Handle      string `json:"handle"`
	Intervening bool   `json:"intervening"`
	LastUpdated string `json:"last_updated"`
}

// WebhookRequest is the JSON body delivered by the messaging platform
// webhook. MessageID is the platform's delivery identifier, used to
// suppress redeliveries; it may be empty.
type WebhookRequest struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name,omitempty"`
	Sender      string `json:"sender"`
	Kind        string `json:"kind,omitempty"`
	Content     string `json:"content"`
	MessageID   string `json:"message_id,omitempty"`
}

// WebhookResponse is the JSON response for POST /webhook.
type WebhookResponse struct {
	Status    string `json:"status"`
	MessageID int64  `json:"message_id,omitempty"`
}

// handleListConversations handles GET /api/conversations.
// Returns all conversations ordered by most recent activity first.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	overviews, err := g.conversation.Overview(r.Context())
	if err != nil {
		g.logger.Error("listing conversations failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "listing conversations failed")
		return
	}

	response := make([]ConversationResponse, 0, len(overviews))
	for _, o := range overviews {
		response = append(response, ConversationResponse{
			ContactID:   o.Contact.ID,
			Handle:      o.Contact.Handle,
			DisplayName: o.Contact.DisplayName,
			Intervening: o.Summary.Intervening,
			LastUpdated: o.Summary.LastUpdated.UTC().Format(time.RFC3339),
			LastMessage: o.LastMessage,
		})
	}

	g.writeJSON(w, http.StatusOK, response)
}

// handleConversationRoutes dispatches /api/conversations/{handle}/... paths.
func (g *Gateway) handleConversationRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	handle, action, found := strings.Cut(rest, "/")
	if !found || handle == "" {
		g.sendJSONError(w, http.StatusNotFound, "unknown route")
		return
	}

	switch action {
	case "messages":
		g.handleListMessages(w, r, handle)
	case "intervene":
		g.handleIntervene(w, r, handle)
	default:
		g.sendJSONError(w, http.StatusNotFound, "unknown route")
	}
}

// handleListMessages handles GET /api/conversations/{handle}/messages.
// An unknown handle yields an empty list, matching the message log contract.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request, handle string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	messages, err := g.conversation.History(r.Context(), handle)
	if err != nil {
		g.logger.Error("fetching history failed", "handle", handle, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "fetching history failed")
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		response = append(response, MessageResponse{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Kind:      msg.Kind,
			Content:   msg.Content,
			Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	g.writeJSON(w, http.StatusOK, response)
}

// handleIntervene handles POST /api/conversations/{handle}/intervene.
// Toggling an unknown handle is a visible 404, not a silent no-op.
func (g *Gateway) handleIntervene(w http.ResponseWriter, r *http.Request, handle string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req InterveneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.Intervening == nil {
		g.sendJSONError(w, http.StatusBadRequest, "intervening must be a boolean")
		return
	}

	summary, err := g.conversation.SetIntervening(r.Context(), handle, *req.Intervening)
	if errors.Is(err, store.ErrNotFound) {
		g.sendJSONError(w, http.StatusNotFound, "no conversation for this handle")
		return
	}
	if err != nil {
		g.logger.Error("setting intervention failed", "handle", handle, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "setting intervention failed")
		return
	}

	g.writeJSON(w, http.StatusOK, InterveneResponse{
		Handle:      handle,
		Intervening: summary.Intervening,
		LastUpdated: summary.LastUpdated.UTC().Format(time.RFC3339),
	})
}

// handleSendMessage handles POST /api/send.
// Delivered maps to 200, recorded-but-not-delivered to 202 so the caller
// can tell the message is durable locally but the relay hand-off failed.
func (g *Gateway) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := g.conversation.Send(r.Context(), req.Handle, req.Content)
	if err != nil {
		g.logger.Error("send failed", "handle", req.Handle, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "send failed")
		return
	}

	switch result.Outcome {
	case conversation.OutcomeDelivered:
		g.writeJSON(w, http.StatusOK, SendMessageResponse{
			Status:    string(result.Outcome),
			MessageID: result.Message.ID,
		})
	case conversation.OutcomeRecorded:
		g.writeJSON(w, http.StatusAccepted, SendMessageResponse{
			Status:    string(result.Outcome),
			MessageID: result.Message.ID,
			Detail:    result.Reason,
		})
	default:
		g.sendJSONError(w, http.StatusBadRequest, result.Reason)
	}
}

// parseSendRequest decodes the send request body.
func parseSendRequest(body io.Reader) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &req, nil
}

// handleWebhook handles POST /webhook, the inbound ingestion path for
// agent and client messages. Redeliveries carrying a message_id already
// seen are acknowledged without a second append.
func (g *Gateway) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req WebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	dedupeKey := "webhook:" + req.MessageID
	if req.MessageID != "" && g.dedupe.Check(dedupeKey) {
		g.logger.Debug("duplicate webhook delivery ignored", "message_id", req.MessageID)
		g.writeJSON(w, http.StatusOK, WebhookResponse{Status: "duplicate"})
		return
	}

	msg, err := g.conversation.Ingest(r.Context(), conversation.InboundMessage{
		Handle:      req.Handle,
		DisplayName: req.DisplayName,
		Sender:      req.Sender,
		Kind:        req.Kind,
		Content:     req.Content,
	})
	if errors.Is(err, conversation.ErrInvalidInput) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("webhook ingestion failed", "handle", req.Handle, "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	// Marked only after the append is durable: if ingestion fails, the
	// platform's redelivery must be processed, not answered "duplicate".
	if req.MessageID != "" {
		g.dedupe.Mark(dedupeKey)
	}

	g.writeJSON(w, http.StatusCreated, WebhookResponse{
		Status:    "recorded",
		MessageID: msg.ID,
	})
}

// writeJSON writes a JSON response with the given status code.
func (g *Gateway) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Error("encoding response failed", "error", err)
	}
}

// sendJSONError writes a JSON error response with the given status code.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
