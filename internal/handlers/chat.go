package handlers

import (
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"actms/internal/chat"
	"actms/internal/render"
)

const defaultFAQConfidence = 0.8

type chatRequest struct {
	Message string `json:"message" validate:"max=4000"`
}

type chatResponse struct {
	chat.Response
	HTML template.HTML `json:"html"`
}

type faqRequest struct {
	Question   string  `json:"question" validate:"required,max=500"`
	Answer     string  `json:"answer" validate:"required,max=5000"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// ChatHandler answers a user question through the AI provider or the FAQ.
func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	resp := h.svc.Chat.Reply(r.Context(), msg)
	h.audit(r, "chat_interaction", fmt.Sprintf("Chat query: %s", truncate(msg, 50)))

	writeJSON(w, http.StatusOK, chatResponse{Response: resp, HTML: render.String(resp.Message)})
}

// AddFAQHandler teaches the chat fallback a new question.
func (h *Handler) AddFAQHandler(w http.ResponseWriter, r *http.Request) {
	var req faqRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if req.Confidence == 0 {
		req.Confidence = defaultFAQConfidence
	}
	h.svc.Chat.AddFAQ(req.Question, req.Answer, req.Confidence)
	h.audit(r, "faq_added", fmt.Sprintf("FAQ entry added: %s", truncate(req.Question, 50)))

	writeJSON(w, http.StatusCreated, map[string]string{"message": "FAQ entry added"})
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
