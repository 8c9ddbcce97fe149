package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"tubechat/internal/app"
	"tubechat/pkg/domain"
	"tubechat/pkg/transcript"
)

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst)
}

// writeAppError maps the application's sentinel errors onto HTTP statuses.
// Transcript provider failures mirror the upstream status so the client can
// distinguish "no captions" from "provider down".
func writeAppError(w http.ResponseWriter, err error) {
	var apiErr *transcript.APIError
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.As(err, &apiErr):
		writeError(w, apiErr.StatusCode, apiErr.Message)
	case errors.Is(err, app.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream service unavailable")
	case errors.Is(err, app.ErrExternalProvider):
		writeError(w, http.StatusBadGateway, "identity provider unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// chat

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chat requests") {
		s.audit(r, "chat.stream", "rate_limited", "subject", identity.Subject)
		return
	}
	var req app.ChatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	started := false
	startStream := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		started = true
	}

	err := s.app.StreamChat(r.Context(), identity, req, func(delta string) error {
		if !started {
			startStream()
		}
		payload, err := json.Marshal(map[string]string{"delta": delta})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if r.Context().Err() != nil {
			// Client went away; nothing left to write.
			s.audit(r, "chat.stream", "canceled", "subject", identity.Subject)
			return
		}
		if !started {
			s.audit(r, "chat.stream", "fail", "subject", identity.Subject, "error", err.Error())
			writeAppError(w, err)
			return
		}
		// Headers are gone; the best we can do is an error event.
		fmt.Fprint(w, "data: {\"error\":\"stream interrupted\"}\n\n")
		flusher.Flush()
		return
	}
	if !started {
		startStream()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// conversations

type createConversationRequest struct {
	Content       string `json:"content"`
	Title         string `json:"title,omitempty"`
	SystemPrompt  string `json:"systemPrompt,omitempty"`
	SystemMessage bool   `json:"systemMessage,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Model         string `json:"model,omitempty"`
	VideoID       string `json:"youtubeVideoId,omitempty"`
}

type addMessageRequest struct {
	Content string `json:"content"`
}

type updateTitleRequest struct {
	Title string `json:"title"`
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil {
				limit = n
			}
		}
		items, err := s.app.ListConversations(identity, limit)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		var req createConversationRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		conversation, err := s.app.CreateConversation(identity, app.CreateConversationInput{
			Content:       req.Content,
			Title:         req.Title,
			SystemPrompt:  req.SystemPrompt,
			SystemMessage: req.SystemMessage,
			Mode:          domain.PromptMode(req.Mode),
			Model:         req.Model,
			VideoID:       req.VideoID,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "conversation.create", "success", "conversationId", conversation.ID)
		writeJSON(w, http.StatusCreated, conversation)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleConversationByID(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/conversations/")
	id, sub, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "conversation id required")
		return
	}
	switch sub {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		conversation, err := s.app.GetConversation(identity, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)
	case "messages":
		s.handleConversationMessages(w, r, identity, id)
	case "title":
		if r.Method != http.MethodPatch {
			methodNotAllowed(w)
			return
		}
		var req updateTitleRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := s.app.UpdateConversationTitle(identity, id, req.Title); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"title": strings.TrimSpace(req.Title)})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleConversationMessages(w http.ResponseWriter, r *http.Request, identity domain.Identity, conversationID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListMessages(identity, conversationID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "count": len(items)})
	case http.MethodPost:
		var req addMessageRequest
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		msg, err := s.app.AddUserMessage(identity, conversationID, req.Content)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	default:
		methodNotAllowed(w)
	}
}

// trusted internal routes

type saveAssistantMessageRequest struct {
	ConversationID string                  `json:"conversationId"`
	Content        string                  `json:"content"`
	Metadata       *domain.MessageMetadata `json:"metadata,omitempty"`
}

type generateTitleRequest struct {
	ConversationID string `json:"conversationId"`
	Title          string `json:"title"`
}

func (s *Server) handleSaveAssistantMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req saveAssistantMessageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := s.app.SaveAssistantMessage(req.ConversationID, req.Content, req.Metadata)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "messageId": msg.ID})
}

func (s *Server) handleGenerateTitle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req generateTitleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.app.SetConversationTitleTrusted(req.ConversationID, req.Title); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// videos & transcripts

type saveVideoRequest struct {
	VideoID       string `json:"videoId"`
	URL           string `json:"url,omitempty"`
	Title         string `json:"title,omitempty"`
	Transcript    string `json:"transcript"`
	TranscriptRaw string `json:"transcriptRaw,omitempty"`
}

func (s *Server) handleCheckVideo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	video, ok, err := s.app.CheckVideo(r.URL.Query().Get("videoId"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"exists": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": true, "video": video})
}

func (s *Server) handleSaveVideo(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req saveVideoRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	video, err := s.app.SaveVideo(identity, app.SaveVideoInput{
		VideoID:       req.VideoID,
		URL:           req.URL,
		Title:         req.Title,
		Transcript:    req.Transcript,
		TranscriptRaw: req.TranscriptRaw,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.transcriptLimiter, "too many transcript requests") {
		s.audit(r, "transcript.fetch", "rate_limited", "subject", identity.Subject)
		return
	}
	videoURL := r.URL.Query().Get("video_url")
	result, err := s.app.FetchTranscript(r.Context(), identity, videoURL)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"videoUrl":      videoURL,
		"transcript":    result.Text,
		"transcriptRaw": result.Raw,
		"title":         result.Title,
		"duration":      result.Duration,
	})
}

// account

type deleteAccountRequest struct {
	Feedback string `json:"feedback,omitempty"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Anonymous callers get a null user, not a 401: "who am I" is
		// answerable without being signed in.
		identity := domain.Identity{}
		if _, ok := bearerToken(r); ok {
			verified, ok := s.authorize(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			identity = verified
		}
		user, ok, err := s.app.CurrentUser(identity)
		if err != nil {
			writeAppError(w, err)
			return
		}
		if !ok {
			writeJSON(w, http.StatusOK, map[string]any{"user": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": user})
	case http.MethodPost:
		identity, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.app.StoreUser(identity)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	case http.MethodDelete:
		identity, ok := s.authorize(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		var req deleteAccountRequest
		if r.Body != nil {
			// Body is optional; a decode failure on an empty body is fine.
			_ = decodeBody(r, &req)
		}
		if err := s.app.DeleteAccount(r.Context(), identity, req.Feedback); err != nil {
			s.audit(r, "account.delete", "fail", "subject", identity.Subject, "error", err.Error())
			writeAppError(w, err)
			return
		}
		s.audit(r, "account.delete", "success", "subject", identity.Subject)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	modes := app.ListModes()
	writeJSON(w, http.StatusOK, map[string]any{"items": modes, "count": len(modes)})
}
