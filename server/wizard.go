package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"auto_wordpress_post_publisher/content"
	"auto_wordpress_post_publisher/draft"
	"auto_wordpress_post_publisher/generator"
	"auto_wordpress_post_publisher/publisher"
	"auto_wordpress_post_publisher/wizard"
)

type openWizardResp struct {
	SessionID  string                `json:"session_id"`
	TokenError string                `json:"token_error,omitempty"`
	Defaults   generator.ModelParams `json:"defaults"`
	State      wizard.Snapshot       `json:"state"`
}

// handleOpenWizard starts a session for a site. An expiring token is renewed
// here; a failed renewal is reported but the wizard still opens.
func (s *Server) handleOpenWizard(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	site, err := s.store.GetSite(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.storeError(w, err)
		return
	}
	settings, err := s.store.LoadSettings(r.Context(), userID)
	if err != nil {
		s.storeError(w, err)
		return
	}

	var tokenErr string
	ctx, cancel := withTimeout(r)
	defer cancel()
	refreshed, err := s.wp.EnsureToken(ctx, &site)
	switch {
	case err != nil:
		tokenErr = publisher.UserMessage(err)
	case refreshed:
		if err := s.store.SaveSite(r.Context(), userID, site); err != nil {
			s.logger.Warn("save refreshed token", zap.String("site", site.ID), zap.Error(err))
		}
	}

	llm := s.llm
	if settings.ChatGPTAPIKey != "" {
		llm.APIKey = settings.ChatGPTAPIKey
	}
	client, err := s.newClient(llm)
	if err != nil {
		writeError(w, http.StatusBadRequest, generator.UserMessage(err))
		return
	}
	collector, err := generator.NewCollector(client, s.logger.Named("collector"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	siteID := site.ID
	ctrl, err := wizard.New(site, collector, s.wp, wizard.Options{
		Logger: s.logger.Named("wizard"),
		OnPublished: func(_ publisher.Site, post publisher.Post) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.store.AppendPost(ctx, userID, siteID, post); err != nil {
				s.logger.Warn("record published post", zap.String("site", siteID), zap.Error(err))
			}
		},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	defaults := generator.ModelParams{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
	}
	if defaults.Model == "" {
		defaults.Model = llm.Model
	}
	if defaults.MaxTokens == 0 {
		defaults.MaxTokens = generator.DefaultMaxTokens
	}
	id := s.sessions.add(&session{userID: userID, siteID: siteID, ctrl: ctrl, defaults: defaults})
	s.logger.Info("wizard opened", zap.String("session", id), zap.String("site", site.BaseURL()))
	writeJSON(w, http.StatusCreated, openWizardResp{
		SessionID:  id,
		TokenError: tokenErr,
		Defaults:   defaults,
		State:      ctrl.Snapshot(),
	})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, ok := s.sessions.get(userFrom(r.Context()), mux.Vars(r)["sid"])
	if !ok {
		writeError(w, http.StatusNotFound, "wizard not found")
	}
	return sess, ok
}

func (s *Server) handleGetWizard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

func (s *Server) handleCloseWizard(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.remove(userFrom(r.Context()), mux.Vars(r)["sid"])
	if !ok {
		writeError(w, http.StatusNotFound, "wizard not found")
		return
	}
	sess.ctrl.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

type completionReq struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
}

type resultResp[T any] struct {
	Result wizard.Result[T] `json:"result"`
	State  wizard.Snapshot  `json:"state"`
}

func (s *Server) handleCompletion(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req completionReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	params := sess.defaults
	if req.Model != "" {
		params.Model = req.Model
	}
	if req.Temperature != nil {
		params.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = req.MaxTokens
	}

	ctx, cancel := withTimeout(r)
	defer cancel()
	res, err := sess.ctrl.RequestCompletion(ctx, req.Prompt, params)
	if err != nil {
		wizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResp[draft.ChatEntry]{Result: res, State: sess.ctrl.Snapshot()})
}

type nextReq struct {
	ShowPrompt *bool   `json:"show_prompt,omitempty"`
	Markdown   bool    `json:"markdown,omitempty"`
	Edited     *string `json:"edited,omitempty"`
	Style      string  `json:"style,omitempty"`
}

// handleNext advances one step; which fields matter depends on the step.
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req nextReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var err error
	switch step := sess.ctrl.Step(); step {
	case wizard.Collecting:
		layout := wizard.Layout{ShowPrompt: true, Markdown: req.Markdown}
		if req.ShowPrompt != nil {
			layout.ShowPrompt = *req.ShowPrompt
		}
		_, err = sess.ctrl.FinishCollecting(layout)
	case wizard.Editing:
		style, ok := content.ParseStyle(req.Style)
		if !ok {
			writeError(w, http.StatusBadRequest, "style must be balloon or plain")
			return
		}
		_, err = sess.ctrl.FinishEditing(req.Edited, style)
	case wizard.Reviewing, wizard.Done, wizard.Cancelled:
		err = wizard.ErrInvalidTransition
	default:
		err = wizard.ErrInvalidTransition
	}
	if err != nil {
		wizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

type backReq struct {
	Edited *string `json:"edited,omitempty"`
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req backReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := sess.ctrl.Back(req.Edited); err != nil {
		wizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.Snapshot())
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var meta wizard.PublishMeta
	if err := decodeBody(r, &meta); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := withTimeout(r)
	defer cancel()
	res, err := sess.ctrl.Publish(ctx, meta)
	if err != nil {
		wizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResp[publisher.Post]{Result: res, State: sess.ctrl.Snapshot()})
}

// handleMedia takes a multipart "file" and uploads it to the site.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, publisher.MaxMediaBytes+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, publisher.ErrMediaTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	ctx, cancel := withTimeout(r)
	defer cancel()
	res, err := sess.ctrl.UploadMedia(ctx, filepath.Base(header.Filename), file)
	if err != nil {
		wizardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resultResp[publisher.Media]{Result: res, State: sess.ctrl.Snapshot()})
}

func wizardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, wizard.ErrBusy):
		writeError(w, http.StatusConflict, "operation in progress")
	case errors.Is(err, wizard.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, wizard.ErrNoEditor):
		writeError(w, http.StatusBadRequest, "edited document is required")
	case errors.Is(err, wizard.ErrCancelled):
		writeError(w, http.StatusGone, "wizard closed")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
