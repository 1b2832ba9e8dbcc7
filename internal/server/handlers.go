package server

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"pdfqa/internal/helper"
	"pdfqa/internal/models"
	"pdfqa/internal/parser"
	"pdfqa/internal/rag"
	"pdfqa/internal/session"
)

const (
	documentField = "document"
	questionField = "question"
	multipartMem  = 8 << 20
)

// session returns the caller's session, issuing a cookie for new ones.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	var id string
	if c, err := r.Cookie(sessionCookie); err == nil && helper.IsUUID(c.Value) {
		id = c.Value
	}
	sess, created, err := s.sessions.GetOrCreate(id)
	if err != nil {
		return nil, err
	}
	if created {
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    sess.ID,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return sess, nil
}

func viewOf(sess *session.Session) pageView {
	return pageView{
		HasDocument:  sess.HasDocument(),
		DocumentName: sess.DocumentName,
		Chunks:       sess.Chunks,
	}
}

// handleIndex renders the page with whatever the session already holds.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Error creating session")
		s.renderError(w, http.StatusInternalServerError, "Could not start a session.")
		return
	}
	sess.Lock()
	defer sess.Unlock()

	view := viewOf(sess)
	if !sess.HasDocument() {
		view.Warning = models.PleaseUpload
	}
	s.renderPage(w, http.StatusOK, view)
}

// handleSubmit processes one form submission: an optional upload, then an
// optional question.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sess, err := s.session(w, r)
	if err != nil {
		log.Error().Err(err).Msg("Error creating session")
		s.renderError(w, http.StatusInternalServerError, "Could not start a session.")
		return
	}
	sess.Lock()
	defer sess.Unlock()

	logger := log.With().Str("session", sess.ID).Logger()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(multipartMem); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.renderError(w, http.StatusRequestEntityTooLarge, "The uploaded file is too large.")
			return
		}
		s.renderError(w, http.StatusBadRequest, "Could not read the submitted form.")
		return
	}

	var success, warning string
	uploaded := false

	file, header, err := r.FormFile(documentField)
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			s.renderError(w, http.StatusBadRequest, "Could not read the uploaded file.")
			return
		}
		if !parser.IsPDF(header.Filename, data) {
			view := viewOf(sess)
			view.Warning = models.OnlyPDFAllowed
			s.renderPage(w, http.StatusOK, view)
			return
		}

		hash := helper.DocumentHash(data)
		if sess.SameDocument(hash) {
			logger.Debug().Str("document", header.Filename).Msg("Document already indexed")
		} else {
			index, stats, err := rag.Ingest(r.Context(), s.embedder, data, s.chunkOpts)
			if err != nil {
				logger.Error().Err(err).Str("document", header.Filename).Msg("Error indexing document")
				s.renderError(w, http.StatusBadGateway, "Failed to process the PDF: "+err.Error())
				return
			}
			pipeline := rag.NewPipeline(s.llm, s.embedder, index, s.ragOpts)
			sess.SetDocument(hash, header.Filename, stats.Chunks, index, s.llm, pipeline)
			success = models.PDFProcessed
		}
		uploaded = true
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		s.renderError(w, http.StatusBadRequest, "Could not read the uploaded file.")
		return
	}

	var answer *models.Answer
	question := strings.TrimSpace(r.FormValue(questionField))
	switch {
	case !sess.HasDocument():
		warning = models.PleaseUpload
	case question == "":
		if !uploaded {
			warning = models.PleaseAsk
		}
	default:
		history := sess.RecentHistory(s.cfg.RAG.HistoryTurns)
		answer, err = sess.Pipeline.Query(r.Context(), history, question)
		if err != nil {
			logger.Error().Err(err).Msg("Error answering question")
			s.renderError(w, http.StatusBadGateway, "Failed to answer the question: "+err.Error())
			return
		}
		sess.Record(models.Turn{Question: question, Answer: answer.Answer})
	}

	view := viewOf(sess)
	view.Success = success
	view.Warning = warning
	if answer != nil {
		view.Question = question
		view.Answer = answer.Answer
		view.AnswerHTML = s.renderMarkdown(answer.Answer)
	}

	logger.Info().
		Bool("uploaded", uploaded).
		Bool("answered", view.Answer != "").
		Dur("duration", time.Since(start)).
		Msg("Handled submission")
	s.renderPage(w, http.StatusOK, view)
}
