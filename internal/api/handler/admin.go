package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/rag-agent/internal/api/response"
	"github.com/Rrens/rag-agent/internal/domain"
	"github.com/Rrens/rag-agent/internal/service"
)

const multipartMemory = 32 << 20

// AdminHandler serves the dashboard's agent and session management
type AdminHandler struct {
	agents         *service.AgentService
	sessions       *service.SessionService
	maxFiles       int
	maxUploadBytes int64
}

// NewAdminHandler creates a new admin handler. maxUploadBytes bounds a
// single file; the request body may carry up to maxFiles of them.
func NewAdminHandler(agents *service.AgentService, sessions *service.SessionService, maxFiles int, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{
		agents:         agents,
		sessions:       sessions,
		maxFiles:       maxFiles,
		maxUploadBytes: maxUploadBytes,
	}
}

// ListAgents returns every agent with a masked token
func (h *AdminHandler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, agents)
}

// CreateAgent accepts multipart fields "name" and "files"
func (h *AdminHandler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadBytes > 0 && h.maxFiles > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*int64(h.maxFiles)+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.PayloadTooLarge(w, "upload too large")
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	name := r.FormValue("name")
	headers := r.MultipartForm.File["files"]
	if h.maxFiles > 0 && len(headers) > h.maxFiles {
		response.BadRequest(w, fmt.Sprintf("at most %d files are allowed", h.maxFiles))
		return
	}

	uploads, closeAll, err := openUploads(headers)
	defer closeAll()
	if err != nil {
		response.BadRequest(w, "failed to read uploaded file")
		return
	}

	created, err := h.agents.Create(r.Context(), name, uploads)
	if err != nil {
		writeError(w, r, err)
		return
	}

	response.Created(w, created)
}

func openUploads(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	var files []io.Closer
	closeAll := func() {
		for _, f := range files {
			f.Close()
		}
	}

	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		files = append(files, f)
		uploads = append(uploads, service.Upload{FileName: fh.Filename, Content: f})
	}
	return uploads, closeAll, nil
}

// GetAgent returns one agent
func (h *AdminHandler) GetAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "agentID")
	if !ok {
		return
	}

	agent, err := h.agents.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, agent.Public())
}

// RevealToken returns an agent's plaintext token
func (h *AdminHandler) RevealToken(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "agentID")
	if !ok {
		return
	}

	token, err := h.agents.RevealToken(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	log.Info().Str("agent_id", id.String()).Msg("Agent token revealed")
	response.OK(w, map[string]string{"token": token})
}

// AgentSessions lists an agent's sessions
func (h *AdminHandler) AgentSessions(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "agentID")
	if !ok {
		return
	}

	if _, err := h.agents.Get(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	sessions, err := h.sessions.ListByAgent(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range sessions {
		sessions[i].UserMetadata = sessions[i].UserMetadata.WithDefaults()
	}
	response.OK(w, sessions)
}

// AgentDetails returns an agent together with its sessions
func (h *AdminHandler) AgentDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "agentID")
	if !ok {
		return
	}

	details, err := h.agents.Details(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	response.OK(w, details)
}

// DeleteAgent removes an agent with its documents, chunks and sessions
func (h *AdminHandler) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "agentID")
	if !ok {
		return
	}

	deleted, err := h.agents.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, domain.ErrAgentNotFound)
		return
	}
	response.OK(w, map[string]string{"message": "agent deleted"})
}

// GetSession returns any session with its messages
func (h *AdminHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sessionID")
	if !ok {
		return
	}

	session, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	session.UserMetadata = session.UserMetadata.WithDefaults()
	response.OK(w, session)
}

// DeleteSession removes any session
func (h *AdminHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "sessionID")
	if !ok {
		return
	}

	deleted, err := h.sessions.Delete(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !deleted {
		writeError(w, r, domain.ErrSessionNotFound)
		return
	}
	response.OK(w, map[string]string{"message": "session deleted"})
}
