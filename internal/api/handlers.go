package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/luispater/feeOptOut/internal/portal"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// APIHandlers contains the handlers for API endpoints
type APIHandlers struct {
	queue           *RequestQueue
	handler         *portal.Handler
	responseTimeout time.Duration
	sessionsMutex   sync.Mutex
	sessions        map[string]*portal.Session
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(queue *RequestQueue, handler *portal.Handler, responseTimeout time.Duration) *APIHandlers {
	return &APIHandlers{
		queue:           queue,
		handler:         handler,
		responseTimeout: responseTimeout,
		sessions:        make(map[string]*portal.Session),
	}
}

// session returns the session named by id, or a fresh unregistered one when
// id is unknown. A fresh session is only kept once a message was answered
// in it, see keepSession.
func (h *APIHandlers) session(id string) *portal.Session {
	if s, ok := h.lookupSession(id); ok {
		return s
	}
	return portal.NewSession()
}

func (h *APIHandlers) keepSession(s *portal.Session) {
	s.Touch(time.Now())
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()
	h.sessions[s.ID] = s
}

// sweepSessions forgets sessions idle for longer than ttl and returns how
// many were removed.
func (h *APIHandlers) sweepSessions(now time.Time, ttl time.Duration) int {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()
	removed := 0
	for id, s := range h.sessions {
		if now.Sub(s.LastSeen()) > ttl {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

func (h *APIHandlers) sessionCount() int {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()
	return len(h.sessions)
}

func (h *APIHandlers) lookupSession(id string) (*portal.Session, bool) {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()
	s, ok := h.sessions[id]
	return s, ok
}

func errorJSON(c *gin.Context, status int, errType, format string, args ...any) {
	c.JSON(status, ErrorResponse{
		Error: ErrorDetail{
			Message: fmt.Sprintf(format, args...),
			Type:    errType,
		},
	})
}

// Message handles the /v1/message endpoint
func (h *APIHandlers) Message(c *gin.Context) {
	rawJson, err := c.GetRawData()
	if err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request_error", "Invalid request: %v", err)
		return
	}

	actionResult := gjson.GetBytes(rawJson, "action")
	if actionResult.Type != gjson.String {
		errorJSON(c, http.StatusBadRequest, "invalid_request_error", "Invalid request: action is required")
		return
	}
	switch actionResult.String() {
	case portal.ActionGetFeeList, portal.ActionOptOut:
	default:
		errorJSON(c, http.StatusBadRequest, "invalid_request_error", "Invalid request: unknown action %q", actionResult.String())
		return
	}

	var req portal.Request
	if err = json.Unmarshal(rawJson, &req); err != nil {
		errorJSON(c, http.StatusBadRequest, "invalid_request_error", "Invalid request: %v", err)
		return
	}

	session := h.session(c.GetHeader(SessionHeader))
	c.Header(SessionHeader, session.ID)

	task := &RequestTask{
		ID:        uuid.New().String(),
		Context:   c.Request.Context(),
		Session:   session,
		Request:   req,
		Response:  make(chan portal.Response, 1),
		CreatedAt: time.Now(),
	}

	if err = h.queue.AddTask(task); err != nil {
		errorJSON(c, http.StatusServiceUnavailable, "server_error", "Failed to queue request: %v", err)
		return
	}

	var timeout <-chan time.Time
	if h.responseTimeout > 0 {
		timer := time.NewTimer(h.responseTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case response := <-task.Response:
		h.keepSession(session)
		c.JSON(http.StatusOK, response)
	case <-c.Request.Context().Done():
		log.Debugf("Client went away while task %s was queued", task.ID)
	case <-timeout:
		errorJSON(c, http.StatusGatewayTimeout, "server_error", "Timed out waiting for the page")
	}
}

// Page handles the /v1/page endpoint
func (h *APIHandlers) Page(c *gin.Context) {
	doc, err := h.handler.Agent().Snapshot(c.Request.Context())
	if err != nil {
		errorJSON(c, http.StatusBadGateway, "server_error", "Unable to read the page: %v", err)
		return
	}
	c.JSON(http.StatusOK, PageResponse{URL: doc.URL, Page: doc.Classify(), Queue: h.queue.Stats()})
}

// Session handles the /v1/session/:id endpoint
func (h *APIHandlers) Session(c *gin.Context) {
	s, ok := h.lookupSession(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, "invalid_request_error", "Session %s not found", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, SessionResponse{ID: s.ID, Completed: s.Completed()})
}
