package console

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"reviewdesk/internal/review"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
)

const (
	defaultActionLimit = 50
	maxActionLimit     = 500
)

type pageRequest struct {
	PageNum  int `json:"pageNum"`
	PageSize int `json:"pageSize"`
}

type selectionRequest struct {
	IDs []int64 `json:"ids"`
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

type decisionRequest struct {
	Action string `json:"action"`
	ID     *int64 `json:"id"`
	Batch  bool   `json:"batch"`
}

// confirmRequest keeps a missing or null reason apart from an empty one.
type confirmRequest struct {
	Reason *string `json:"reason"`
}

// bindJSON decodes the request body into v. An empty body leaves v as is.
func bindJSON(c *gin.Context, v interface{}) bool {
	if err := json.NewDecoder(c.Request.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// withSession resolves the caller's session and runs fn with it.
func (s *Server) withSession(c *gin.Context, fn func(*session)) {
	sess, err := s.sessionFor(c)
	if err != nil {
		respondError(c, err)
		return
	}
	fn(sess)
}

func respondState(c *gin.Context, sess *session) {
	c.JSON(http.StatusOK, sess.ctrl.Snapshot())
}

// respondError maps review errors to HTTP statuses. Backend failures were
// already pushed to the moderator as notices.
func respondError(c *gin.Context, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, review.ErrUnknownItem):
		status = http.StatusNotFound
	case errors.Is(err, review.ErrDecisionNotPending):
		status = http.StatusConflict
	case errors.Is(err, review.ErrClosed):
		status = http.StatusGone
	case errors.Is(err, review.ErrInvalidPage):
		status = http.StatusBadRequest
	case review.Classify(err) == review.KindValidation:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": review.Classify(err).String()})
}

func (s *Server) getState(c *gin.Context) {
	s.withSession(c, func(sess *session) { respondState(c, sess) })
}

func (s *Server) search(c *gin.Context) {
	s.withSession(c, func(sess *session) {
		if err := sess.ctrl.Search(c.Request.Context()); err != nil {
			respondError(c, err)
			return
		}
		respondState(c, sess)
	})
}

func (s *Server) switchCategory(c *gin.Context) {
	category, err := review.ParseCategory(c.Param("key"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.withSession(c, func(sess *session) {
		if err := sess.ctrl.SwitchCategory(c.Request.Context(), category); err != nil {
			respondError(c, err)
			return
		}
		respondState(c, sess)
	})
}

// setPage applies pageNum then pageSize; a zero field keeps its value.
func (s *Server) setPage(c *gin.Context) {
	var req pageRequest
	if !bindJSON(c, &req) {
		return
	}
	s.withSession(c, func(sess *session) {
		ctx := c.Request.Context()
		if req.PageNum != 0 {
			if err := sess.ctrl.SetPage(ctx, req.PageNum); err != nil {
				respondError(c, err)
				return
			}
		}
		if req.PageSize != 0 {
			if err := sess.ctrl.SetPageSize(ctx, req.PageSize); err != nil {
				respondError(c, err)
				return
			}
		}
		respondState(c, sess)
	})
}

func (s *Server) setSelection(c *gin.Context) {
	var req selectionRequest
	if !bindJSON(c, &req) {
		return
	}
	s.withSession(c, func(sess *session) {
		sess.ctrl.SetSelection(req.IDs)
		respondState(c, sess)
	})
}

func (s *Server) clearSelection(c *gin.Context) {
	s.withSession(c, func(sess *session) {
		sess.ctrl.ClearSelection()
		respondState(c, sess)
	})
}

func (s *Server) setVisibility(c *gin.Context) {
	var req visibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	s.withSession(c, func(sess *session) {
		sess.visibility.Set(req.Visible)
		respondState(c, sess)
	})
}

func (s *Server) beginDecision(c *gin.Context) {
	var req decisionRequest
	if !bindJSON(c, &req) {
		return
	}
	action, err := review.ParseAction(req.Action)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Batch && req.ID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either id or batch is required"})
		return
	}

	s.withSession(c, func(sess *session) {
		var d *review.PendingDecision
		var err error
		if req.Batch {
			d, err = sess.ctrl.BeginBatch(c.Request.Context(), action)
		} else {
			d, err = sess.ctrl.Begin(action, *req.ID)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})
}

// confirmDecision executes a pending decision and writes it to the action
// log. A partially failed batch answers 502 with the outcome.
func (s *Server) confirmDecision(c *gin.Context) {
	var req confirmRequest
	if !bindJSON(c, &req) {
		return
	}
	claims := moderator(c)

	s.withSession(c, func(sess *session) {
		outcome, err := sess.ctrl.Confirm(c.Request.Context(), c.Param("id"), req.Reason)
		if outcome == nil {
			respondError(c, err)
			return
		}
		s.logOutcome(c, claims, outcome)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   err.Error(),
				"kind":    review.Classify(err).String(),
				"outcome": outcome,
			})
			return
		}
		c.JSON(http.StatusOK, outcome)
	})
}

func (s *Server) logOutcome(c *gin.Context, claims *Claims, outcome *review.Outcome) {
	action := "review_" + string(outcome.Action)
	details := map[string]interface{}{
		"decision_id": outcome.DecisionID,
		"category":    outcome.Category.Key(),
		"ids":         outcome.Targets,
		"batch":       outcome.Batch,
		"processed":   outcome.Processed,
		"failed":      outcome.Failed,
		"source":      "console",
		"moderator":   claims.Subject,
	}
	if outcome.Reason != nil {
		details["reason"] = *outcome.Reason
	}
	if err := s.store.LogUserAction(claims.UserID, action, details); err != nil {
		log.Printf("[Console Sub:%s] Failed to log decision %s: %v", claims.Subject, outcome.DecisionID, err)
		sentry.CaptureException(err)
	}
	if err := s.store.UpdateUser(c.Request.Context(), claims.UserID, claims.Name, "", "", true, action); err != nil {
		log.Printf("[Console Sub:%s] Failed to update user record: %v", claims.Subject, err)
	}
}

func (s *Server) cancelDecision(c *gin.Context) {
	s.withSession(c, func(sess *session) {
		if err := sess.ctrl.Cancel(c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}

func (s *Server) viewDetail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	s.withSession(c, func(sess *session) {
		row, ok := sess.ctrl.Find(id)
		if !ok {
			respondError(c, review.ErrUnknownItem)
			return
		}
		view, err := sess.ctrl.ViewDetail(c.Request.Context(), row)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	})
}

func (s *Server) closeDetail(c *gin.Context) {
	s.withSession(c, func(sess *session) {
		sess.ctrl.CloseDetail()
		c.Status(http.StatusNoContent)
	})
}

func (s *Server) recentActions(c *gin.Context) {
	limit := defaultActionLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxActionLimit)
	}
	actions, err := s.store.RecentActions(c.Request.Context(), limit)
	if err != nil {
		log.Printf("[Console] Failed to read action log: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read action log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// serveWS upgrades to a websocket that receives the moderator's state and
// notice frames, starting with the current state.
func (s *Server) serveWS(c *gin.Context) {
	sess, err := s.sessionFor(c)
	if err != nil {
		respondError(c, err)
		return
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[Console Sub:%s] Websocket upgrade failed: %v", sess.subject, err)
		return
	}

	client := &Client{Conn: conn, Subject: sess.subject, Send: make(chan []byte, sendBuffer)}
	snap := sess.ctrl.Snapshot()
	initial, err := json.Marshal(Frame{Type: "state", State: &snap})
	if err == nil {
		client.Send <- initial
	}
	if !s.hub.Register(client) {
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump(s.hub)
}
