package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rfid-attendance/tracker/internal/model"
	"rfid-attendance/tracker/internal/services/attendance"
	"rfid-attendance/tracker/internal/store"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.svc.Ping(ctx); err != nil {
		writeJSON(c, http.StatusServiceUnavailable, gin.H{
			"ok":    false,
			"time":  now,
			"store": err.Error(),
		})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "time": now})
}

type createUserRequest struct {
	Name     string `json:"name" binding:"required,notblank,trimmax=30"`
	UserCode int64  `json:"user_code" binding:"required,gt=0"`
}

func (s *Server) handleUsersCreate(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	u, err := s.svc.Register(c.Request.Context(), req.Name, req.UserCode)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventUsers, "")
	writeJSON(c, http.StatusCreated, gin.H{"user": u})
}

func (s *Server) handleUsersList(c *gin.Context) {
	users, err := s.svc.ListUsers(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"users": users})
}

// handleUserGet serves the card-lookup view: who is registered under a code
// and whether a card is bound yet.
func (s *Server) handleUserGet(c *gin.Context) {
	code, ok := userCodeParam(c)
	if !ok {
		return
	}
	u, err := s.svc.LookupUser(c.Request.Context(), code)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"user": u})
}

type renameUserRequest struct {
	Name string `json:"name" binding:"required,notblank,trimmax=30"`
}

func (s *Server) handleUserRename(c *gin.Context) {
	code, ok := userCodeParam(c)
	if !ok {
		return
	}
	var req renameUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	u, err := s.svc.RenameUser(c.Request.Context(), code, req.Name)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventUsers, "")
	writeJSON(c, http.StatusOK, gin.H{"user": u})
}

func (s *Server) handleUserDelete(c *gin.Context) {
	code, ok := userCodeParam(c)
	if !ok {
		return
	}
	if err := s.svc.DeleteUser(c.Request.Context(), code); err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventUsers, "")
	s.bus.Publish(EventQueue, "")
	c.Status(http.StatusNoContent)
}

type createScannerRequest struct {
	Name string `json:"name" binding:"required,notblank,trimmax=10"`
}

// handleScannersCreate registers a scanner and hands back the device token
// the reader uses for its own routes.
func (s *Server) handleScannersCreate(c *gin.Context) {
	var req createScannerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	sc, err := s.svc.AddScanner(c.Request.Context(), req.Name)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	token, exp, err := s.tokens.Issue(sc.Name)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal", "failed to issue device token")
		return
	}
	s.bus.Publish(EventScanners, sc.Name)
	writeJSON(c, http.StatusCreated, gin.H{
		"scanner":          sc,
		"device_token":     token,
		"token_expires_at": exp.UTC(),
	})
}

func (s *Server) handleScannersList(c *gin.Context) {
	scanners, err := s.svc.ListScanners(c.Request.Context())
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"scanners": scanners})
}

func (s *Server) handleScannerDelete(c *gin.Context) {
	name := c.Param("name")
	if err := s.svc.DeleteScanner(c.Request.Context(), name); err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventScanners, name)
	s.bus.Publish(EventQueue, name)
	c.Status(http.StatusNoContent)
}

// handleScannerPending is what a reader polls to learn whose card it
// should expect next.
func (s *Server) handleScannerPending(c *gin.Context) {
	name, ok := scannerScope(c, c.Param("name"))
	if !ok {
		return
	}
	p, err := s.svc.GetPending(c.Request.Context(), name)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"pending": p})
}

type enqueueRequest struct {
	UserCode    int64  `json:"user_code" binding:"required,gt=0"`
	ScannerName string `json:"scanner_name" binding:"required,notblank,trimmax=10"`
}

func (s *Server) handleQueueCreate(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	scanner := strings.TrimSpace(req.ScannerName)
	e, err := s.svc.Enqueue(c.Request.Context(), req.UserCode, scanner)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventQueue, scanner)
	writeJSON(c, http.StatusCreated, gin.H{"entry": e})
}

func (s *Server) handleQueueList(c *gin.Context) {
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	queue, err := s.svc.ListQueue(c.Request.Context(), strings.TrimSpace(c.Query("scanner")), limit)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"queue": queue})
}

func (s *Server) handleQueueResolve(c *gin.Context) {
	if err := s.svc.Resolve(c.Request.Context(), c.Param("id")); err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventQueue, "")
	c.Status(http.StatusNoContent)
}

type scanRequest struct {
	ScannerName string `json:"scanner_name" binding:"omitempty,trimmax=10"`
	UID         string `json:"uid" binding:"required,uid"`
	UserCode    int64  `json:"user_code" binding:"omitempty,gt=0"`
}

func (s *Server) handleScans(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	scanner, ok := scannerScope(c, strings.TrimSpace(req.ScannerName))
	if !ok {
		return
	}
	if scanner == "" {
		writeError(c, http.StatusBadRequest, "validation", "scanner_name is required")
		return
	}

	res, err := s.svc.ReportScan(c.Request.Context(), attendance.Scan{
		ScannerName: scanner,
		UID:         req.UID,
		UserCode:    req.UserCode,
	})
	if err != nil {
		s.writeServiceError(c, err)
		return
	}

	switch res.Outcome {
	case attendance.OutcomeBound:
		s.bus.Publish(EventUsers, scanner)
		s.bus.Publish(EventQueue, scanner)
	case attendance.OutcomeAttendance:
		s.bus.Publish(EventAttendance, scanner)
	}
	writeJSON(c, http.StatusOK, res)
}

type recordRequest struct {
	UID         string     `json:"uid" binding:"required,uid"`
	At          *time.Time `json:"at"`
	ScannerName string     `json:"scanner_name" binding:"omitempty,trimmax=10"`
}

func (s *Server) handleAttendanceRecord(c *gin.Context) {
	var req recordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}
	scanner, ok := scannerScope(c, strings.TrimSpace(req.ScannerName))
	if !ok {
		return
	}

	var at time.Time
	if req.At != nil {
		at = *req.At
	}
	ev, err := s.svc.Record(c.Request.Context(), req.UID, at, scanner)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	s.bus.Publish(EventAttendance, scanner)
	writeJSON(c, http.StatusCreated, gin.H{"event": ev})
}

func (s *Server) handleAttendanceList(c *gin.Context) {
	var f store.AttendanceFilter

	if v := strings.TrimSpace(c.Query("user_code")); v != "" {
		code, err := strconv.ParseInt(v, 10, 64)
		if err != nil || code <= 0 {
			writeError(c, http.StatusBadRequest, "validation", "user_code must be a positive integer")
			return
		}
		f.UserCode = code
	}
	for _, q := range []struct {
		key string
		dst *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		v := strings.TrimSpace(c.Query(q.key))
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "validation", q.key+" must be an RFC 3339 timestamp")
			return
		}
		*q.dst = t.UTC()
	}
	limit, ok := limitQuery(c)
	if !ok {
		return
	}
	f.Limit = limit

	events, err := s.svc.ListAttendance(c.Request.Context(), f)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	if events == nil {
		events = []model.AttendanceEvent{}
	}
	writeJSON(c, http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleStream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	// Initial event so the client knows the stream is up.
	_, _ = fmt.Fprintf(w, "event: hello\ndata: {}\n\n")
	w.Flush()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": ping\n\n")
			w.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			b, _ := json.Marshal(ev)
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, string(b))
			w.Flush()
		}
	}
}

func userCodeParam(c *gin.Context) (int64, bool) {
	code, err := strconv.ParseInt(c.Param("code"), 10, 64)
	if err != nil || code <= 0 {
		writeError(c, http.StatusBadRequest, "validation", "user code must be a positive integer")
		return 0, false
	}
	return code, true
}

func limitQuery(c *gin.Context) (int, bool) {
	v := strings.TrimSpace(c.Query("limit"))
	if v == "" {
		return defaultListLimit, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		writeError(c, http.StatusBadRequest, "validation", "limit must be a positive integer")
		return 0, false
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, true
}
