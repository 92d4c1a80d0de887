package movement

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sbw-site/geotrack/internal/modules/periphery"
	"github.com/sbw-site/geotrack/internal/pkg/apperr"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

const defaultRange = time.Hour

// Handler serves on-demand movement reports.
type Handler struct {
	svc *Service
	loc *time.Location
	now func() time.Time
	log *zap.Logger
}

func NewHandler(svc *Service, loc *time.Location, log *zap.Logger) *Handler {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{svc: svc, loc: loc, now: time.Now, log: log}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/user-movement/:user_id", h.userMovement)
}

func (h *Handler) userMovement(c *gin.Context) {
	req, err := h.parseRequest(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	report, err := h.svc.Report(c.Request.Context(), req)
	if err != nil {
		h.log.Error("movement report failed", zap.String("user", req.UserID), zap.Error(err))
		response.Error(c, asServerError(err))
		return
	}
	response.OK(c, report)
}

// asServerError keeps failures past request parsing out of the 4xx range.
func asServerError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindParse:
		return &apperr.Error{Kind: apperr.KindDataIntegrity, Msg: apperr.Message(err), Err: err}
	}
	return err
}

func (h *Handler) parseRequest(c *gin.Context) (Request, error) {
	req := Request{
		UserID: strings.TrimSpace(c.Param("user_id")),
		Notify: true,
	}
	if req.UserID == "" {
		return req, apperr.Validation("user_id is required")
	}

	now := h.now().In(h.loc)
	req.End = now
	if raw := strings.TrimSpace(c.Query("end_time")); raw != "" {
		t, err := ParseDateTime(raw, h.loc)
		if err != nil {
			return req, apperr.Parse(err, "Invalid datetime format")
		}
		req.End = t
	}
	// A missing start trails the effective end, so an end_time alone
	// still selects a one-hour range.
	req.Start = req.End.Add(-defaultRange)
	if raw := strings.TrimSpace(c.Query("start_time")); raw != "" {
		t, err := ParseDateTime(raw, h.loc)
		if err != nil {
			return req, apperr.Parse(err, "Invalid datetime format")
		}
		req.Start = t
	}
	if !req.Start.Before(req.End) {
		return req, apperr.Validation("Start time must be earlier than end time")
	}

	if raw := strings.TrimSpace(c.Query("periphery_duration")); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 || minutes > periphery.MaxMinutes {
			return req, apperr.Validation("periphery_duration must be an integer between 1 and %d", periphery.MaxMinutes)
		}
		req.Override.Minutes = &minutes
	}
	if raw := strings.TrimSpace(c.Query("periphery_radius")); raw != "" {
		radius, err := strconv.ParseFloat(raw, 64)
		if err != nil || radius < 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
			return req, apperr.Validation("periphery_radius must be a finite non-negative number")
		}
		req.Override.Radius = &radius
	}
	if raw := strings.TrimSpace(c.Query("notify")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return req, apperr.Validation("notify must be a boolean")
		}
		req.Notify = v
	}
	return req, nil
}

var gluedDateTime = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}\d{2}:\d{2}:\d{2}$`)

var dateTimeLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// ParseDateTime accepts RFC 3339 timestamps, naive ISO forms interpreted in
// loc, and the glued YYYY-MM-DDHH:MM:SS form some clients send.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if gluedDateTime.MatchString(s) {
		s = s[:10] + "T" + s[10:]
	}
	// A '+' in a query string arrives as a space.
	if len(s) > 19 && s[19] == ' ' {
		s = s[:19] + "+" + s[20:]
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range dateTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
