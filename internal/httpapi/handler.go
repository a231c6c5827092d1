// Package httpapi exposes authentication, attendance marking and the student
// registry over HTTP.
package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"geoattend/internal/apperr"
	"geoattend/internal/attendance"
	"geoattend/internal/auth"
	"geoattend/internal/subject"
)

// Attendance is the attendance service used by the handlers.
type Attendance interface {
	Mark(ctx context.Context, in attendance.MarkInput) (attendance.Result, error)
	ListToday(ctx context.Context) ([]attendance.Record, error)
	Today() string
}

// Subjects is the subject service used by the handlers.
type Subjects interface {
	Authenticate(ctx context.Context, username, password string) (subject.Subject, error)
	ChangePassword(ctx context.Context, id, current, next string) error
	Register(ctx context.Context, in subject.NewStudent) (subject.Subject, error)
	Get(ctx context.Context, id string) (subject.Subject, error)
	ListStudents(ctx context.Context) ([]subject.Subject, error)
	Update(ctx context.Context, id string, c subject.Changes) (subject.Subject, error)
	Delete(ctx context.Context, id string) error
}

type Handler struct {
	attendance Attendance
	subjects   Subjects
	signer     *auth.Signer
	logger     *slog.Logger
}

func NewHandler(att Attendance, subs Subjects, signer *auth.Signer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{attendance: att, subjects: subs, signer: signer, logger: logger}
}

// Register mounts the /v1 routes on r.
func (h *Handler) Register(r gin.IRouter) {
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.login)
	v1.POST("/auth/refresh", h.refresh)

	authed := v1.Group("", auth.Bearer(h.signer))
	authed.POST("/auth/change-password", h.changePassword)
	authed.POST("/attendance/mark", h.mark)

	admin := authed.Group("", auth.RequireRole(string(subject.RoleAdmin)))
	admin.GET("/attendance/today", h.today)
	admin.POST("/students", h.createStudent)
	admin.GET("/students", h.listStudents)
	admin.GET("/students/:id", h.getStudent)
	admin.PATCH("/students/:id", h.updateStudent)
	admin.DELETE("/students/:id", h.deleteStudent)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	sub, err := h.subjects.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.issue(c, sub)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	claims, err := h.signer.Parse(req.RefreshToken, auth.RefreshToken)
	if err != nil {
		h.fail(c, apperr.Unauthorized(CodeInvalidToken, "invalid refresh token"))
		return
	}
	// Re-read the subject so deleted accounts and role changes take effect.
	sub, err := h.subjects.Get(c.Request.Context(), claims.Subject)
	if err != nil {
		if e, ok := apperr.As(err); ok && e.Kind == apperr.KindNotFound {
			err = apperr.Unauthorized(CodeInvalidToken, "invalid refresh token")
		}
		h.fail(c, err)
		return
	}
	h.issue(c, sub)
}

func (h *Handler) issue(c *gin.Context, sub subject.Subject) {
	tokens, err := h.signer.Issue(sub.ID, string(sub.Role))
	if err != nil {
		h.fail(c, apperr.Internal(err, "token issue failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": tokens, "subject": sub})
}

func (h *Handler) changePassword(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req changePasswordRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.subjects.ChangePassword(c.Request.Context(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *Handler) mark(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	var req markRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	subjectID := req.SubjectID
	if subjectID == "" {
		subjectID = claims.Subject
	}
	if subjectID != claims.Subject && claims.Role != string(subject.RoleAdmin) {
		h.fail(c, apperr.Forbidden(CodeForeignSubject, "cannot mark attendance for another user"))
		return
	}

	res, err := h.attendance.Mark(c.Request.Context(), req.input(subjectID))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"action":          res.Action,
		"message":         res.Action + " successfully!",
		"date":            res.Date,
		"evidence":        res.Evidence,
		"distance_meters": res.DistanceMeters,
		"record":          res.Record,
	})
}

func (h *Handler) today(c *gin.Context) {
	recs, err := h.attendance.ListToday(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": h.attendance.Today(), "records": recs})
}

func (h *Handler) createStudent(c *gin.Context) {
	var req createStudentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	sub, err := h.subjects.Register(c.Request.Context(), req.student())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Student registered successfully", "student": sub})
}

func (h *Handler) listStudents(c *gin.Context) {
	subs, err := h.subjects.ListStudents(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": subs})
}

func (h *Handler) getStudent(c *gin.Context) {
	sub, err := h.subjects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) updateStudent(c *gin.Context) {
	var req updateStudentRequest
	if err := bindJSON(c, &req); err != nil {
		h.fail(c, err)
		return
	}
	sub, err := h.subjects.Update(c.Request.Context(), c.Param("id"), req.changes())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student updated successfully", "student": sub})
}

func (h *Handler) deleteStudent(c *gin.Context) {
	if err := h.subjects.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student and attendance records deleted successfully"})
}
