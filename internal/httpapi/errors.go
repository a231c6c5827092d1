package httpapi

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"geoattend/internal/apperr"
)

const (
	CodeInvalidBody    = "invalid_body"
	CodeInvalidToken   = "invalid_token"
	CodeForeignSubject = "foreign_subject"
)

// bindJSON decodes the body into dst, rejecting unknown fields, then runs
// the binding tags of dst.
func bindJSON(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest(CodeInvalidBody, "invalid request body: "+err.Error())
	}
	if dec.More() {
		return apperr.BadRequest(CodeInvalidBody, "request body must be a single JSON object")
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return apperr.BadRequest(CodeInvalidBody, err.Error())
	}
	return nil
}

// fail writes err as {"kind", "code", "error", "distance_meters"?}.
func (h *Handler) fail(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		e = apperr.Internal(err, "internal error")
	}
	if e.Kind == apperr.KindInternal {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	body := gin.H{"kind": e.Kind, "code": e.Code, "error": e.Message}
	if e.DistanceMeters != nil {
		body["distance_meters"] = *e.DistanceMeters
	}
	c.AbortWithStatusJSON(apperr.Status(e), body)
}
