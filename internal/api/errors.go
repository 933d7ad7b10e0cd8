package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"stockledger/server/internal/services"
	"stockledger/server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// respondError maps service errors onto HTTP statuses. Unexpected errors
// are logged and hidden behind a generic message.
func respondError(ctx *gin.Context, logger *logrus.Logger, funcName string, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, services.ErrValidation):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{
			"error":   "not found",
			"details": err.Error(),
		})
	case errors.Is(err, services.ErrConflict):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":   "conflict",
			"details": err.Error(),
		})
	default:
		utils.LogError(logger, "api", funcName, ctx.Request.Method+" "+ctx.FullPath(), nil, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// respondBindError reports a malformed request body.
func respondBindError(ctx *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": services.ProcessValidationErrors(verrs),
		})
		return
	}
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid request body",
		"details": err.Error(),
	})
}

// parsePeriod reads ?from=&to= as RFC 3339 timestamps or plain dates.
// A plain `to` date covers that whole day.
func parsePeriod(ctx *gin.Context) (services.Period, error) {
	var p services.Period
	var err error
	if raw := strings.TrimSpace(ctx.Query("from")); raw != "" {
		if p.From, err = parseTime(raw, false); err != nil {
			return p, &services.ValidationError{Fields: map[string]string{"from": "must be RFC 3339 or YYYY-MM-DD"}}
		}
	}
	if raw := strings.TrimSpace(ctx.Query("to")); raw != "" {
		if p.To, err = parseTime(raw, true); err != nil {
			return p, &services.ValidationError{Fields: map[string]string{"to": "must be RFC 3339 or YYYY-MM-DD"}}
		}
	}
	return p, nil
}

func parseTime(raw string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		return d.Add(24*time.Hour - time.Nanosecond), nil
	}
	return d, nil
}
