// Package handler implements the ledger's HTTP handlers.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopledger/backend/internal/domain/finance"
	"github.com/shopledger/backend/internal/domain/shared"
	"github.com/shopledger/backend/internal/infrastructure/logger"
	"github.com/shopledger/backend/internal/interfaces/http/dto"
	"github.com/shopledger/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct {
	// AdminRole is the role claim that grants access to every owner's documents
	AdminRole string
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize, totalPages int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize, totalPages))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// HandleError renders domain errors with their code and hides everything
// else behind a generic 500.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
	_ = c.Error(err)
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// actorID returns the authenticated user, writing a 401 when there is none
func (h *BaseHandler) actorID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetActorID(c)
	if !ok {
		h.Error(c, shared.CodeUnauthorized, "Authentication required")
	}
	return id, ok
}

// isAdmin reports whether the caller carries the admin role
func (h *BaseHandler) isAdmin(c *gin.Context) bool {
	claims := middleware.GetJWTClaims(c)
	return claims != nil && claims.HasRole(h.AdminRole)
}

// authorizeOwner allows admins and the party that owns the document.
// Platform documents are admin only.
func (h *BaseHandler) authorizeOwner(c *gin.Context, owner finance.Owner) bool {
	if h.isAdmin(c) {
		return true
	}
	actor, ok := h.actorID(c)
	if !ok {
		return false
	}
	if owner.IsPlatform() || owner.ID != actor {
		h.Error(c, shared.CodeForbidden, "Access to this resource is not allowed")
		return false
	}
	return true
}

// pathUUID parses a UUID path parameter, writing a 400 on failure
func (h *BaseHandler) pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.BadRequest(c, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryOwner builds the owner named by owner_kind and owner_id query
// parameters. Missing values default to the caller as a USER.
func (h *BaseHandler) queryOwner(c *gin.Context, kind, id string) (finance.Owner, bool) {
	if kind == "" {
		kind = string(finance.OwnerKindUser)
	}
	k, err := finance.ParseOwnerKind(kind)
	if err != nil {
		h.HandleError(c, err)
		return finance.Owner{}, false
	}
	owner := finance.Owner{Kind: k}
	if k == finance.OwnerKindPlatform {
		return owner, true
	}
	if id == "" {
		actor, ok := h.actorID(c)
		if !ok {
			return finance.Owner{}, false
		}
		owner.ID = actor
		return owner, true
	}
	if owner.ID, err = uuid.Parse(id); err != nil {
		h.BadRequest(c, "Invalid owner_id")
		return finance.Owner{}, false
	}
	return owner, true
}

// handleQueryError writes the response for a failed ShouldBindQuery
func (h *BaseHandler) handleQueryError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		middleware.HandleValidationError(c, err)
		return
	}
	h.BadRequest(c, "Invalid query parameters")
}

// bind binds the JSON body, writing the validation response on failure
func (h *BaseHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}
