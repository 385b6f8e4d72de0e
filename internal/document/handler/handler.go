package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/draftdeck/draftdeck/internal/block"
	"github.com/draftdeck/draftdeck/internal/document"
	"github.com/draftdeck/draftdeck/internal/document/service"
	"github.com/draftdeck/draftdeck/internal/payment"
	"github.com/draftdeck/draftdeck/pkg/middleware"
	"github.com/gin-gonic/gin"
)

// RegisterDocumentRoutes wires the sender-facing document API and the
// token-authenticated recipient signing surface.
func RegisterDocumentRoutes(r gin.IRouter, svc *service.Service, gate *payment.Gate) {
	r.GET("/api/documents", func(c *gin.Context) {
		list, err := svc.ListByOwner(c.Request.Context(), ownerID(c))
		if err != nil {
			respondErr(c, err)
			return
		}
		out := make([]gin.H, 0, len(list))
		for _, d := range list {
			out = append(out, gin.H{"id": d.ID, "title": d.Title, "status": d.Status, "isTemplate": d.IsTemplate, "updatedAt": d.UpdatedAt})
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/api/documents", func(c *gin.Context) {
		var req struct {
			Title      string            `json:"title"`
			Content    block.List        `json:"content"`
			Variables  map[string]string `json:"variables"`
			Settings   document.Settings `json:"settings"`
			IsTemplate bool              `json:"isTemplate"`
			OrgID      string            `json:"orgId"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d := &document.Document{
			OwnerID:    ownerID(c),
			OrgID:      req.OrgID,
			Title:      req.Title,
			Content:    req.Content,
			Variables:  req.Variables,
			Settings:   req.Settings,
			IsTemplate: req.IsTemplate,
		}
		if req.OrgID != "" {
			d.OwnerID = ""
		}
		created, err := svc.CreateDraft(c.Request.Context(), d)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	r.GET("/api/documents/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.PATCH("/api/documents/:id", func(c *gin.Context) {
		var req struct {
			Title     *string            `json:"title"`
			Content   *block.List        `json:"content"`
			Variables *map[string]string `json:"variables"`
			Settings  *document.Settings `json:"settings"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		d, err := svc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		if req.Title != nil {
			d.Title = *req.Title
		}
		if req.Content != nil {
			d.Content = *req.Content
		}
		if req.Variables != nil {
			d.Variables = *req.Variables
		}
		if req.Settings != nil {
			d.Settings = *req.Settings
		}
		if err := svc.UpdateDraft(c.Request.Context(), d); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	r.DELETE("/api/documents/:id", func(c *gin.Context) {
		if err := svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	r.POST("/api/documents/:id/instantiate", func(c *gin.Context) {
		var req struct {
			Title string `json:"title"`
		}
		_ = c.ShouldBindJSON(&req)
		d, err := svc.Instantiate(c.Request.Context(), c.Param("id"), ownerID(c), req.Title)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, d)
	})

	r.POST("/api/documents/:id/send", func(c *gin.Context) {
		sendOrResend(c, svc, svc.Send)
	})

	r.POST("/api/documents/:id/resend", func(c *gin.Context) {
		sendOrResend(c, svc, svc.Resend)
	})

	// collaborators report settlement outcomes here; the gate never charges
	r.POST("/api/documents/:id/payments", func(c *gin.Context) {
		var f payment.Fact
		if err := c.ShouldBindJSON(&f); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		f.DocumentID = c.Param("id")
		if err := gate.Record(c.Request.Context(), &f); err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": f.ID, "status": f.Status})
	})

	// recipient signing surface, authenticated solely by access token
	r.GET("/sign/:token", func(c *gin.Context) {
		d, rec, err := svc.ViewByToken(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d, "recipient": rec})
	})

	r.POST("/sign/:token/signature", func(c *gin.Context) {
		d, err := svc.Sign(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d})
	})

	r.POST("/sign/:token/decline", func(c *gin.Context) {
		d, err := svc.Decline(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"document": d})
	})
}

func sendOrResend(c *gin.Context, svc *service.Service, fn func(ctx context.Context, id string, req service.SendRequest) (*document.Document, error)) {
	var req service.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	d, err := fn(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	links := make([]gin.H, 0, len(d.Recipients))
	for i := range d.Recipients {
		r := &d.Recipients[i]
		links = append(links, gin.H{"recipientId": r.ID, "email": r.Email, "link": svc.SigningLink(r.AccessToken)})
	}
	c.JSON(http.StatusOK, gin.H{"document": d, "signingLinks": links})
}

func ownerID(c *gin.Context) string {
	if sub := middleware.Subject(c); sub != "" {
		return sub
	}
	return c.GetHeader("X-User-ID")
}

// respondErr maps domain errors onto the API taxonomy: validation (400),
// not found / expired token or document (404/410), state conflicts (409)
// and the distinct payment-required conflict (402).
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, payment.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrTokenInvalid), errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrExpired):
		c.JSON(http.StatusGone, gin.H{"error": "document expired"})
	case errors.Is(err, payment.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "payment required before signing"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
