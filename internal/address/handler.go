package address

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler exposes manual address requests to the host UI
type Handler struct {
	resolver *Resolver
}

func NewHandler(resolver *Resolver) *Handler {
	return &Handler{resolver: resolver}
}

// RequestAddressBody is the body for requesting a recipient's address
type RequestAddressBody struct {
	RecipientEmail string `json:"recipient_email" binding:"required,email"`
	RecipientName  string `json:"recipient_name"`
	Message        string `json:"message"`
}

// RequestAddress records an address request and notifies the recipient
// POST /api/address-requests
func (h *Handler) RequestAddress(c *gin.Context) {
	userID := c.GetString("userID")

	var req RequestAddressBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	request, err := h.resolver.RequestAddress(userID, req.RecipientEmail, req.RecipientName, req.Message)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, request)
}
