package auth

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/sbw-site/geotrack/internal/middleware"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/login", h.login)
	a.GET("/session", authMW, h.session)
}

type loginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (h *Handler) login(c *gin.Context) {
	var dto loginDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	token, err := h.svc.Login(dto.Username, dto.Password)
	if err != nil {
		switch {
		case errors.Is(err, errLoginDisabled):
			response.BadRequest(c, "Password login is disabled")
		case errors.Is(err, errBadCredential):
			response.ForbiddenMsg(c, "Wrong username or password")
		default:
			response.InternalError(c, err)
		}
		return
	}
	response.OK(c, loginResponse{Token: token})
}

func (h *Handler) session(c *gin.Context) {
	response.OK(c, gin.H{"user_id": middleware.CurrentUserID(c)})
}
