package periphery

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

// Handler exposes admin CRUD over api_configs.
type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/api-config", authMW)
	g.GET("", h.list)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
	g.DELETE("/:key", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	var items []models.APIConfig
	if err := h.db.WithContext(c.Request.Context()).Order("`key`").Find(&items).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

func (h *Handler) get(c *gin.Context) {
	var row models.APIConfig
	err := h.db.WithContext(c.Request.Context()).Where(&models.APIConfig{Key: c.Param("key")}).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFoundMsg(c, "API config not found")
			return
		}
		response.InternalError(c, err)
		return
	}
	response.OK(c, row)
}

type putDTO struct {
	URL         string `json:"url" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) put(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	var dto putDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	row := models.APIConfig{
		Key:         key,
		URL:         strings.TrimSpace(dto.URL),
		Description: dto.Description,
	}
	if err := h.db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"url", "description"}),
	}).Create(&row).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, row)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.db.WithContext(c.Request.Context()).Where(&models.APIConfig{Key: c.Param("key")}).Delete(&models.APIConfig{}).Error; err != nil {
		response.InternalError(c, err)
		return
	}
	response.NoContent(c)
}
