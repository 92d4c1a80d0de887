package location

import (
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sbw-site/geotrack/internal/models"
	"github.com/sbw-site/geotrack/internal/pkg/pagination"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

// Handler serves the admin ping listing.
type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler { return &Handler{store: store} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	rg.GET("/locations", authMW, h.list)
}

type listItem struct {
	models.LocationData
	MapURL string `json:"map_url"`
}

func mapURL(lat, lng float64) string {
	return fmt.Sprintf("https://www.openstreetmap.org/?mlat=%[1]v&mlon=%[2]v#map=18/%[1]v/%[2]v", lat, lng)
}

func (h *Handler) list(c *gin.Context) {
	filter := ListFilter{
		UserID:   strings.TrimSpace(c.Query("user_id")),
		SocketID: strings.TrimSpace(c.Query("socket_id")),
		Date:     strings.TrimSpace(c.Query("date")),
	}
	if filter.Date != "" {
		d, err := ParseDate(filter.Date, time.UTC)
		if err != nil {
			response.BadRequest(c, "Invalid date filter")
			return
		}
		filter.Date = d.Format(models.DateLayout)
	}

	rows, pag, err := h.store.List(c.Request.Context(), filter, pagination.FromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]listItem, len(rows))
	for i, row := range rows {
		items[i] = listItem{LocationData: row, MapURL: mapURL(row.Latitude, row.Longitude)}
	}
	response.Paged(c, items, pag)
}
