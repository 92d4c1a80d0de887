package periphery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sbw-site/geotrack/internal/database/dbtest"
	"github.com/sbw-site/geotrack/internal/models"
)

func newTestRouter(t *testing.T) (*gin.Engine, *Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(dbtest.Open(t))
	r := gin.New()
	h.RegisterRoutes(r.Group("/api"), func(c *gin.Context) { c.Next() })
	return r, h
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIConfigCRUD(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodGet, "/api/api-config/"+KeyParamsAPI, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPut, "/api/api-config/"+KeyParamsAPI, `{"url":"http://a.local/params"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodPut, "/api/api-config/"+KeyParamsAPI, `{"url":"http://b.local/params","description":"upstream"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/api-config/"+KeyParamsAPI, "")
	require.Equal(t, http.StatusOK, w.Code)
	var row models.APIConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, "http://b.local/params", row.URL)
	assert.Equal(t, "upstream", row.Description)

	w = do(r, http.MethodGet, "/api/api-config", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []models.APIConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Data, 1)

	w = do(r, http.MethodDelete, "/api/api-config/"+KeyParamsAPI, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/api/api-config/"+KeyParamsAPI, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPIConfigPutRequiresURL(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPut, "/api/api-config/"+KeyParamsAPI, `{"description":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
