package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := map[string]Query{
		"":                     {Page: 1, Size: DefaultSize},
		"?page=3&size=50":      {Page: 3, Size: 50},
		"?page=0&size=0":       {Page: 1, Size: DefaultSize},
		"?page=abc&size=10000": {Page: 1, Size: MaxSize},
	}
	for qs, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/x"+qs, nil)
		assert.Equal(t, want, FromContext(c), qs)
	}
}
