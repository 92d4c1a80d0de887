package health

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sbw-site/geotrack/internal/pkg/cron"
	"github.com/sbw-site/geotrack/internal/pkg/nativelog"
	"github.com/sbw-site/geotrack/internal/pkg/response"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the health routes inspect.
type Deps struct {
	DB     *gorm.DB
	Redis  Pinger
	Sched  *cron.Scheduler
	LogDir string
}

const pingTimeout = 2 * time.Second

func RegisterRoutes(rg *gin.RouterGroup, deps Deps, authMW gin.HandlerFunc) {
	rg.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })

	rg.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
		defer cancel()

		dbOK := false
		if sqlDB, err := deps.DB.DB(); err == nil {
			dbOK = sqlDB.PingContext(ctx) == nil
		}
		redisOK := deps.Redis == nil || deps.Redis.Ping(ctx) == nil

		status := "ok"
		code := http.StatusOK
		if !dbOK || !redisOK {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		body := gin.H{
			"status":   status,
			"database": dbOK,
			"redis":    redisOK,
		}
		if deps.Sched != nil {
			body["jobs"] = deps.Sched.List()
		}
		c.JSON(code, body)
	})

	if deps.Sched != nil {
		cronGroup := rg.Group("/cron", authMW)
		cronGroup.GET("", func(c *gin.Context) {
			response.OK(c, deps.Sched.List())
		})
		cronGroup.POST("/:name/run", func(c *gin.Context) {
			// The job outlives the request.
			if err := deps.Sched.Run(context.WithoutCancel(c.Request.Context()), c.Param("name")); err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			c.JSON(http.StatusAccepted, gin.H{"message": "job triggered"})
		})
		cronGroup.GET("/:name", func(c *gin.Context) {
			result, err := deps.Sched.GetTask(c.Param("name"))
			if err != nil {
				response.NotFoundMsg(c, err.Error())
				return
			}
			response.OK(c, result)
		})
	}

	logGroup := rg.Group("/health/log", authMW)
	logGroup.GET("", func(c *gin.Context) {
		files, err := nativelog.List(deps.LogDir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				response.OK(c, []nativelog.File{})
				return
			}
			response.InternalError(c, err)
			return
		}
		response.OK(c, files)
	})
	logGroup.GET("/:filename", func(c *gin.Context) {
		filename := filepath.Base(strings.TrimSpace(c.Param("filename")))
		if filename == "." || filename == string(filepath.Separator) {
			response.BadRequest(c, "filename is required")
			return
		}
		data, err := os.ReadFile(filepath.Join(deps.LogDir, filename))
		if err != nil {
			response.NotFoundMsg(c, "log file not exists")
			return
		}
		c.Data(http.StatusOK, "text/plain; charset=utf-8", data)
	})
}
