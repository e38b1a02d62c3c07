package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/localizador/backend/internal/config"
	"github.com/localizador/backend/internal/http/handlers"
	"github.com/localizador/backend/internal/http/middleware"
	"github.com/localizador/backend/internal/metrics"
	"github.com/localizador/backend/internal/service"

	_ "github.com/localizador/backend/docs"
)

func Router(cfg config.Config, store handlers.Store, dispatch *service.DispatchService, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	presets, _ := cfg.Presets()
	h := &handlers.Handler{
		Store:     store,
		Dispatch:  dispatch,
		Validator: validator.New(),
		Logger:    logger,
		Settings: handlers.Settings{
			Defaults:        dispatch.Defaults,
			DistancePresets: presets,
			Geocoder:        cfg.Geocoder,
			Router:          cfg.Router,
			MaxBatchSize:    dispatch.MaxBatchSize,
		},
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	{
		api.GET("/config", h.Config)

		api.GET("/technicians", h.TechniciansList)
		api.POST("/technicians", h.TechnicianCreate)
		api.PUT("/technicians", h.TechniciansReplace)
		api.GET("/technicians/filters", h.TechnicianFilters)
		api.GET("/technicians/stats", h.TechniciansStats)
		api.POST("/technicians/regeocode", h.TechniciansRegeocode)
		api.GET("/technicians/:id", h.TechnicianDetails)
		api.PUT("/technicians/:id", h.TechnicianUpdate)
		api.DELETE("/technicians/:id", h.TechnicianDelete)

		api.POST("/search", h.Search)
		api.POST("/batches", h.Batch)

		api.GET("/runs/latest", h.RunsLatest)
		api.GET("/runs/:id", h.RunDetails)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
