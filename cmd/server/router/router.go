package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"doc-chat/cmd/server/handlers"
	"doc-chat/cmd/server/middleware"
	"doc-chat/cmd/server/services"
	"doc-chat/config"
	_ "doc-chat/docs"
)

func New(sessionSvc *services.SessionService, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestTrace())

	// Health check
	r.GET("/health", handlers.HealthHandler())

	// Swagger
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	{
		api.POST("/upload", handlers.UploadHandler(sessionSvc, cfg.MaxUploadBytes))
		api.POST("/chat/:sessionId", handlers.ChatHandler(sessionSvc))
		api.GET("/chat/session/:sessionId", handlers.GetSessionHandler(sessionSvc))
		api.DELETE("/chat/session/:sessionId", handlers.DeleteSessionHandler(sessionSvc))
	}

	return r
}

// Handler 는 브라우저 프론트엔드가 어느 origin 에서든 호출할 수 있도록 CORS 를 적용한다.
func Handler(r *gin.Engine) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
	})
	return c.Handler(r)
}
