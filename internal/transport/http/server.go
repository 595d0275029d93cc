package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mindmate/internal/bootstrap"
	"mindmate/internal/transport/http/handler"
	"mindmate/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler := handler.NewAuthHandler(app.AuthService)
	chatHandler := handler.NewChatHandler(app.ChatService)
	crisisHandler := handler.NewCrisisHandler(app.CrisisService)
	communityHandler := handler.NewCommunityHandler(app.CommunityService)
	authRequired := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	// Path kept from the browser pages that place the hotline call.
	router.POST("/api/initiateCall", authRequired, crisisHandler.InitiateCall)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authRequired, authHandler.Me)

	chatGroup := v1.Group("/chat")
	chatGroup.Use(authRequired)
	chatGroup.POST("/sessions", chatHandler.CreateSession)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.DELETE("/sessions/:id", chatHandler.DeleteSession)
	chatGroup.POST("/messages", chatHandler.SendMessage)
	chatGroup.POST("/messages/stream", chatHandler.StreamMessage)
	chatGroup.GET("/history", chatHandler.GetHistory)

	crisisGroup := v1.Group("/crisis")
	crisisGroup.POST("/check", middleware.OptionalJWT(app.Config.Auth.JWTSecret), crisisHandler.Check)
	crisisGroup.POST("/call", authRequired, crisisHandler.InitiateCall)
	crisisGroup.GET("/calls", authRequired, crisisHandler.ListCalls)

	communityGroup := v1.Group("/community")
	communityGroup.Use(authRequired)
	communityGroup.POST("/messages", communityHandler.Post)
	communityGroup.GET("/messages", communityHandler.List)
	communityGroup.GET("/stream", communityHandler.Stream)

	return router
}
