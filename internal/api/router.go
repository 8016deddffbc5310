package api

import (
	"github.com/gin-gonic/gin"

	"github.com/naigggs/hau2park.web-sub001/internal/api/handler"
	"github.com/naigggs/hau2park.web-sub001/internal/api/middleware"
	"github.com/naigggs/hau2park.web-sub001/internal/assistant"
	"github.com/naigggs/hau2park.web-sub001/internal/domain"
	"github.com/naigggs/hau2park.web-sub001/internal/mirror"
	"github.com/naigggs/hau2park.web-sub001/internal/repository"
	"github.com/naigggs/hau2park.web-sub001/internal/service"
)

func SetupRouter(
	as *service.AuthService,
	gs *service.GuestService,
	aps *service.ApprovalService,
	asst *assistant.Service,
	spaceRepo repository.ParkingSpaceRepository,
	spaceMirror *mirror.Mirror[int, domain.ParkingSpace],
	authMw *middleware.AuthMiddleware,
	wsManager *handler.WebSocketManager,
) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket endpoint for the live change feed.
	wsHandler := handler.NewWebSocketHandler(wsManager)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
	}

	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		spaceH := handler.NewParkingSpaceHandler(spaceRepo, spaceMirror)
		spaceRoutes := v1.Group("/parking-spaces")
		{
			spaceRoutes.GET("", spaceH.List)
			spaceRoutes.GET("/:id", spaceH.GetByID)
			spaceRoutes.POST("", authMw.AuthorizeRole("admin"), spaceH.Create)
			spaceRoutes.PUT("/:id/status", authMw.AuthorizeRole("admin", "staff"), spaceH.UpdateStatus)
			spaceRoutes.DELETE("/:id", authMw.AuthorizeRole("admin"), spaceH.Delete)
		}

		guestH := handler.NewGuestRequestHandler(gs)
		guestRoutes := v1.Group("/guest-requests")
		{
			guestRoutes.POST("", guestH.Submit)
			guestRoutes.GET("", guestH.List)
			guestRoutes.GET("/:id", guestH.GetByID)
			guestRoutes.GET("/verify/:token", authMw.AuthorizeRole("admin", "staff"), guestH.VerifyToken)
			guestRoutes.POST("/:id/approve", authMw.AuthorizeRole("admin", "staff"), guestH.Approve)
			guestRoutes.POST("/:id/decline", authMw.AuthorizeRole("admin", "staff"), guestH.Decline)
		}

		approvalH := handler.NewApprovalHandler(aps)
		approvalRoutes := v1.Group("/approvals")
		{
			approvalRoutes.GET("/pending", authMw.AuthorizeRole("admin"), approvalH.ListPending)
			approvalRoutes.POST("/:id/approve", authMw.AuthorizeRole("admin"), approvalH.Approve)
			approvalRoutes.POST("/:id/decline", authMw.AuthorizeRole("admin"), approvalH.Decline)
		}

		assistantH := handler.NewAssistantHandler(asst)
		assistantRoutes := v1.Group("/assistant")
		{
			assistantRoutes.POST("/chat", assistantH.Chat)
			assistantRoutes.GET("/context", assistantH.GetContext)
			assistantRoutes.PUT("/context", assistantH.UpdateContext)
			assistantRoutes.DELETE("/context", assistantH.ClearContext)
		}

		v1.DELETE("/users/:id", authMw.AuthorizeRole("admin"), authHandler.DeleteUser)
	}

	return r
}
