package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/omeasupport/dispatch-service/api"
	"github.com/omeasupport/dispatch-service/internal/handler"
	"github.com/omeasupport/dispatch-service/internal/middleware"
	"github.com/omeasupport/dispatch-service/internal/model"
)

const (
	pathHealth  = "/health"
	pathReady   = "/ready"
	pathSwagger = "/swagger"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Ticket       *handler.TicketHandler
	Intervention *handler.InterventionHandler
	Report       *handler.ReportHandler
	Dashboard    *handler.DashboardHandler
	AuthGuard    *middleware.AuthMiddleware
	UploadDir    string
}

func New(h Handlers) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET(pathHealth, gin.WrapF(handler.Health))
	r.GET(pathReady, gin.WrapF(handler.Ready))
	r.GET(pathSwagger, func(c *gin.Context) { c.Redirect(http.StatusFound, pathSwagger+"/") })
	r.GET(pathSwagger+"/*any", func(c *gin.Context) {
		if strings.TrimPrefix(c.Param("any"), "/") == "openapi.json" {
			c.Data(http.StatusOK, "application/json", api.OpenAPISpec)
			return
		}
		if strings.TrimPrefix(c.Param("any"), "/") == "" {
			c.Request.URL.Path = pathSwagger + "/index.html"
			c.Request.RequestURI = pathSwagger + "/index.html"
		}
		ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/openapi.json"))(c)
	})

	if h.UploadDir != "" {
		r.Static("/uploads", h.UploadDir)
	}

	v1 := r.Group("/api/v1")

	v1.POST("/auth/register", h.Auth.Register)
	v1.POST("/auth/login", h.Auth.Login)

	authed := v1.Group("", h.AuthGuard.RequireAuth())
	{
		authed.GET("/auth/profile", h.Auth.Profile)
		authed.PUT("/auth/profile", h.Auth.UpdateProfile)
		authed.POST("/auth/change-password", h.Auth.ChangePassword)

		// Reads shared by both roles; the handlers scope by role.
		authed.GET("/tickets", h.Ticket.List)
		authed.GET("/tickets/:id", h.Ticket.Get)
	}

	client := v1.Group("", h.AuthGuard.RequireAuth(), h.AuthGuard.RequireRole(model.RoleClient))
	{
		client.POST("/tickets", h.Ticket.Create)
		client.DELETE("/tickets/:id", h.Ticket.Delete)
		client.PUT("/tickets/:id/reschedule", h.Ticket.Reschedule)
		client.GET("/tickets/:id/payment", h.Ticket.PaymentLink)
	}

	tech := v1.Group("", h.AuthGuard.RequireAuth(), h.AuthGuard.RequireRole(model.RoleTechnician))
	{
		tech.GET("/dashboard", h.Dashboard.Show)
		tech.POST("/tickets/:id/start", h.Intervention.Start)
		tech.POST("/tickets/:id/end", h.Intervention.End)
		tech.PUT("/tickets/:id/report", h.Report.Submit)
	}

	return r
}
