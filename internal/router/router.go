package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/enrollment-backend/internal/config"
	"github.com/stemsi/enrollment-backend/internal/handler"
	"github.com/stemsi/enrollment-backend/internal/middleware"
	"github.com/stemsi/enrollment-backend/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	Course       *handler.CourseHandler
	Student      *handler.StudentHandler
	Registration *handler.RegistrationHandler
	WS           *handler.WSHandler
	System       *handler.SystemHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	tokens middleware.TokenValidator,
	registerLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Request ID first so access log lines and envelopes share it.
	router.Use(response.RequestIDMiddleware())
	router.Use(response.AccessLogMiddleware(log))
	router.Use(middleware.Brotli())

	// Health check.
	router.GET("/health", handlers.System.Health)

	api := router.Group("/api/v1")
	api.Use(middleware.NoStore(), middleware.RequireJWT(tokens))
	admin := middleware.RequireAdmin()

	// ─── 1. Courses ────────────────────────────────────────────────────
	courses := api.Group("/courses")
	{
		courses.GET("", handlers.Course.ListCourses)
		courses.GET("/available", handlers.Course.ListAvailableCourses)
		courses.GET("/:id", handlers.Course.GetCourse)
		courses.POST("", admin, handlers.Course.CreateCourse)
		courses.DELETE("/:id", admin, handlers.Course.DeleteCourse)
		courses.GET("/:id/registrations", admin, handlers.Course.ListCourseRegistrations)
	}

	// ─── 2. Students ───────────────────────────────────────────────────
	students := api.Group("/students")
	{
		students.POST("", admin, handlers.Student.CreateStudent)
		students.GET("", admin, handlers.Student.ListStudents)
		students.GET("/:id", middleware.RequireSelfOrAdmin("id"), handlers.Student.GetStudent)
		students.DELETE("/:id", admin, handlers.Student.DeleteStudent)
	}

	// ─── 3. Registrations ──────────────────────────────────────────────
	// Ownership of the student_id in the body is checked by the handler.
	registrations := api.Group("/registrations")
	{
		registrations.POST("", registerLimiter.Middleware(), handlers.Registration.Register)
		registrations.GET("", admin, handlers.Registration.ListRegistrations)
		registrations.DELETE("/:id", handlers.Registration.CancelRegistration)
	}

	// ─── 4. WebSocket (public seat stream) ─────────────────────────────
	ws := router.Group("/ws/v1")
	{
		ws.GET("/courses/:id/seats", handlers.WS.CourseSeatStream)
	}

	return router
}
