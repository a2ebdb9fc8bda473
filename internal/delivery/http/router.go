package http

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"ChainAcademy/internal/config"
	"ChainAcademy/internal/delivery/http/controllers"
	"ChainAcademy/internal/delivery/http/controllers/auth"
	"ChainAcademy/internal/delivery/http/controllers/course"
	"ChainAcademy/internal/delivery/http/controllers/enrollment"
	"ChainAcademy/internal/delivery/http/controllers/metrics"
	"ChainAcademy/internal/delivery/http/controllers/middleware"
	"ChainAcademy/internal/delivery/http/controllers/progress"
	"ChainAcademy/internal/models"
	"ChainAcademy/internal/service"
	"ChainAcademy/pkg/logger"
)

func InitRoutes(l logger.Log, cfg *config.Config, u service.Collection) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORS)))

	sessions := middleware.NewSessionManager(
		cfg.Session.Name,
		cfg.Session.Secret,
		cfg.Session.MaxAge,
		cfg.Session.Secure,
		cfg.Session.SameSite,
	)
	authProvider := middleware.NewAuthMiddlewareProvider(l, u.Auth, sessions)
	requireAuth := authProvider.AuthMiddleware

	statusController := controllers.NewStatusHandler(cfg.Env)
	authController := auth.NewAuthHandler(l, u.Auth, sessions)
	progressController := progress.NewProgressHandler(l, u.Progress)
	enrollmentController := enrollment.NewEnrollmentHandler(l, u.Enrollments)
	metricsController := metrics.NewMetricsHandler(l, u.Metrics)
	queryController := course.NewQueryHandler(l, u.Courses)
	managementController := course.NewManagementHandler(l, u.Courses)

	api := r.Group("/api", middleware.LoggingMiddleware(l))
	{
		api.GET("/status", statusController.Status)

		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authController.Register)
			authGroup.POST("/login", authController.Login)
			authGroup.POST("/logout", authController.Logout)
			authGroup.GET("/me", requireAuth, authController.Me)
		}

		progressGroup := api.Group("/progress", requireAuth)
		{
			progressGroup.GET("", progressController.ListProgress)
			progressGroup.POST("", progressController.SaveProgress)
		}

		enrollments := api.Group("/enrollments", requireAuth)
		{
			enrollments.GET("", enrollmentController.ListEnrollments)
			enrollments.GET("/progress", enrollmentController.EnrollmentProgress)
			enrollments.POST("", enrollmentController.Enroll)
		}

		api.GET("/user/metrics", requireAuth, metricsController.UserMetrics)

		courses := api.Group("/courses")
		{
			courses.GET("", queryController.ListCourses)
			courses.GET("/search", queryController.SearchCourses)
			courses.GET("/:course_id", queryController.CourseByID)
		}

		admin := api.Group("/admin", requireAuth, middleware.RequireRoles(models.AdminRole))
		{
			admin.POST("/courses/reindex", managementController.Reindex)
			admin.PUT("/courses/:course_id/logo", managementController.UploadCourseLogo)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	})
	return r
}

func corsConfig(cfg config.CORS) cors.Config {
	maxAge := cfg.MaxAge
	if maxAge == 0 {
		maxAge = 12 * time.Hour
	}
	return cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           maxAge,
	}
}
