package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mkraev/inkwell/config"
	"github.com/mkraev/inkwell/controllers"
	"github.com/mkraev/inkwell/middleware"
	"github.com/mkraev/inkwell/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, store utils.Cache) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Access log and panic recovery through zap; fall back to the default
	// recovery when the rolling file cannot be opened.
	if gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress); err == nil {
		r.Use(utils.GinLogger(gl))
		r.Use(utils.GinRecovery(gl))
	} else {
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	// Record page views after each request
	r.Use(middleware.PageViewRecorder(db))

	r.Static("/static", "./static")

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	postController := controllers.NewPostController(db, store)
	followController := controllers.NewFollowController(db)
	adminController := controllers.NewAdminController(db, store)
	statsController := controllers.NewStatsController(db)

	// Public listings
	r.GET("/", postController.Index)
	r.GET("/group/:slug/", postController.GroupList)
	r.GET("/profile/:username/", middleware.Identify(), postController.Profile)
	r.GET("/posts/:id/", postController.Detail)
	r.GET("/stats/", statsController.GetStats)

	// Auth plumbing
	auth := r.Group("/auth")
	auth.Use(middleware.RateLimitMiddleware())
	auth.GET("/login/", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"message": "login required", "next": ctx.Query("next")})
	})
	auth.POST("/login/", authController.Login)
	auth.POST("/register/", authController.Register)
	auth.POST("/logout/", middleware.LoginRequired(), authController.Logout)
	auth.GET("/me/", middleware.LoginRequired(), authController.Me)

	// Authenticated mutations. Unauthenticated access redirects to the
	// login page with the original target in the next parameter.
	protected := r.Group("")
	protected.Use(middleware.LoginRequired(), middleware.RateLimitMiddleware())
	protected.POST("/create/", postController.Create)
	protected.POST("/posts/:id/edit/", postController.Edit)
	protected.POST("/posts/:id/comment/", postController.AddComment)
	protected.GET("/follow/", followController.Feed)
	protected.POST("/profile/:username/follow/", followController.Follow)
	protected.POST("/profile/:username/unfollow/", followController.Unfollow)
	protected.POST("/upload/", postController.UploadImage)

	// Administrative surface
	admin := r.Group("/admin")
	admin.Use(middleware.LoginRequired(), middleware.AdminRequired())
	admin.POST("/groups/", adminController.CreateGroup)
	admin.PUT("/groups/:slug/", adminController.UpdateGroup)
	admin.DELETE("/groups/:slug/", adminController.DeleteGroup)
	admin.DELETE("/posts/:id/", adminController.DeletePost)
	admin.DELETE("/users/:id/", adminController.DeleteUser)
	admin.POST("/cache/clear/", adminController.ClearCache)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "page not found")
	})

	return r
}
