package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aglago/g-clients-sub000/internal/core"
	"github.com/aglago/g-clients-sub000/internal/middleware"
	"github.com/aglago/g-clients-sub000/internal/models"
)

// Services groups the core services the HTTP layer depends on.
type Services struct {
	Auth        core.AuthService
	Users       core.UserService
	Tracks      core.TrackService
	Courses     core.CourseService
	Enrollments core.EnrollmentService
	Invoices    core.InvoiceService
	Checkout    core.CheckoutService
	Dashboard   core.DashboardService
	Tokens      core.TokenIssuer
}

// SetupRoutes registers every route on router. Global middleware (logging, recovery, CORS)
// is expected to be attached by the caller.
func SetupRoutes(router *gin.Engine, svc Services, logger *zap.Logger) {
	authMW := middleware.NewAuthMiddleware(svc.Tokens, logger)
	requireAuth := authMW.VerifyToken()
	requireAdmin := authMW.RequireRole(models.RoleAdmin)

	checkoutHandler := NewCheckoutHandler(svc.Checkout, logger)
	authHandler := NewAuthHandler(svc.Auth, svc.Users, logger)
	catalogHandler := NewCatalogHandler(svc.Tracks, svc.Courses, logger)
	billingHandler := NewBillingHandler(svc.Invoices, logger)
	learnerHandler := NewLearnerHandler(svc.Users, svc.Enrollments, svc.Dashboard, logger)

	apiGroup := router.Group("/api")
	{
		checkout := apiGroup.Group("/checkout")
		{
			checkout.POST("/process", checkoutHandler.ProcessGuest)
			checkout.POST("/authenticated", requireAuth, checkoutHandler.ProcessAuthenticated)
		}

		auth := apiGroup.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/register-admin", authHandler.RegisterAdmin)
			auth.POST("/verify-email", authHandler.VerifyEmail)
			auth.POST("/resend-verification", authHandler.ResendVerification)
			auth.POST("/login", authHandler.Login)
			auth.POST("/forgot-password", authHandler.ForgotPassword)
			auth.POST("/reset-password", authHandler.ResetPassword)
			auth.PUT("/update-password", requireAuth, authHandler.UpdatePassword)
			auth.PUT("/update-user", requireAuth, authHandler.UpdateUser)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		apiGroup.GET("/tracks", catalogHandler.ListTracks)
		apiGroup.GET("/tracks/:slug", catalogHandler.GetTrackBySlug)
		apiGroup.GET("/courses", catalogHandler.ListCourses)

		portal := apiGroup.Group("/portal", requireAuth)
		{
			portal.GET("/enrollments", learnerHandler.MyEnrollments)
			portal.GET("/invoices", billingHandler.ListMine)
			portal.GET("/invoices/:invoiceId", billingHandler.GetMine)
			portal.POST("/invoices/:invoiceId/pay", checkoutHandler.PayInvoice)
		}

		admin := apiGroup.Group("/admin", requireAuth, requireAdmin)
		{
			admin.GET("/tracks", catalogHandler.ListTracks)
			admin.POST("/tracks", catalogHandler.CreateTrack)
			admin.GET("/tracks/:trackId", catalogHandler.GetTrack)
			admin.PUT("/tracks/:trackId", catalogHandler.UpdateTrack)
			admin.DELETE("/tracks/:trackId", catalogHandler.DeleteTrack)

			admin.GET("/courses", catalogHandler.ListCourses)
			admin.POST("/courses", catalogHandler.CreateCourse)
			admin.GET("/courses/:courseId", catalogHandler.GetCourse)
			admin.PUT("/courses/:courseId", catalogHandler.UpdateCourse)
			admin.DELETE("/courses/:courseId", catalogHandler.DeleteCourse)

			admin.GET("/learners", learnerHandler.ListLearners)
			admin.GET("/learners/:learnerId", learnerHandler.GetLearner)
			admin.DELETE("/learners/:learnerId", learnerHandler.DeleteLearner)

			admin.GET("/invoices", billingHandler.List)
			admin.POST("/invoices", billingHandler.Create)
			admin.GET("/invoices/:invoiceId", billingHandler.Get)
			admin.PATCH("/invoices/:invoiceId/status", billingHandler.UpdateStatus)

			admin.GET("/enrollments", learnerHandler.ListEnrollments)
			admin.PATCH("/enrollments/:enrollmentId", learnerHandler.UpdateEnrollment)

			admin.GET("/dashboard", learnerHandler.Dashboard)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "UP"})
	})

	logger.Info("API routes configured under /api and /health")
}
