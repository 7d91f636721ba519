package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-account-service/http/controller"
	middlewares "github.com/tnqbao/gau-account-service/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)

	apiRoutes := r.Group("/api/v1/account")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		deletionRoutes := apiRoutes.Group("/deletion")
		{
			deletionRoutes.POST("/", ctrl.RequestDeletion)
			deletionRoutes.GET("/", ctrl.ListDeletionJobs)
			deletionRoutes.GET("/:job_id", ctrl.GetDeletionStatus)
			deletionRoutes.POST("/:job_id/snapshot", ctrl.GenerateSnapshot)
			deletionRoutes.GET("/:job_id/snapshot/download", ctrl.DownloadSnapshot)
			deletionRoutes.POST("/:job_id/acknowledge", ctrl.AcknowledgeSnapshot)
			deletionRoutes.POST("/:job_id/confirm", ctrl.ConfirmDeletion)
		}
	}
	return r
}
