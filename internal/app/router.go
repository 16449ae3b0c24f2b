package app

import (
	"course_homework_backend/docs"
	"course_homework_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	api.GET("/health", c.health.HealthCheck)

	pset := api.Group("/homework/courses/:courseId/problemsets/:psetId")
	{
		pset.GET("/report", c.homework.GetReport)
		pset.GET("/metadata", c.homework.GetProblemsetMetadata)

		question := pset.Group("/questions/:questionId")
		question.POST("/check", c.homework.CheckAnswer)
		question.GET("/answer", c.homework.GetAnswer)
		question.PUT("/answer-key", c.homework.SetAnswerKey)
	}
}
