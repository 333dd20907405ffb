package routes

import (
	"vitalwatch/controllers"

	"github.com/gin-gonic/gin"
)

// SetupUserRoutes configures routes for the caller's own account
func SetupUserRoutes(router *gin.RouterGroup, userController *controllers.UserController) {
	users := router.Group("/users")
	{
		users.GET("/me", userController.GetMe)
		users.PUT("/me/device-token", userController.UpdateDeviceToken)
		users.PUT("/me/notification-preferences", userController.UpdateNotificationPreferences)
		users.GET("/:userId", userController.GetUser)
	}
}
