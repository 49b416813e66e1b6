package authkit

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/instagate/internal/credentials"
	"github.com/tyemirov/instagate/internal/web"
	"go.uber.org/zap"
)

// UserView is the public projection of a Credential returned after login.
type UserView struct {
	ID              string `json:"id"`
	PlatformID      string `json:"platformId"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	ProfileImageURL string `json:"profileImageUrl"`
}

// NewUserView projects a Credential without its access token.
func NewUserView(credential credentials.Credential) UserView {
	return UserView{
		ID:              credential.ID,
		PlatformID:      credential.PlatformID,
		Username:        credential.Username,
		Name:            credential.DisplayName,
		ProfileImageURL: credential.ProfileImageURL,
	}
}

type callbackResponse struct {
	Success bool     `json:"success"`
	User    UserView `json:"user"`
	Token   string   `json:"token"`
}

// MountAuthRoutes registers /auth/instagram and /auth/callback.
func MountAuthRoutes(router gin.IRouter, exchanger *Exchanger, logger *zap.Logger) {
	if exchanger == nil {
		panic("exchanger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	router.GET("/auth/instagram", func(contextGin *gin.Context) {
		contextGin.JSON(http.StatusOK, gin.H{"authUrl": exchanger.AuthorizationURL()})
	})

	router.POST("/auth/callback", func(contextGin *gin.Context) {
		var inbound struct {
			Code string `json:"code"`
		}
		if err := contextGin.ShouldBindJSON(&inbound); err != nil {
			logger.Warn("callback body rejected",
				zap.String("code", "auth.callback.invalid_json"),
				zap.Error(err))
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Authorization code is required"})
			return
		}

		result, exchangeErr := exchanger.Exchange(contextGin.Request.Context(), inbound.Code)
		if exchangeErr != nil {
			var pipelineErr *ExchangeError
			if errors.As(exchangeErr, &pipelineErr) {
				logger.Error("oauth exchange failed",
					zap.String("code", "auth.callback.exchange_failed"),
					zap.String("step", pipelineErr.Step),
					zap.Error(pipelineErr))
				contextGin.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": pipelineErr.Message()})
				return
			}
			web.RespondError(contextGin, logger, exchangeErr, messageAuthenticationFailed)
			return
		}

		contextGin.JSON(http.StatusOK, callbackResponse{
			Success: true,
			User:    NewUserView(result.Credential),
			Token:   result.Token,
		})
	})
}
