package gateway

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/web"
	"go.uber.org/zap"
)

const (
	bearerTokenContextKey = "bearer_token"
	bearerPrefix          = "Bearer "
	tokenParameter        = "token"
)

// ExtractBearerToken reads the token from the Authorization header, then the token query parameter,
// then a token field in a JSON body. The body stays readable through ShouldBindBodyWith.
func ExtractBearerToken(contextGin *gin.Context) string {
	authorization := contextGin.GetHeader("Authorization")
	if strings.HasPrefix(authorization, bearerPrefix) {
		if token := strings.TrimSpace(authorization[len(bearerPrefix):]); token != "" {
			return token
		}
	}
	if token := strings.TrimSpace(contextGin.Query(tokenParameter)); token != "" {
		return token
	}
	if contextGin.Request.Method == http.MethodPost && contextGin.Request.Body != nil {
		var inbound struct {
			Token string `json:"token"`
		}
		if err := contextGin.ShouldBindBodyWith(&inbound, binding.JSON); err == nil {
			return strings.TrimSpace(inbound.Token)
		}
	}
	return ""
}

// RequireBearerToken aborts with 401 when no token is presented and injects it otherwise.
func RequireBearerToken(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(contextGin *gin.Context) {
		token := ExtractBearerToken(contextGin)
		if token == "" {
			web.RespondError(contextGin, logger, apperrors.Unauthenticated(messageMissingToken, nil, nil), messageMissingToken)
			return
		}
		contextGin.Set(bearerTokenContextKey, token)
		contextGin.Next()
	}
}

func bearerToken(contextGin *gin.Context) string {
	return contextGin.GetString(bearerTokenContextKey)
}
