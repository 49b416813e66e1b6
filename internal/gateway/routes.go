package gateway

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/web"
	"go.uber.org/zap"
)

const jsonContentType = "application/json; charset=utf-8"

type messageBody struct {
	Message string `json:"message"`
}

// MountMediaRoutes registers the feed, comment listing, comment, and reply routes.
func MountMediaRoutes(router gin.IRouter, gateway *Gateway, logger *zap.Logger) {
	if gateway == nil {
		panic("gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	media := router.Group("/media")
	media.Use(RequireBearerToken(logger))

	media.GET("/feed", func(contextGin *gin.Context) {
		limit, limitErr := parseLimit(contextGin.Query("limit"))
		if limitErr != nil {
			web.RespondError(contextGin, logger, limitErr, "Error fetching media feed")
			return
		}
		raw, err := gateway.GetFeed(contextGin.Request.Context(), bearerToken(contextGin), limit)
		if err != nil {
			web.RespondError(contextGin, logger, err, "Error fetching media feed")
			return
		}
		writeRaw(contextGin, raw)
	})

	media.GET("/:id/comments", func(contextGin *gin.Context) {
		raw, err := gateway.GetComments(contextGin.Request.Context(), contextGin.Param("id"), bearerToken(contextGin))
		if err != nil {
			web.RespondError(contextGin, logger, err, "Error fetching comments")
			return
		}
		writeRaw(contextGin, raw)
	})

	media.POST("/:id/comment", func(contextGin *gin.Context) {
		inbound := bindMessage(contextGin)
		raw, err := gateway.AddComment(contextGin.Request.Context(), contextGin.Param("id"), inbound.Message, bearerToken(contextGin))
		if err != nil {
			web.RespondError(contextGin, logger, err, "Error posting comment")
			return
		}
		writeRaw(contextGin, raw)
	})

	media.POST("/:id/reply", func(contextGin *gin.Context) {
		inbound := bindMessage(contextGin)
		raw, err := gateway.ReplyToComment(contextGin.Request.Context(), contextGin.Param("id"), inbound.Message, bearerToken(contextGin))
		if err != nil {
			web.RespondError(contextGin, logger, err, "Error posting reply")
			return
		}
		writeRaw(contextGin, raw)
	})
}

// MountUserRoutes registers /user/profile.
func MountUserRoutes(router gin.IRouter, gateway *Gateway, logger *zap.Logger) {
	if gateway == nil {
		panic("gateway is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	router.GET("/user/profile", RequireBearerToken(logger), func(contextGin *gin.Context) {
		profile, err := gateway.GetProfile(contextGin.Request.Context(), bearerToken(contextGin))
		if err != nil {
			web.RespondError(contextGin, logger, err, "Server error retrieving profile")
			return
		}
		contextGin.JSON(http.StatusOK, profile)
	})
}

// bindMessage reads the message field; a missing or malformed body yields an empty message.
func bindMessage(contextGin *gin.Context) messageBody {
	var inbound messageBody
	_ = contextGin.ShouldBindBodyWith(&inbound, binding.JSON)
	return inbound
}

func parseLimit(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(trimmed)
	if err != nil || limit <= 0 {
		return 0, apperrors.InvalidRequest("limit must be a positive integer")
	}
	return limit, nil
}

func writeRaw(contextGin *gin.Context, raw json.RawMessage) {
	contextGin.Data(http.StatusOK, jsonContentType, raw)
}
