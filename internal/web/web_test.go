package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/instagate/internal/apperrors"
	"github.com/tyemirov/instagate/internal/graphapi"
	"go.uber.org/zap/zaptest"
)

func TestConfigureCORSExplicitOrigins(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware, err := ConfigureCORS(zaptest.NewLogger(t), []string{"http://localhost:5173", "http://localhost:5173/"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router.Use(middleware)
	router.GET("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodOptions, "/resource", nil)
	request.Header.Set("Origin", "http://localhost:5173")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)
	request.Header.Set("Access-Control-Request-Headers", "Authorization")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from preflight, got %d", recorder.Code)
	}
	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:5173" {
		t.Fatalf("unexpected allowed origin header: %q", origin)
	}
}

func TestConfigureCORSWildcard(t *testing.T) {
	t.Parallel()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	middleware, err := ConfigureCORS(nil, []string{"*"})
	if err != nil {
		t.Fatalf("unexpected error configuring CORS: %v", err)
	}
	router.Use(middleware)
	router.GET("/resource", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/resource", nil)
	request.Header.Set("Origin", "https://anywhere.example")
	router.ServeHTTP(recorder, request)

	if origin := recorder.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Fatalf("expected wildcard allowed origin, got %q", origin)
	}
}

func TestConfigureCORSRejectsInvalidOrigins(t *testing.T) {
	testCases := [][]string{
		nil,
		{"  "},
		{"localhost:3000"},
		{"https://app.example/path"},
		{"ftp://app.example"},
		{"https://app.example?x=1"},
	}
	for _, origins := range testCases {
		if _, err := ConfigureCORS(nil, origins); err == nil {
			t.Fatalf("expected error for origins %v", origins)
		}
	}
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "invalid request", err: apperrors.InvalidRequest("Message is required"), expected: http.StatusBadRequest},
		{name: "unauthenticated", err: apperrors.Unauthenticated("Invalid token - user not found", nil, nil), expected: http.StatusUnauthorized},
		{name: "upstream", err: &graphapi.UpstreamError{Status: http.StatusBadGateway, Message: "Bad Gateway"}, expected: http.StatusInternalServerError},
		{name: "plain", err: errors.New("boom"), expected: http.StatusInternalServerError},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if status := StatusFor(testCase.err); status != testCase.expected {
				t.Fatalf("expected %d, got %d", testCase.expected, status)
			}
		})
	}
}

func TestRespondErrorRendersUpstreamDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/feed", func(contextGin *gin.Context) {
		RespondError(contextGin, zaptest.NewLogger(t), &graphapi.UpstreamError{
			Status:  http.StatusForbidden,
			Code:    10,
			Message: "Application does not have permission for this action",
		}, "Error fetching media feed")
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/feed", nil))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
	var payload struct {
		Error   string `json:"error"`
		Details struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"details"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error != "Error fetching media feed" {
		t.Fatalf("unexpected error message %q", payload.Error)
	}
	if payload.Details.Code != 10 || payload.Details.Message == "" {
		t.Fatalf("expected upstream details, got %+v", payload.Details)
	}
}

func TestRespondErrorRendersTaxonomyMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/feed", func(contextGin *gin.Context) {
		RespondError(contextGin, nil, apperrors.Unauthenticated("Invalid token - user not found", nil, nil), "Error fetching media feed")
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/feed", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload["error"] != "Invalid token - user not found" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, hasDetails := payload["details"]; hasDetails {
		t.Fatalf("did not expect details in payload %v", payload)
	}
}

func TestHandleStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/", HandleStatus("instagate"))
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if recorder.Body.String() != `{"message":"instagate API is running"}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
}
