package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

func newTestRouter(t *testing.T, gateway *Gateway) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api")
	logger := zaptest.NewLogger(t)
	MountMediaRoutes(api, gateway, logger)
	MountUserRoutes(api, gateway, logger)
	return router
}

func decodeErrorMessage(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body %q: %v", recorder.Body.String(), err)
	}
	message, _ := payload["error"].(string)
	return message
}

func TestMediaRoutesRequireToken(t *testing.T) {
	fake, client := newFakeGraph(t, nil)
	router := newTestRouter(t, New(seededStore(t), client))

	testCases := []struct {
		name   string
		method string
		target string
	}{
		{name: "feed", method: http.MethodGet, target: "/api/media/feed"},
		{name: "comments", method: http.MethodGet, target: "/api/media/m1/comments"},
		{name: "comment", method: http.MethodPost, target: "/api/media/m1/comment"},
		{name: "reply", method: http.MethodPost, target: "/api/media/c1/reply"},
		{name: "profile", method: http.MethodGet, target: "/api/user/profile"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(testCase.method, testCase.target, nil)
			router.ServeHTTP(recorder, request)
			if recorder.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", recorder.Code)
			}
			if message := decodeErrorMessage(t, recorder); message != messageMissingToken {
				t.Fatalf("expected %q, got %q", messageMissingToken, message)
			}
		})
	}
	if fake.callCount() != 0 {
		t.Fatalf("expected no graph calls, got %d", fake.callCount())
	}
}

func TestFeedRouteAcceptsTokenSources(t *testing.T) {
	_, client := newFakeGraph(t, map[string]cannedResponse{
		"GET /v19.0/biz1/media": {status: http.StatusOK, body: `{"data":[]}`},
	})
	router := newTestRouter(t, New(seededStore(t), client))

	headerRecorder := httptest.NewRecorder()
	headerRequest := httptest.NewRequest(http.MethodGet, "/api/media/feed", nil)
	headerRequest.Header.Set("Authorization", "Bearer long1")
	router.ServeHTTP(headerRecorder, headerRequest)
	if headerRecorder.Code != http.StatusOK {
		t.Fatalf("header token: expected 200, got %d: %s", headerRecorder.Code, headerRecorder.Body.String())
	}
	if headerRecorder.Body.String() != `{"data":[]}` {
		t.Fatalf("expected raw passthrough, got %s", headerRecorder.Body.String())
	}

	queryRecorder := httptest.NewRecorder()
	router.ServeHTTP(queryRecorder, httptest.NewRequest(http.MethodGet, "/api/media/feed?token=long1&limit=5", nil))
	if queryRecorder.Code != http.StatusOK {
		t.Fatalf("query token: expected 200, got %d", queryRecorder.Code)
	}
}

func TestFeedRouteRejectsInvalidLimit(t *testing.T) {
	fake, client := newFakeGraph(t, nil)
	router := newTestRouter(t, New(seededStore(t), client))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/media/feed?limit=abc", nil)
	request.Header.Set("Authorization", "Bearer long1")
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if fake.callCount() != 0 {
		t.Fatalf("expected no graph calls")
	}
}

func TestFeedRouteUnknownToken(t *testing.T) {
	_, client := newFakeGraph(t, nil)
	router := newTestRouter(t, New(seededStore(t), client))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/media/feed", nil)
	request.Header.Set("Authorization", "Bearer stranger")
	router.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	if message := decodeErrorMessage(t, recorder); message != messageUnknownToken {
		t.Fatalf("expected %q, got %q", messageUnknownToken, message)
	}
}

func TestCommentRouteReadsTokenAndMessageFromBody(t *testing.T) {
	fake, client := newFakeGraph(t, map[string]cannedResponse{
		"POST /v19.0/m1/comments": {status: http.StatusOK, body: `{"id":"c9"}`},
	})
	router := newTestRouter(t, New(seededStore(t), client))

	body, _ := json.Marshal(map[string]string{"token": "long1", "message": "lovely"})
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/media/m1/comment", bytes.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder.Body.String() != `{"id":"c9"}` {
		t.Fatalf("unexpected body %s", recorder.Body.String())
	}
	if got := fake.lastCall(t).body["message"]; got != "lovely" {
		t.Fatalf("expected message upstream, got %q", got)
	}
}

func TestReplyRouteMissingMessage(t *testing.T) {
	fake, client := newFakeGraph(t, nil)
	router := newTestRouter(t, New(seededStore(t), client))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/media/c1/reply", bytes.NewReader([]byte(`{}`)))
	request.Header.Set("Authorization", "Bearer long1")
	request.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if message := decodeErrorMessage(t, recorder); message != messageMissingMessage {
		t.Fatalf("expected %q, got %q", messageMissingMessage, message)
	}
	if fake.callCount() != 0 {
		t.Fatalf("expected no graph calls")
	}
}

func TestProfileRouteInvalidInstagramToken(t *testing.T) {
	_, client := newFakeGraph(t, map[string]cannedResponse{
		"GET /v19.0/biz1": {status: http.StatusBadRequest, body: `{"error":{"message":"Error validating access token","code":190}}`},
	})
	router := newTestRouter(t, New(seededStore(t), client))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	request.Header.Set("Authorization", "Bearer long1")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", recorder.Code)
	}
	var payload struct {
		Error   string `json:"error"`
		Details struct {
			Code int `json:"code"`
		} `json:"details"`
	}
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Error != messageInvalidToken || payload.Details.Code != 190 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestProfileRouteSuccess(t *testing.T) {
	_, client := newFakeGraph(t, map[string]cannedResponse{
		"GET /v19.0/biz1": {status: http.StatusOK, body: `{"id":"biz1","username":"alice","name":"Alice","followers_count":3}`},
	})
	router := newTestRouter(t, New(seededStore(t), client))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	request.Header.Set("Authorization", "Bearer long1")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	var profile Profile
	if err := json.Unmarshal(recorder.Body.Bytes(), &profile); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if profile.PlatformID != "biz1" || profile.FollowerCount != 3 || profile.Name != "Alice" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}
