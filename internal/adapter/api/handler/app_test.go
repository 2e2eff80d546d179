package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"oysloe/internal/adapter/api"
	"oysloe/internal/adapter/api/handler"
	"oysloe/internal/adapter/api/middleware"
	"oysloe/internal/adapter/api/router"
	memrepo "oysloe/internal/adapter/repository"
	"oysloe/internal/domain/entity"
	"oysloe/internal/infrastructure/auth"
	"oysloe/internal/infrastructure/queue"
	ws "oysloe/internal/infrastructure/websocket"
	"oysloe/internal/usecase"
)

type testApp struct {
	e       *echo.Echo
	store   *memrepo.MemoryStore
	jwt     *auth.JWTVerifier
	manager *ws.Manager
	queue   *queue.MemoryQueue
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memrepo.NewMemoryStore()
	store.PutUser(&entity.User{ID: "alice", Email: "alice@example.com", Name: "Alice", IsActive: true})
	store.PutUser(&entity.User{ID: "bob", Email: "bob@example.com", Name: "Bob", IsActive: true})
	store.PutUser(&entity.User{ID: "carol", Email: "carol@example.com", Name: "Carol", IsActive: true})
	store.PutUser(&entity.User{ID: "admin", Email: "admin@example.com", Name: "Staff", IsActive: true, IsStaff: true})
	store.PutProduct(&entity.Product{ID: "prod-1", PID: "P-001", Name: "Bicycle", Image: "bike.png"})

	manager := ws.NewManager(nil)
	hooks := usecase.NewEventHooks()
	q := queue.NewMemoryQueue(64)
	usecase.NewNotificationUseCase(store.Users(), store.Devices(), nil, nil, nil, q, "").Register(hooks)

	chat := usecase.NewChatUseCase(store.Rooms(), store.Messages(), store.Users(), store.Products(), manager, hooks, nil, usecase.ChatOptions{ScopeProduct: true})
	verifier := auth.NewJWTVerifier("test-secret", time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(verifier)

	handlers := handler.Handlers{
		Chat:      handler.NewChatHandler(chat),
		WebSocket: handler.NewWebSocketHandler(ws.NewGateway(manager, chat), authMiddleware, nil),
		Device:    handler.NewDeviceHandler(usecase.NewDeviceUseCase(store.Devices())),
		Alert:     handler.NewAlertHandler(usecase.NewAlertUseCase(store.Alerts(), store.Users(), hooks)),
		Health:    handler.NewHealthHandler(nil, nil, manager),
	}

	e := echo.New()
	e.Validator = api.NewValidator()
	router.Setup(e, handlers, authMiddleware, middleware.NewAdminMiddleware(store.Users()), nil)

	return &testApp{e: e, store: store, jwt: verifier, manager: manager, queue: q}
}

func (a *testApp) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := a.jwt.Issue(userID)
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func (a *testApp) do(t *testing.T, method, path, userID string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+a.token(t, userID))
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var env envelope
	if rec.Code != http.StatusSwitchingProtocols {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func decode(t *testing.T, raw json.RawMessage, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(raw, v))
}

func (a *testApp) openRoom(t *testing.T, userID, otherID string) string {
	t.Helper()
	rec, env := a.do(t, http.MethodPost, "/v1/chatrooms", userID, map[string]string{"user_id": otherID})
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, rec.Code)
	var res struct {
		RoomID string `json:"room_id"`
	}
	decode(t, env.Data, &res)
	return res.RoomID
}
