package handler_test

import (
	"context"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oysloe/internal/domain/entity"
	apperrors "oysloe/pkg/errors"
)

type roomResolution struct {
	RoomID  string `json:"room_id"`
	Created bool   `json:"created"`
	Product *struct {
		Name  string `json:"name"`
		Image string `json:"image"`
	} `json:"product"`
	ProductError string `json:"product_error"`
}

func TestOpenRoomCreatesThenReuses(t *testing.T) {
	app := newTestApp(t)

	rec, env := app.do(t, http.MethodPost, "/v1/chatrooms", "alice", map[string]string{"user_id": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var first roomResolution
	decode(t, env.Data, &first)
	assert.True(t, first.Created)
	assert.NotEmpty(t, first.RoomID)

	rec, env = app.do(t, http.MethodPost, "/v1/chatrooms", "bob", map[string]string{"email": "alice@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)
	var second roomResolution
	decode(t, env.Data, &second)
	assert.False(t, second.Created)
	assert.Equal(t, first.RoomID, second.RoomID)

	rec, env = app.do(t, http.MethodGet, "/v1/chatrooms/lookup?email=bob@example.com", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var third roomResolution
	decode(t, env.Data, &third)
	assert.Equal(t, first.RoomID, third.RoomID)
}

func TestLookupWithProductContext(t *testing.T) {
	app := newTestApp(t)

	rec, env := app.do(t, http.MethodGet, "/v1/chatrooms/lookup?user_id=bob&product_id=P-001", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var res roomResolution
	decode(t, env.Data, &res)
	assert.True(t, res.Created)
	require.NotNil(t, res.Product)
	assert.Equal(t, "Bicycle", res.Product.Name)

	rec, env = app.do(t, http.MethodGet, "/v1/chatrooms/lookup?user_id=bob&product_id=nope", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var missing roomResolution
	decode(t, env.Data, &missing)
	assert.Equal(t, "product not found", missing.ProductError)
	assert.NotEqual(t, res.RoomID, missing.RoomID)
}

func TestOpenRoomValidation(t *testing.T) {
	app := newTestApp(t)

	rec, env := app.do(t, http.MethodPost, "/v1/chatrooms", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, apperrors.CodeInvalidRequest, env.Error.Code)

	rec, env = app.do(t, http.MethodPost, "/v1/chatrooms", "alice", map[string]string{"user_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperrors.CodeInvalidRequest, env.Error.Code)

	rec, env = app.do(t, http.MethodPost, "/v1/chatrooms", "alice", map[string]string{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, env.Error.Code)
}

func TestChatRoutesRequireAuthentication(t *testing.T) {
	app := newTestApp(t)

	rec, env := app.do(t, http.MethodGet, "/v1/chatrooms", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, apperrors.CodeUnauthorized, env.Error.Code)
}

func TestSendAndReadMessages(t *testing.T) {
	app := newTestApp(t)
	roomID := app.openRoom(t, "alice", "bob")

	for _, text := range []string{"first", "second", "third"} {
		rec, _ := app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/messages", "bob", map[string]string{"message": text})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec, env := app.do(t, http.MethodGet, "/v1/chatrooms/"+roomID+"/messages?limit=2&offset=1", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []*entity.Message `json:"items"`
		Total int64             `json:"total"`
	}
	decode(t, env.Data, &page)
	assert.EqualValues(t, 3, page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "second", page.Items[0].Content)
	assert.Equal(t, "third", page.Items[1].Content)

	rec, env = app.do(t, http.MethodGet, "/v1/chatrooms/unread-count", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count struct {
		Count int `json:"count"`
	}
	decode(t, env.Data, &count)
	assert.Equal(t, 3, count.Count)

	rec, env = app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/mark-read", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var marked struct {
		Updated int `json:"updated"`
	}
	decode(t, env.Data, &marked)
	assert.Equal(t, 3, marked.Updated)

	rec, env = app.do(t, http.MethodGet, "/v1/chatrooms/"+roomID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		RoomID      string `json:"room_id"`
		UnreadCount int    `json:"unread_count"`
	}
	decode(t, env.Data, &detail)
	assert.Equal(t, roomID, detail.RoomID)
	assert.Zero(t, detail.UnreadCount)

	// Each sent message was queued for notification without waiting on delivery.
	assert.Equal(t, 3, app.queue.Len())
}

func TestSendMessageNeedsContent(t *testing.T) {
	app := newTestApp(t)
	roomID := app.openRoom(t, "alice", "bob")

	rec, env := app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/messages", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error.Details, "message")

	rec, _ = app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/messages", "alice", map[string]interface{}{"is_media": true})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestNonMemberIsForbidden(t *testing.T) {
	app := newTestApp(t)
	roomID := app.openRoom(t, "alice", "bob")

	rec, env := app.do(t, http.MethodGet, "/v1/chatrooms/"+roomID+"/messages", "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)

	rec, env = app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/messages", "carol", map[string]string{"message": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.CodeNotAMember, env.Error.Code)
}

func TestClosedRoomRejectsSends(t *testing.T) {
	app := newTestApp(t)
	roomID := app.openRoom(t, "alice", "bob")

	rec, _ := app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/close", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := app.do(t, http.MethodPost, "/v1/chatrooms/"+roomID+"/messages", "bob", map[string]string{"message": "hello?"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, apperrors.CodeRoomClosed, env.Error.Code)

	rec, _ = app.do(t, http.MethodGet, "/v1/chatrooms/"+roomID+"/messages", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeletedRoomDisappears(t *testing.T) {
	app := newTestApp(t)
	roomID := app.openRoom(t, "alice", "bob")

	rec, _ := app.do(t, http.MethodDelete, "/v1/chatrooms/"+roomID, "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := app.do(t, http.MethodGet, "/v1/chatrooms/"+roomID, "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeRoomDeleted, env.Error.Code)

	rec, env = app.do(t, http.MethodGet, "/v1/chatrooms", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))
}

func TestSaveFCMTokenReplacesOthersByDefault(t *testing.T) {
	app := newTestApp(t)

	rec, _ := app.do(t, http.MethodPost, "/v1/notifications/save-fcm-token", "alice", map[string]interface{}{"token": "tablet", "replace_other_tokens": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = app.do(t, http.MethodPost, "/v1/notifications/save-fcm-token", "alice", map[string]interface{}{"token": "phone", "replace_other_tokens": false})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = app.do(t, http.MethodPost, "/v1/notifications/save-fcm-token", "alice", map[string]string{"token": "new-phone"})
	require.Equal(t, http.StatusOK, rec.Code)

	devices, err := app.store.Devices().ListByUser(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "new-phone", devices[0].Token)

	// The same token registered by another user moves to them.
	rec, _ = app.do(t, http.MethodPost, "/v1/notifications/save-fcm-token", "bob", map[string]string{"token": "new-phone"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, env := app.do(t, http.MethodGet, "/v1/notifications/devices", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", string(env.Data))

	rec, _ = app.do(t, http.MethodDelete, "/v1/notifications/devices/new-phone", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = app.do(t, http.MethodDelete, "/v1/notifications/devices/new-phone", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminAlertsRequireStaff(t *testing.T) {
	app := newTestApp(t)
	body := map[string]string{"user_id": "bob", "title": "Listing approved", "body": "Your bike is live", "kind": "listing"}

	rec, env := app.do(t, http.MethodPost, "/v1/admin/alerts", "alice", body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, apperrors.CodeForbidden, env.Error.Code)

	rec, env = app.do(t, http.MethodPost, "/v1/admin/alerts", "admin", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created entity.Alert
	decode(t, env.Data, &created)
	assert.Equal(t, "bob", created.UserID)
	assert.Equal(t, 1, app.queue.Len())

	rec, env = app.do(t, http.MethodGet, "/v1/alerts", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page struct {
		Items []entity.Alert `json:"items"`
		Total int64          `json:"total"`
	}
	decode(t, env.Data, &page)
	assert.EqualValues(t, 1, page.Total)

	rec, _ = app.do(t, http.MethodPost, "/v1/alerts/abc/mark-read", "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = app.do(t, http.MethodPost, "/v1/alerts/"+strconv.FormatInt(created.ID, 10)+"/mark-read", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = app.do(t, http.MethodPost, "/v1/alerts/"+strconv.FormatInt(created.ID, 10)+"/mark-read", "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = app.do(t, http.MethodDelete, "/v1/alerts/"+strconv.FormatInt(created.ID, 10), "bob", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	rec, _ := app.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"memory"`)
}
