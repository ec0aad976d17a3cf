package relay_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/ghosttag/internal/relay"
	"github.com/annelo/ghosttag/internal/relay/wire"
)

func TestAdmin_RoomsAndKick(t *testing.T) {
	srv, cc := startRelay(t, 4)
	a := connect(t, cc, "alice")
	b := connect(t, cc, "bob")
	a.send(&wire.Frame{Op: wire.OpCreateRoom, Room: "r"})
	a.expect(wire.OpJoined)
	b.send(&wire.Frame{Op: wire.OpJoinRoom, Room: "r"})
	b.expect(wire.OpJoined)

	router := relay.NewAdminRouter(srv)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rooms []relay.RoomStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rooms))
	assert.Equal(t, []relay.RoomStatus{{Name: "r", Capacity: 4, Members: []string{a.id, b.id}, Host: a.id}}, rooms)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/peers/"+b.id+"?reason=afk", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "afk", b.expect(wire.OpShutdown).Error)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/peers/"+b.id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/vars", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relay_sessions")
}
