package lobby_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/ghosttag/internal/lobby"
)

func TestLobby_CreateJoinLeave(t *testing.T) {
	l := lobby.New(3)

	name, err := l.Create("arena", "a")
	require.NoError(t, err)
	assert.Equal(t, "arena", name)
	assert.Equal(t, "a", l.Host("arena"))

	members, err := l.Join("arena", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)
	_, err = l.Join("arena", "c")
	require.NoError(t, err)

	_, err = l.Join("arena", "d")
	assert.ErrorIs(t, err, lobby.ErrRoomFull)

	room, host, remaining, err := l.Leave("a")
	require.NoError(t, err)
	assert.Equal(t, "arena", room)
	assert.Equal(t, "b", host, "earliest remaining member becomes host")
	assert.Equal(t, []string{"b", "c"}, remaining)

	_, _, _, err = l.Leave("b")
	require.NoError(t, err)
	_, host, remaining, err = l.Leave("c")
	require.NoError(t, err)
	assert.Empty(t, host)
	assert.Empty(t, remaining)
	assert.Empty(t, l.List(), "empty rooms are removed")
}

func TestLobby_Errors(t *testing.T) {
	l := lobby.New(0)

	_, err := l.Join("nope", "a")
	assert.ErrorIs(t, err, lobby.ErrRoomNotFound)

	_, err = l.Create("x", "a")
	require.NoError(t, err)
	_, err = l.Create("x", "b")
	assert.ErrorIs(t, err, lobby.ErrRoomExists)
	_, err = l.Create("y", "a")
	assert.ErrorIs(t, err, lobby.ErrAlreadyInRoom)

	_, _, _, err = l.Leave("b")
	assert.ErrorIs(t, err, lobby.ErrNotInRoom)
}

func TestLobby_GeneratedNameAndListing(t *testing.T) {
	l := lobby.New(0)
	name, err := l.Create("", "a")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "room-"))

	_, err = l.Create("alpha", "b")
	require.NoError(t, err)

	list := l.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, lobby.DefaultCapacity, list[0].Capacity)
	assert.Equal(t, 1, list[1].Members)

	got, ok := l.RoomOf("b")
	assert.True(t, ok)
	assert.Equal(t, "alpha", got)
}
