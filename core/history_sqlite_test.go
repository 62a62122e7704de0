package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMessages(f *BaseFixture, store HistoryStore, roomID string, n int) {
	for i := 1; i <= n; i++ {
		err := store.PersistMessage(f.ctx, Message{
			RoomID: roomID,
			Sender: "alice",
			Body:   []byte(`"hello"`),
			Seq:    int64(i),
			SentAt: time.Now().UTC(),
		})
		if err != nil {
			f.t.Fatal(err)
		}
	}
}

func TestPersistAndFetchHistory(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteHistoryStore(f.db)

	seedMessages(f, store, "history-room", 5)

	msgs, err := store.FetchHistory(f.ctx, "history-room", 0, 0)
	require.Nil(t, err)
	require.Len(t, msgs, 5)
	for i, msg := range msgs {
		assert.Equal(t, int64(i+1), msg.Seq, "history comes back in sequence order")
		assert.Equal(t, "alice", msg.Sender)
		assert.JSONEq(t, `"hello"`, string(msg.Body))
	}
}

func TestFetchHistoryAfterSeq(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteHistoryStore(f.db)

	seedMessages(f, store, "after-room", 10)

	msgs, err := store.FetchHistory(f.ctx, "after-room", 7, 0)
	require.Nil(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(8), msgs[0].Seq)

	msgs, err = store.FetchHistory(f.ctx, "after-room", 2, 3)
	require.Nil(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(3), msgs[0].Seq)
	assert.Equal(t, int64(5), msgs[2].Seq)
}

func TestFetchHistoryEmptyRoom(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteHistoryStore(f.db)

	msgs, err := store.FetchHistory(f.ctx, "no-such-room", 0, 0)
	require.Nil(t, err)
	assert.Empty(t, msgs)
}

func TestLastSeq(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteHistoryStore(f.db)

	last, err := store.LastSeq(f.ctx, "seq-room")
	require.Nil(t, err)
	assert.Zero(t, last, "a room with no history starts at zero")

	seedMessages(f, store, "seq-room", 42)

	last, err = store.LastSeq(f.ctx, "seq-room")
	require.Nil(t, err)
	assert.Equal(t, int64(42), last)
}

func TestPersistDuplicateSeq(t *testing.T) {
	f := NewBaseFixture(t)
	defer f.tearDown()
	store := NewSQLiteHistoryStore(f.db)

	msg := Message{RoomID: "dup-room", Sender: "alice", Body: []byte(`"x"`), Seq: 1, SentAt: time.Now().UTC()}
	require.Nil(t, store.PersistMessage(f.ctx, msg))
	assert.NotNil(t, store.PersistMessage(f.ctx, msg),
		"(room, seq) is the primary key")
}
