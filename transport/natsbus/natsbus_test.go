package natsbus

import (
	"context"
	"sync"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jazi007/oxidros-sub001/transport"
)

func TestSubject(t *testing.T) {
	tests := []struct {
		key, want string
	}{
		{"0/chatter/std_msgs::msg::dds_::String_/RIHS01_df66", "0.chatter.std_msgs::msg::dds_::String_.RIHS01_df66"},
		{"0/chatter/std_msgs::msg::dds_::String_/*", "0.chatter.std_msgs::msg::dds_::String_.*"},
		{"@ros2_lv/0/**", "@ros2_lv.0.>"},
		{"0/ns/topic/T/%", "0.ns.topic.T.%"},
	}
	for _, tt := range tests {
		got, err := Subject(tt.key)
		require.NoError(t, err, tt.key)
		assert.Equal(t, tt.want, got)
		if !transport.IsWild(tt.key) {
			assert.Equal(t, tt.key, Key(got))
		}
	}

	for _, bad := range []string{"a/**/b", "a/b.c", "a/b c", "", "a//b"} {
		_, err := Subject(bad)
		assert.ErrorIs(t, err, transport.ErrInvalidKey, bad)
	}
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.applyDefaults()
	assert.Equal(t, nats.DefaultURL, c.URL)
	assert.Equal(t, 5*time.Second, c.ConnectTimeout)
	assert.Equal(t, 50*time.Millisecond, c.QueryLinger)
	assert.Equal(t, 200*time.Millisecond, c.DiscoveryWait)
	assert.NotNil(t, c.Logger)

	c = Config{URL: "nats://example:4222", QueryLinger: time.Second}.applyDefaults()
	assert.Equal(t, "nats://example:4222", c.URL)
	assert.Equal(t, time.Second, c.QueryLinger)
}

func TestAttachmentHeader(t *testing.T) {
	m := newMsg("rosz.d.k", "k", []byte("data"), []byte{1, 2, 3})
	assert.Equal(t, []byte{1, 2, 3}, attachmentOf(m))
	s := sampleOf(m, dataPrefix)
	assert.Equal(t, "k", s.Key)
	assert.Equal(t, []byte("data"), s.Payload)

	bare := nats.NewMsg("rosz.d.a.b")
	assert.Nil(t, attachmentOf(bare))
	assert.Equal(t, "a/b", sampleOf(bare, dataPrefix).Key)

	status := nats.NewMsg("_INBOX.x")
	status.Header.Set("Status", "503")
	assert.True(t, isNoResponders(status))
	assert.False(t, isNoResponders(m))
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect(Config{URL: "nats://127.0.0.1:1", ConnectTimeout: 100 * time.Millisecond,
		Options: []nats.Option{nats.NoReconnect()}})
	assert.Error(t, err)
}

func runServer(t *testing.T) string {
	t.Helper()
	srv := natsserver.RunRandClientPortServer()
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func connect(t *testing.T, url string) *session {
	t.Helper()
	ts, err := Connect(Config{URL: url, QueryLinger: 20 * time.Millisecond, DiscoveryWait: 100 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.Close() })
	return ts.(*session)
}

func flush(t *testing.T, sessions ...*session) {
	t.Helper()
	for _, s := range sessions {
		require.NoError(t, s.conn.Flush())
	}
}

func recvSample(t *testing.T, ch <-chan transport.Sample) transport.Sample {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no sample received")
		return transport.Sample{}
	}
}

const chatterKey = "0/chatter/std_msgs::msg::dds_::String_/RIHS01_df66"

func TestPutSubscribe(t *testing.T) {
	url := runServer(t)
	pubSide, subSide := connect(t, url), connect(t, url)

	got := make(chan transport.Sample, 4)
	sub, err := subSide.DeclareSubscriber("0/chatter/std_msgs::msg::dds_::String_/*", transport.SubscriberOptions{},
		func(s transport.Sample) { got <- s })
	require.NoError(t, err)
	defer sub.Close()
	flush(t, subSide)

	pub, err := pubSide.DeclarePublisher(chatterKey, transport.PublisherOptions{})
	require.NoError(t, err)
	defer pub.Close()
	require.NoError(t, pub.Put(context.Background(), []byte("hello"), []byte{1, 2, 3}))

	s := recvSample(t, got)
	assert.Equal(t, chatterKey, s.Key)
	assert.Equal(t, []byte("hello"), s.Payload)
	assert.Equal(t, []byte{1, 2, 3}, s.Attachment)
	assert.Equal(t, transport.SampleKindPut, s.Kind)

	require.NoError(t, pub.Close())
	assert.ErrorIs(t, pub.Put(context.Background(), []byte("late"), nil), transport.ErrSessionClosed)
}

func TestSubscriberHistory(t *testing.T) {
	url := runServer(t)
	pubSide, subSide := connect(t, url), connect(t, url)

	pub, err := pubSide.DeclarePublisher(chatterKey, transport.PublisherOptions{History: 2, Block: true})
	require.NoError(t, err)
	defer pub.Close()
	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, pub.Put(context.Background(), []byte(m), nil))
	}
	flush(t, pubSide)

	var mu sync.Mutex
	var got []string
	sub, err := subSide.DeclareSubscriber(chatterKey, transport.SubscriberOptions{History: 2}, func(s transport.Sample) {
		mu.Lock()
		got = append(got, string(s.Payload))
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Close()

	mu.Lock()
	assert.Equal(t, []string{"two", "three"}, got, "history is replayed during declaration")
	mu.Unlock()

	require.NoError(t, pub.Put(context.Background(), []byte("four"), nil))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3 && got[2] == "four"
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGetFansOutToQueryables(t *testing.T) {
	url := runServer(t)
	const key = "0/add_two_ints/example_interfaces::srv::dds_::AddTwoInts_/RIHS01_e118"
	caller := connect(t, url)

	for _, name := range []string{"first", "second"} {
		s := connect(t, url)
		q, err := s.DeclareQueryable(key, func(q *transport.Query) {
			assert.Equal(t, []byte("request"), q.Payload)
			_ = q.Reply([]byte(name), q.Attachment)
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = q.Close() })
		flush(t, s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	replies, err := caller.Get(ctx, key, []byte("request"), []byte{7, 7})
	require.NoError(t, err)

	var names []string
	for r := range replies {
		require.NoError(t, r.Err)
		assert.Equal(t, key, r.Key)
		assert.Equal(t, []byte{7, 7}, r.Attachment)
		names = append(names, string(r.Payload))
	}
	assert.ElementsMatch(t, []string{"first", "second"}, names)
	assert.NoError(t, ctx.Err(), "replies close after the linger, not the deadline")
}

func TestGetDroppedQuery(t *testing.T) {
	url := runServer(t)
	const key = "0/refuse/T/H"
	caller, server := connect(t, url), connect(t, url)

	q, err := server.DeclareQueryable(key, func(q *transport.Query) { q.Drop() })
	require.NoError(t, err)
	defer q.Close()
	flush(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	replies, err := caller.Get(ctx, key, nil, nil)
	require.NoError(t, err)
	_, ok := <-replies
	assert.False(t, ok)
	assert.NoError(t, ctx.Err())
}

func TestGetNoResponders(t *testing.T) {
	caller := connect(t, runServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	start := time.Now()
	replies, err := caller.Get(ctx, "0/nobody/T/H", nil, nil)
	require.NoError(t, err)
	_, ok := <-replies
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)

	_, err = caller.Get(ctx, "0/wild/*", nil, nil)
	assert.ErrorIs(t, err, transport.ErrInvalidKey)
}

func TestLiveliness(t *testing.T) {
	url := runServer(t)
	owner, watcher := connect(t, url), connect(t, url)
	const nodeKey = "@ros2_lv/0/abcd/0/0/NN/%/%/talker"
	const pubKey = "@ros2_lv/0/abcd/0/10/MP/%/%/talker/%chatter/std_msgs::msg::dds_::String_/RIHS01_df66/::,10:,:,:,,"

	events := make(chan transport.Sample, 8)
	sub, err := watcher.SubscribeLiveliness("@ros2_lv/0/**", func(s transport.Sample) { events <- s })
	require.NoError(t, err)
	defer sub.Close()
	flush(t, watcher)

	node, err := owner.DeclareToken(nodeKey)
	require.NoError(t, err)
	ev := recvSample(t, events)
	assert.Equal(t, nodeKey, ev.Key)
	assert.Equal(t, transport.SampleKindPut, ev.Kind)

	keys, err := watcher.GetLiveliness(context.Background(), "@ros2_lv/0/**")
	require.NoError(t, err)
	assert.Equal(t, []string{nodeKey}, keys)

	keys, err = watcher.GetLiveliness(context.Background(), "@ros2_lv/1/**")
	require.NoError(t, err)
	assert.Empty(t, keys)

	require.NoError(t, node.Close())
	ev = recvSample(t, events)
	assert.Equal(t, nodeKey, ev.Key)
	assert.Equal(t, transport.SampleKindDelete, ev.Kind)

	keys, err = watcher.GetLiveliness(context.Background(), "@ros2_lv/0/**")
	require.NoError(t, err)
	assert.Empty(t, keys)

	// Closing the session withdraws the tokens it still holds.
	_, err = owner.DeclareToken(pubKey)
	require.NoError(t, err)
	assert.Equal(t, transport.SampleKindPut, recvSample(t, events).Kind)
	require.NoError(t, owner.Close())
	ev = recvSample(t, events)
	assert.Equal(t, pubKey, ev.Key)
	assert.Equal(t, transport.SampleKindDelete, ev.Kind)

	_, err = owner.DeclareToken(nodeKey)
	assert.ErrorIs(t, err, transport.ErrSessionClosed)
}
