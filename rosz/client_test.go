package rosz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/jazi007/oxidros-sub001/transport"
)

type serviceFixture struct {
	bus    *transport.MemoryBus
	server *Node
	caller *Node
}

func newServiceFixture(t *testing.T, opts ...func(*ContextBuilder)) *serviceFixture {
	t.Helper()
	bus := transport.NewMemoryBus()
	return &serviceFixture{
		bus:    bus,
		server: newTestNode(t, newTestContext(t, bus), "adder"),
		caller: newTestNode(t, newTestContext(t, bus, opts...), "caller"),
	}
}

func (f *serviceFixture) addServer(t *testing.T, name string) *Server[*testAddRequest, *testAddResponse] {
	t.Helper()
	srv, err := BuildServer[*testAddRequest, *testAddResponse](f.server.CreateServer(name), testAddService)
	require.NoError(t, err)
	return srv
}

func (f *serviceFixture) addClient(t *testing.T, name string) *Client[*testAddRequest, *testAddResponse] {
	t.Helper()
	c, err := BuildClient[*testAddRequest, *testAddResponse](f.caller.CreateClient(name), testAddService)
	require.NoError(t, err)
	return c
}

func serve(t *testing.T, srv *Server[*testAddRequest, *testAddResponse], h ServiceHandler[*testAddRequest, *testAddResponse]) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, h, 4)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func adder(_ context.Context, req *testAddRequest) (*testAddResponse, error) {
	return addHandler(req), nil
}

func TestClientCall(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "add_two_ints")
	serve(t, srv, adder)
	client := f.addClient(t, "add_two_ints")

	assert.Equal(t, "/add_two_ints", client.Service())
	for i := int64(0); i < 3; i++ {
		resp, err := client.CallWithTimeout(context.Background(), &testAddRequest{A: i, B: 10}, time.Second)
		require.NoError(t, err)
		assert.Equal(t, i+10, resp.Sum)
	}
}

func TestClientServiceNotAvailable(t *testing.T) {
	f := newServiceFixture(t)
	client := f.addClient(t, "nobody_home")

	assert.False(t, client.IsServiceAvailable())
	_, err := client.CallWithTimeout(context.Background(), &testAddRequest{}, time.Second)
	require.ErrorIs(t, err, ErrServiceNotAvailable)
}

func TestClientTimeout(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "slow")
	client := f.addClient(t, "slow")

	start := time.Now()
	_, err := client.CallWithTimeout(context.Background(), &testAddRequest{}, 30*time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, srv.Pending(), "request stays queued on the server")
}

func TestClientCallCanceled(t *testing.T) {
	f := newServiceFixture(t)
	f.addServer(t, "canceled")
	client := f.addClient(t, "canceled")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	_, err := client.Call(ctx, &testAddRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestServerDropAnswersNotAvailable(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "dropper")
	serve(t, srv, func(context.Context, *testAddRequest) (*testAddResponse, error) {
		return nil, errors.New("refuse")
	})
	client := f.addClient(t, "dropper")

	_, err := client.CallWithTimeout(context.Background(), &testAddRequest{}, time.Second)
	assert.ErrorIs(t, err, ErrServiceNotAvailable)
}

func TestServerRecvAndResponder(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "manual")
	client := f.addClient(t, "manual")

	type result struct {
		resp *testAddResponse
		err  error
	}
	done := make(chan result, 2)
	call := func(a int64) {
		resp, err := client.CallWithTimeout(context.Background(), &testAddRequest{A: a, B: 1}, 2*time.Second)
		done <- result{resp, err}
	}
	go call(1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, responder, err := srv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), req.A)
	assert.Equal(t, int64(0), responder.SequenceNumber())
	assert.Equal(t, client.GID(), responder.ClientGID())

	require.NoError(t, responder.Send(&testAddResponse{Sum: 2}))
	assert.ErrorIs(t, responder.Send(&testAddResponse{Sum: 3}), ErrResponderUsed)

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, int64(2), r.resp.Sum)

	go call(5)
	req, responder, err = srv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), responder.SequenceNumber(), "client sequence numbers increase")
	require.NoError(t, responder.Send(addHandler(req)))
	r = <-done
	require.NoError(t, r.err)
	assert.Equal(t, int64(6), r.resp.Sum)
}

func TestServerTryRecvEmpty(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "idle")
	_, _, ok, err := srv.TryRecv()
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestServerInboxDropsOldest(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "flooded")
	client := f.addClient(t, "flooded")

	errs := make(chan error, ServerInboxSize+1)
	for i := 0; i <= ServerInboxSize; i++ {
		go func() {
			_, err := client.CallWithTimeout(context.Background(), &testAddRequest{}, 2*time.Second)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return srv.Pending() == ServerInboxSize }, time.Second, time.Millisecond)

	// The evicted request is finalized without a reply.
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, ErrServiceNotAvailable)
	case <-time.After(time.Second):
		t.Fatal("evicted call did not fail")
	}
	require.NoError(t, srv.Close())
	for i := 0; i < ServerInboxSize; i++ {
		assert.ErrorIs(t, <-errs, ErrServiceNotAvailable)
	}
}

func TestServerCloseWakesRecv(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "closing")

	errs := make(chan error, 1)
	go func() {
		_, _, err := srv.Recv(context.Background())
		errs <- err
	}()
	require.Eventually(t, func() bool { return srv.Waiters() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, srv.Close())
	assert.ErrorIs(t, <-errs, ErrChannelClosed)
}

func TestServerRelativeNameInNamespace(t *testing.T) {
	bus := transport.NewMemoryBus()
	ctx := newTestContext(t, bus)
	node, err := ctx.CreateNode("adder").WithNamespace("/math").Build()
	require.NoError(t, err)
	srv, err := BuildServer[*testAddRequest, *testAddResponse](node.CreateServer("add"), testAddService)
	require.NoError(t, err)
	assert.Equal(t, "/math/add", srv.Service())
}

func TestClientWaitForService(t *testing.T) {
	f := newServiceFixture(t)
	client := f.addClient(t, "late")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, client.WaitForService(ctx), ErrTimeout)

	built := make(chan error, 1)
	time.AfterFunc(20*time.Millisecond, func() {
		_, err := BuildServer[*testAddRequest, *testAddResponse](f.server.CreateServer("late"), testAddService)
		built <- err
	})
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, client.WaitForService(ctx2))
	require.NoError(t, <-built)
	assert.True(t, client.IsServiceAvailable())
}

func TestClientRemapped(t *testing.T) {
	f := newServiceFixture(t, func(b *ContextBuilder) { b.WithRemapRule("sum:=/add_two_ints") })
	serve(t, f.addServer(t, "add_two_ints"), adder)
	client := f.addClient(t, "sum")

	assert.Equal(t, "/add_two_ints", client.Service())
	resp, err := client.CallWithTimeout(context.Background(), &testAddRequest{A: 4, B: 4}, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(8), resp.Sum)
}

func TestClientCallSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	bus := transport.NewMemoryBus()
	srvNode := newTestNode(t, newTestContext(t, bus, func(b *ContextBuilder) { b.WithTracerProvider(tp) }), "adder")
	srv, err := BuildServer[*testAddRequest, *testAddResponse](srvNode.CreateServer("traced"), testAddService)
	require.NoError(t, err)
	serve(t, srv, adder)

	caller := newTestNode(t, newTestContext(t, bus, func(b *ContextBuilder) { b.WithTracerProvider(tp) }), "caller")
	client, err := BuildClient[*testAddRequest, *testAddResponse](caller.CreateClient("traced"), testAddService)
	require.NoError(t, err)
	missing, err := BuildClient[*testAddRequest, *testAddResponse](caller.CreateClient("missing"), testAddService)
	require.NoError(t, err)

	_, err = client.CallWithTimeout(context.Background(), &testAddRequest{A: 1}, time.Second)
	require.NoError(t, err)
	_, err = missing.CallWithTimeout(context.Background(), &testAddRequest{}, time.Second)
	require.Error(t, err)

	byName := map[string][]sdktrace.ReadOnlySpan{}
	for _, s := range rec.Ended() {
		byName[s.Name()] = append(byName[s.Name()], s)
	}
	require.Len(t, byName["rosz.client.call"], 2)
	require.Len(t, byName["rosz.server.reply"], 1)

	ok := byName["rosz.client.call"][0]
	assert.Equal(t, codes.Ok, ok.Status().Code)
	failed := byName["rosz.client.call"][1]
	assert.Equal(t, codes.Error, failed.Status().Code)

	var service string
	for _, kv := range ok.Attributes() {
		if kv.Key == "rosz.service" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "/traced", service)
}

// replyWith answers every query on key with reply, bypassing Server.
func (f *serviceFixture) replyWith(t *testing.T, key string, reply func(q *transport.Query)) {
	t.Helper()
	session := f.bus.Session()
	t.Cleanup(func() { _ = session.Close() })
	q, err := session.DeclareQueryable(key, reply)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
}

func encodeSum(t *testing.T, sum int64) []byte {
	t.Helper()
	data, err := (&testAddResponse{Sum: sum}).SerializeCDR()
	require.NoError(t, err)
	return data
}

func TestClientConcurrentCallsAnsweredInReverse(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "reversed")
	client := f.addClient(t, "reversed")

	results := make(map[int64]chan int64)
	for _, a := range []int64{5, 6} {
		ch := make(chan int64, 1)
		results[a] = ch
		go func() {
			resp, err := client.CallWithTimeout(context.Background(), &testAddRequest{A: a, B: 100}, 2*time.Second)
			if err != nil {
				ch <- -1
				return
			}
			ch <- resp.Sum
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	type held struct {
		req       *testAddRequest
		responder *Responder[*testAddResponse]
	}
	var pending []held
	for range 2 {
		req, responder, err := srv.Recv(ctx)
		require.NoError(t, err)
		pending = append(pending, held{req, responder})
	}
	assert.NotEqual(t, pending[0].responder.SequenceNumber(), pending[1].responder.SequenceNumber())

	for i := len(pending) - 1; i >= 0; i-- {
		require.NoError(t, pending[i].responder.Send(addHandler(pending[i].req)))
	}
	assert.Equal(t, int64(105), <-results[5])
	assert.Equal(t, int64(106), <-results[6])
}

func TestClientSkipsMismatchedReplies(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "noisy")
	client := f.addClient(t, "noisy")

	answered := make(chan struct{}, 2)
	reply := func(rewrite func(Attachment) Attachment, payload []byte) func(*transport.Query) {
		return func(q *transport.Query) {
			att, err := DecodeAttachment(q.Attachment)
			if err != nil {
				q.Drop()
				return
			}
			_ = q.Reply(payload, rewrite(att).Bytes())
			answered <- struct{}{}
		}
	}
	f.replyWith(t, client.key, reply(func(a Attachment) Attachment {
		return NewAttachment(a.SequenceNumber+100, a.GID)
	}, encodeSum(t, -100)))
	f.replyWith(t, client.key, reply(func(a Attachment) Attachment {
		return NewAttachment(a.SequenceNumber, NewGID())
	}, encodeSum(t, -200)))

	done := make(chan error, 1)
	var got int64
	go func() {
		resp, err := client.CallWithTimeout(context.Background(), &testAddRequest{A: 2, B: 3}, 2*time.Second)
		if err == nil {
			got = resp.Sum
		}
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	req, responder, err := srv.Recv(ctx)
	require.NoError(t, err)
	// Both mismatched answers are queued before the server replies.
	for range 2 {
		select {
		case <-answered:
		case <-ctx.Done():
			t.Fatal("mismatched replies were not sent")
		}
	}
	require.NoError(t, responder.Send(addHandler(req)))

	require.NoError(t, <-done)
	assert.Equal(t, int64(5), got)
}

func TestClientReplyWithoutAttachment(t *testing.T) {
	f := newServiceFixture(t)
	client := f.addClient(t, "bare")
	payload := encodeSum(t, 1)
	f.replyWith(t, client.key, func(q *transport.Query) {
		_ = q.Reply(payload, nil)
	})

	_, err := client.CallWithTimeout(context.Background(), &testAddRequest{}, time.Second)
	assert.ErrorIs(t, err, ErrMissingAttachment)
}

func TestServerQueryWithoutAttachment(t *testing.T) {
	f := newServiceFixture(t)
	srv := f.addServer(t, "lenient")

	payload, err := (&testAddRequest{A: 20, B: 22}).SerializeCDR()
	require.NoError(t, err)
	session := f.bus.Session()
	t.Cleanup(func() { _ = session.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	replies, err := session.Get(ctx, srv.key, payload, nil)
	require.NoError(t, err)

	req, responder, err := srv.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), responder.SequenceNumber())
	assert.Equal(t, GID{}, responder.ClientGID())
	require.NoError(t, responder.Send(addHandler(req)))

	r, ok := <-replies
	require.True(t, ok)
	att, err := DecodeAttachment(r.Attachment)
	require.NoError(t, err)
	assert.Equal(t, int64(0), att.SequenceNumber)
	assert.Equal(t, GID{}, att.GID)

	var resp testAddResponse
	require.NoError(t, resp.DeserializeCDR(r.Payload))
	assert.Equal(t, int64(42), resp.Sum)
}
