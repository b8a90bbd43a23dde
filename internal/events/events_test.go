package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examprep/backend/internal/events/eventstest"
	"github.com/examprep/backend/internal/models"
)

func sampleEvent() models.Event {
	return New(models.EventTestSubmitted, models.TestSubmittedPayload{
		AttemptID: "a1", UserID: "u1", TestID: "t1", Score: 3, Percentage: 75,
	}, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
}

func TestNew_UniqueIDs(t *testing.T) {
	a, b := sampleEvent(), sampleEvent()
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, models.EventTestSubmitted, a.Type)
}

func TestWebhook_SignsBody(t *testing.T) {
	var gotSig, gotID string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotID = r.Header.Get(EventIDHeader)
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	ev := sampleEvent()
	require.NoError(t, NewWebhook(srv.URL, "topsecret").Emit(context.Background(), ev))

	assert.Equal(t, ev.ID, gotID)
	assert.Equal(t, Sign([]byte("topsecret"), gotBody), gotSig)

	var decoded models.Event
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, ev.ID, decoded.ID)
	assert.Equal(t, ev.Type, decoded.Type)
}

func TestWebhook_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Emit(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "502")
}

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	f.msgs = append(f.msgs, m)
	return f.err
}

func TestNATS_SubjectAndDedupeHeader(t *testing.T) {
	conn := &fakeConn{}
	n := &NATS{conn: conn, prefix: "examprep"}

	ev := sampleEvent()
	require.NoError(t, n.Emit(context.Background(), ev))
	require.Len(t, conn.msgs, 1)
	assert.Equal(t, "examprep.test-submitted", conn.msgs[0].Subject)
	assert.Equal(t, ev.ID, conn.msgs[0].Header.Get(nats.MsgIdHdr))
}

type failing struct{ calls atomic.Int32 }

func (f *failing) Emit(ctx context.Context, ev models.Event) error {
	f.calls.Add(1)
	return errors.New("sink down")
}

func TestMulti_JoinsErrorsAndReachesAllSinks(t *testing.T) {
	bad := &failing{}
	rec := eventstest.NewRecorder()

	err := Multi{bad, rec}.Emit(context.Background(), sampleEvent())
	assert.ErrorContains(t, err, "sink down")
	assert.Len(t, rec.Drain(), 1)
	assert.Equal(t, int32(1), bad.calls.Load())
}

func TestPublish_SwallowsErrors(t *testing.T) {
	assert.False(t, Publish(context.Background(), &failing{}, sampleEvent()))
	assert.True(t, Publish(context.Background(), Log{}, sampleEvent()))
}

type flaky struct {
	failures int32
	calls    atomic.Int32
	rec      *eventstest.Recorder
}

func (f *flaky) Emit(ctx context.Context, ev models.Event) error {
	if f.calls.Add(1) <= f.failures {
		return errors.New("try again")
	}
	return f.rec.Emit(ctx, ev)
}

func TestAsync_RetriesThenDelivers(t *testing.T) {
	sink := &flaky{failures: 2, rec: eventstest.NewRecorder()}
	a := NewAsync(sink, 8, 5)

	ev := sampleEvent()
	require.NoError(t, a.Emit(context.Background(), ev))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Close(ctx))

	got := sink.rec.Drain()
	require.Len(t, got, 1)
	assert.Equal(t, ev.ID, got[0].ID)
	assert.Equal(t, int32(3), sink.calls.Load())
}

func TestAsync_RejectsAfterClose(t *testing.T) {
	a := NewAsync(eventstest.NewRecorder(), 1, 0)
	require.NoError(t, a.Close(context.Background()))
	assert.ErrorIs(t, a.Emit(context.Background(), sampleEvent()), ErrClosed)
}
