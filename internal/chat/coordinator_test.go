package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rrens/bloombuddy/internal/connectivity"
	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/Rrens/bloombuddy/internal/localstore"
	"github.com/Rrens/bloombuddy/internal/topic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *localstore.Memory
	session  *Session
	outbox   *Outbox
	backend  *MockBackend
	monitor  *connectivity.Monitor
	recorder *recorder
	coord    *Coordinator
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()

	f := &fixture{
		store:    localstore.NewMemory(),
		backend:  new(MockBackend),
		monitor:  connectivity.NewMonitor(online),
		recorder: &recorder{},
	}
	f.session = NewSession(f.store, topic.Default(), WithSessionClock(fixedClock))
	f.outbox = NewOutbox(f.store)
	f.coord = NewCoordinator(f.session, f.outbox, f.backend, f.monitor, Options{
		Observer: f.recorder,
		Clock:    fixedClock,
	})
	require.NoError(t, f.coord.Open(context.Background(), topic.Mood))
	return f
}

func (f *fixture) expectArchive(conversationID string) {
	f.backend.On("CreateConversationRecord", mock.Anything, AnonymousUser, topic.Mood).Return(conversationID, nil).Once()
	f.backend.On("AppendMessageRecord", mock.Anything, conversationID, mock.Anything).Return(nil)
}

func TestCoordinator_SubmitOnline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.backend.On("SendChat", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return len(req.Messages) == 1 && req.Messages[0].Content == "Hello" &&
			req.Topic == topic.Mood && req.UserID == AnonymousUser
	})).Return(&domain.ChatReply{Success: true, Message: "Hi there"}, nil).Once()
	f.expectArchive("conv-1")

	outcome, err := f.coord.Submit(ctx, "  Hello ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)

	want := []domain.Message{
		domain.NewMessage(domain.RoleUser, "Hello", testTime),
		domain.NewMessage(domain.RoleAssistant, "Hi there", testTime),
	}
	assert.Equal(t, want, f.session.CurrentContext())

	data, err := f.store.Get(ctx, localstore.HistoryKey(topic.Mood))
	require.NoError(t, err)
	var stored []domain.Message
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, want, stored)

	assert.Equal(t, "conv-1", f.session.ConversationID())
	assert.Equal(t, StateIdle, f.coord.State())
	f.backend.AssertNumberOfCalls(t, "AppendMessageRecord", 2)
	f.backend.AssertExpectations(t)
}

func TestCoordinator_ConversationRecordCreatedOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.backend.On("SendChat", mock.Anything, mock.Anything).Return(&domain.ChatReply{Success: true, Message: "ok"}, nil)
	f.expectArchive("conv-1")

	for _, msg := range []string{"one", "two"} {
		_, err := f.coord.Submit(ctx, msg)
		require.NoError(t, err)
	}

	f.backend.AssertNumberOfCalls(t, "CreateConversationRecord", 1)
	f.backend.AssertNumberOfCalls(t, "AppendMessageRecord", 4)
	assert.Len(t, f.session.CurrentContext(), 4)
}

func TestCoordinator_ArchiveFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.backend.On("SendChat", mock.Anything, mock.Anything).Return(&domain.ChatReply{Success: true, Message: "ok"}, nil)
	f.backend.On("CreateConversationRecord", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("archive down"))

	outcome, err := f.coord.Submit(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Empty(t, f.session.ConversationID())
	assert.Empty(t, f.recorder.failures)
	f.backend.AssertNotCalled(t, "AppendMessageRecord", mock.Anything, mock.Anything, mock.Anything)
}

func TestCoordinator_SubmitOffline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	outcome, err := f.coord.Submit(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)

	entries := f.outbox.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.OutboxEntry{Role: domain.RoleUser, Content: "Hello", Timestamp: testTime}, entries[0])

	assert.Empty(t, f.session.CurrentContext())
	transcript := f.session.Transcript()
	assert.Equal(t, noticeQueued, transcript[len(transcript)-1].Content)
	assert.Equal(t, StateIdle, f.coord.State())
	f.backend.AssertNotCalled(t, "SendChat", mock.Anything, mock.Anything)
}

func TestCoordinator_RateLimited(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Return(nil, domain.NewEndpointError(429, "Rate Limited", "Too many requests. Please try again in a moment."))

	outcome, err := f.coord.Submit(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	require.Len(t, f.recorder.failures, 1)
	assert.Equal(t, KindRateLimited, f.recorder.failures[0].Kind)
	assert.Equal(t, msgRateLimited, f.recorder.failures[0].Message)

	assert.Zero(t, f.outbox.Len())
	assert.Empty(t, f.session.CurrentContext())
	assert.Equal(t, StateIdle, f.coord.State())
}

func TestCoordinator_FailureKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		reply   *domain.ChatReply
		kind    Kind
		message string
	}{
		{
			name:    "validation uses server text",
			err:     domain.NewEndpointError(400, "Message too long", "Message exceeds maximum length of 4000 characters"),
			kind:    KindValidation,
			message: "Message exceeds maximum length of 4000 characters",
		},
		{
			name:    "auth error is a service failure",
			err:     domain.NewEndpointError(500, "Authentication error", "Failed to authenticate with AI service"),
			kind:    KindService,
			message: msgService,
		},
		{
			name:    "network error while online",
			err:     &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			kind:    KindNetwork,
			message: msgNetwork,
		},
		{
			name:    "unsuccessful reply",
			reply:   &domain.ChatReply{Success: false},
			kind:    KindService,
			message: msgService,
		},
		{
			name:    "empty reply",
			reply:   &domain.ChatReply{Success: true, Message: "  "},
			kind:    KindService,
			message: msgService,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, true)
			if tt.reply != nil {
				f.backend.On("SendChat", mock.Anything, mock.Anything).Return(tt.reply, nil)
			} else {
				f.backend.On("SendChat", mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			outcome, err := f.coord.Submit(context.Background(), "Hello")
			require.NoError(t, err)
			assert.Equal(t, OutcomeFailed, outcome)

			require.Len(t, f.recorder.failures, 1)
			assert.Equal(t, tt.kind, f.recorder.failures[0].Kind)
			assert.Equal(t, tt.message, f.recorder.failures[0].Message)
			assert.Zero(t, f.outbox.Len())
		})
	}
}

func TestCoordinator_NetworkFailureWhileGoingOfflineQueues(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { f.monitor.Set(false) }).
		Return(nil, &net.OpError{Op: "dial", Err: errors.New("network is unreachable")})

	outcome, err := f.coord.Submit(ctx, "Hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeQueued, outcome)
	assert.Equal(t, []string{"Hello"}, contents(f.outbox.Entries()))
	assert.Empty(t, f.recorder.failures)
}

func TestCoordinator_RejectsEmptyAndClosed(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.coord.Submit(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	f.coord.Close()
	_, err = f.coord.Submit(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoSession)

	f.backend.AssertNotCalled(t, "SendChat", mock.Anything, mock.Anything)
}

func TestCoordinator_ConcurrentSubmitIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	started := make(chan struct{})
	release := make(chan struct{})
	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(&domain.ChatReply{Success: true, Message: "Hi"}, nil).Once()
	f.expectArchive("conv-1")

	var wg sync.WaitGroup
	wg.Add(1)
	var firstOutcome Outcome
	var firstErr error
	go func() {
		defer wg.Done()
		firstOutcome, firstErr = f.coord.Submit(ctx, "first")
	}()

	<-started
	assert.Equal(t, StateSending, f.coord.State())

	outcome, err := f.coord.Submit(ctx, "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, OutcomeFailed, outcome)

	close(release)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.Equal(t, OutcomeDelivered, firstOutcome)
	f.backend.AssertNumberOfCalls(t, "SendChat", 1)
	assert.Zero(t, f.outbox.Len())
	assert.Len(t, f.session.CurrentContext(), 2)
}

func TestCoordinator_DrainOnReconnect(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	queued := []string{"first", "second", "third"}
	for _, msg := range queued {
		outcome, err := f.coord.Submit(ctx, msg)
		require.NoError(t, err)
		require.Equal(t, OutcomeQueued, outcome)
	}
	require.Equal(t, 3, f.outbox.Len())

	var sent []string
	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sent = append(sent, lastContent(args.Get(1).(domain.ChatRequest)))
		}).
		Return(&domain.ChatReply{Success: true, Message: "noted"}, nil)
	f.expectArchive("conv-1")

	f.monitor.Set(true)
	report, err := f.coord.OnConnectivityRestored(ctx)
	require.NoError(t, err)

	assert.Equal(t, queued, sent)
	assert.Equal(t, 3, report.Delivered)
	assert.Zero(t, f.outbox.Len())
	assert.Len(t, f.session.CurrentContext(), 6)

	transcript := f.session.Transcript()
	assert.Equal(t, noticeSyncDone, transcript[len(transcript)-1].Content)
	assert.Equal(t, StateIdle, f.coord.State())
}

func TestCoordinator_SubmitDuringDrainIsAccepted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.coord.Submit(ctx, "queued while offline")
	require.NoError(t, err)

	started := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var sent []string
	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			content := lastContent(args.Get(1).(domain.ChatRequest))
			mu.Lock()
			sent = append(sent, content)
			mu.Unlock()
			if content == "queued while offline" {
				close(started)
				<-release
			}
		}).
		Return(&domain.ChatReply{Success: true, Message: "ok"}, nil)
	f.expectArchive("conv-1")

	f.monitor.Set(true)
	var wg sync.WaitGroup
	wg.Add(2)
	var drainErr error
	go func() {
		defer wg.Done()
		_, drainErr = f.coord.OnConnectivityRestored(ctx)
	}()

	<-started
	var outcome Outcome
	var submitErr error
	go func() {
		defer wg.Done()
		outcome, submitErr = f.coord.Submit(ctx, "typed during drain")
	}()

	require.Eventually(t, func() bool {
		f.coord.mu.Lock()
		defer f.coord.mu.Unlock()
		return f.coord.submitting
	}, time.Second, time.Millisecond)

	// a second submission while the first waits is still busy
	_, err = f.coord.Submit(ctx, "impatient")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()

	require.NoError(t, drainErr)
	require.NoError(t, submitErr)
	assert.Equal(t, OutcomeDelivered, outcome)
	assert.Equal(t, []string{"queued while offline", "typed during drain"}, sent)
	assert.Zero(t, f.outbox.Len())
	assert.Len(t, f.session.CurrentContext(), 4)
}

// flappingConn reports offline for a set number of reads, then online again
type flappingConn struct {
	offlineReads atomic.Int32
}

func (c *flappingConn) Online() bool {
	for {
		n := c.offlineReads.Load()
		if n <= 0 {
			return true
		}
		if c.offlineReads.CompareAndSwap(n, n-1) {
			return false
		}
	}
}

func TestCoordinator_ReconnectDuringDrainRunsAnotherPass(t *testing.T) {
	ctx := context.Background()
	store := localstore.NewMemory()
	session := NewSession(store, topic.Default(), WithSessionClock(fixedClock))
	outbox := NewOutbox(store)
	backend := new(MockBackend)
	conn := &flappingConn{}
	coord := NewCoordinator(session, outbox, backend, conn, Options{Clock: fixedClock})
	require.NoError(t, coord.Open(ctx, topic.Mood))

	for _, msg := range []string{"a", "b"} {
		require.NoError(t, outbox.Enqueue(ctx, userMessage(msg)))
	}

	var sent []string
	backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			content := lastContent(args.Get(1).(domain.ChatRequest))
			sent = append(sent, content)
			if content == "a" {
				// the network drops before b and comes straight back
				conn.offlineReads.Store(1)
				report, err := coord.OnConnectivityRestored(ctx)
				require.NoError(t, err)
				assert.Equal(t, DrainReport{}, report)
			}
		}).
		Return(&domain.ChatReply{Success: true, Message: "ok"}, nil)
	backend.On("CreateConversationRecord", mock.Anything, AnonymousUser, topic.Mood).Return("conv-1", nil).Once()
	backend.On("AppendMessageRecord", mock.Anything, "conv-1", mock.Anything).Return(nil)

	report, err := coord.OnConnectivityRestored(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, sent)
	assert.Equal(t, 2, report.Delivered)
	assert.Zero(t, outbox.Len())
}

func TestCoordinator_DrainReportsEachFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	for _, msg := range []string{"bad one", "good one", "busy one"} {
		_, err := f.coord.Submit(ctx, msg)
		require.NoError(t, err)
	}

	f.backend.On("SendChat", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return lastContent(req) == "bad one"
	})).Return(nil, domain.NewEndpointError(400, "Invalid content", "Message contains invalid content"))
	f.backend.On("SendChat", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return lastContent(req) == "busy one"
	})).Return(nil, domain.NewEndpointError(503, "Chat service error", "Failed to get response"))
	f.backend.On("SendChat", mock.Anything, mock.Anything).Return(&domain.ChatReply{Success: true, Message: "ok"}, nil)
	f.expectArchive("conv-1")

	f.monitor.Set(true)
	report, err := f.coord.OnConnectivityRestored(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Requeued)
	require.Len(t, f.recorder.failures, 2)
	assert.Contains(t, f.recorder.failures[0].Message, `Failed to send message: "bad one"`)
	assert.Equal(t, KindValidation, f.recorder.failures[0].Kind)
	assert.Equal(t, KindService, f.recorder.failures[1].Kind)

	// the validation failure is dropped, the service failure waits for the next reconnect
	assert.Equal(t, []string{"busy one"}, contents(f.outbox.Entries()))
}

func TestCoordinator_DrainStopsWhenOfflineAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	for _, msg := range []string{"a", "b"} {
		_, err := f.coord.Submit(ctx, msg)
		require.NoError(t, err)
	}

	f.backend.On("SendChat", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { f.monitor.Set(false) }).
		Return(&domain.ChatReply{Success: true, Message: "ok"}, nil).Once()
	f.expectArchive("conv-1")

	f.monitor.Set(true)
	report, err := f.coord.OnConnectivityRestored(ctx)
	require.NoError(t, err)

	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, []string{"b"}, contents(f.outbox.Entries()))
	f.backend.AssertNumberOfCalls(t, "SendChat", 1)
}

func TestCoordinator_DrainWithEmptyOutbox(t *testing.T) {
	f := newFixture(t, true)
	before := len(f.session.Transcript())

	report, err := f.coord.OnConnectivityRestored(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DrainReport{}, report)
	assert.Len(t, f.session.Transcript(), before)
}

func TestCoordinator_EnqueueFailureIsReported(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: localstore.NewMemory()}
	session := NewSession(store, topic.Default())
	outbox := NewOutbox(store)
	rec := &recorder{}
	coord := NewCoordinator(session, outbox, new(MockBackend), connectivity.NewMonitor(false), Options{Observer: rec})
	require.NoError(t, coord.Open(ctx, topic.Verse))

	store.failSet.Store(true)
	outcome, err := coord.Submit(ctx, "hello")
	assert.ErrorIs(t, err, errStoreDown)
	assert.Equal(t, OutcomeFailed, outcome)
	require.Len(t, rec.failures, 1)
	assert.Equal(t, KindStorage, rec.failures[0].Kind)
}

func TestCoordinator_Greeting(t *testing.T) {
	ctx := context.Background()
	backend := new(MockBackend)
	session := NewSession(localstore.NewMemory(), topic.Default())
	outbox := NewOutbox(localstore.NewMemory())

	anon := NewCoordinator(session, outbox, backend, connectivity.NewMonitor(true), Options{})
	assert.Equal(t, "Welcome!", anon.Greeting(ctx))

	backend.On("ReadUserRecord", mock.Anything, "u-1").Return(&domain.UserRecord{ID: "u-1", DisplayName: "Grace"}, nil)
	backend.On("ReadUserRecord", mock.Anything, "u-2").Return(nil, domain.ErrNotFound)

	named := NewCoordinator(session, outbox, backend, connectivity.NewMonitor(true), Options{UserID: "u-1"})
	assert.Equal(t, "Welcome, Grace!", named.Greeting(ctx))

	missing := NewCoordinator(session, outbox, backend, connectivity.NewMonitor(true), Options{UserID: "u-2"})
	assert.Equal(t, "Welcome!", missing.Greeting(ctx))
}

func TestCoordinator_ResumeAndContinue(t *testing.T) {
	ctx := context.Background()
	backend := new(MockHistoryBackend)
	session := NewSession(localstore.NewMemory(), topic.Default(), WithSessionClock(fixedClock))
	coord := NewCoordinator(session, NewOutbox(localstore.NewMemory()), backend, connectivity.NewMonitor(true), Options{UserID: "u-1"})

	backend.On("ListConversations", mock.Anything, "u-1", topic.Growth, DefaultHistoryPageSize).
		Return([]domain.Conversation{{ID: "conv-7", UserID: "u-1", Topic: topic.Growth}}, nil)
	backend.On("ReadConversation", mock.Anything, "conv-7").Return(&domain.ConversationDetail{
		Conversation: domain.Conversation{ID: "conv-7", UserID: "u-1", Topic: topic.Growth},
		Messages: []domain.ConversationMessage{
			{ID: "m1", ConversationID: "conv-7", Role: domain.RoleUser, Content: "How do I grow?", Timestamp: testTime},
			{ID: "m2", ConversationID: "conv-7", Role: domain.RoleAssistant, Content: "Step by step.", Timestamp: testTime},
		},
	}, nil)

	list, err := coord.Conversations(ctx, topic.Growth)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = coord.Conversations(ctx, "unknown")
	assert.ErrorIs(t, err, ErrUnknownTopic)

	require.NoError(t, coord.Resume(ctx, "conv-7"))
	assert.Equal(t, topic.Growth, session.Topic())
	assert.Equal(t, "conv-7", session.ConversationID())

	backend.On("SendChat", mock.Anything, mock.MatchedBy(func(req domain.ChatRequest) bool {
		return len(req.Messages) == 3 && req.Topic == topic.Growth
	})).Return(&domain.ChatReply{Success: true, Message: "Keep going."}, nil)
	backend.On("AppendMessageRecord", mock.Anything, "conv-7", mock.Anything).Return(nil)

	_, err = coord.Submit(ctx, "What next?")
	require.NoError(t, err)
	backend.AssertNotCalled(t, "CreateConversationRecord", mock.Anything, mock.Anything, mock.Anything)
	backend.AssertNumberOfCalls(t, "AppendMessageRecord", 2)
}

func TestCoordinator_HistoryUnavailable(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.coord.Conversations(context.Background(), "")
	assert.ErrorIs(t, err, ErrHistoryUnavailable)
	assert.ErrorIs(t, f.coord.Resume(context.Background(), "conv-1"), ErrHistoryUnavailable)
}

func TestClassify_Timeouts(t *testing.T) {
	f := Classify(context.DeadlineExceeded)
	assert.Equal(t, KindNetwork, f.Kind)
	assert.Equal(t, msgTimeout, f.Message)

	f = Classify(errors.New("boom"))
	assert.Equal(t, KindService, f.Kind)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "sending", StateSending.String())
	assert.Equal(t, "offline-queued", StateOfflineQueued.String())
	assert.Equal(t, "draining", StateDraining.String())
}
