package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
	"github.com/rs/zerolog/log"
)

// AnonymousUser is sent as the user id when none is known
const AnonymousUser = "anonymous"

// Local notices shown as if from the assistant
const (
	noticeQueued      = "You are offline. Message will be sent when you reconnect."
	noticeSyncing     = "Reconnected. Syncing messages..."
	noticeSyncDone    = "Sync complete!"
	noticeSyncPartial = "Some messages could not be sent yet. They will be retried when you reconnect."
)

// Backend is the set of remote capabilities the core depends on
type Backend interface {
	SendChat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error)
	CreateConversationRecord(ctx context.Context, userID, topic string) (string, error)
	AppendMessageRecord(ctx context.Context, conversationID string, message domain.Message) error
	ReadUserRecord(ctx context.Context, userID string) (*domain.UserRecord, error)
}

// Connectivity reports whether the network is believed reachable
type Connectivity interface {
	Online() bool
}

// State is the coordinator's position in the send state machine
type State int

const (
	StateIdle State = iota
	StateSending
	StateOfflineQueued
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateSending:
		return "sending"
	case StateOfflineQueued:
		return "offline-queued"
	case StateDraining:
		return "draining"
	default:
		return "idle"
	}
}

// Outcome tells the caller what happened to a submitted message
type Outcome int

const (
	OutcomeFailed Outcome = iota
	OutcomeDelivered
	OutcomeQueued
)

// Options configures a Coordinator
type Options struct {
	UserID   string
	Observer Observer
	Clock    func() time.Time
}

// Coordinator decides how each user message reaches the chat endpoint: sent
// now, queued while offline, or replayed when connectivity returns. At most
// one remote exchange is in flight at any time.
type Coordinator struct {
	session  *Session
	outbox   *Outbox
	backend  Backend
	conn     Connectivity
	observer Observer
	userID   string
	now      func() time.Time

	// slot is a one-token semaphore guarding the remote exchange
	slot chan struct{}

	mu       sync.Mutex
	sending  bool
	queuing  bool
	draining bool
	// submitting is set while a user submission waits for or holds the slot
	submitting bool
	// redrain records a reconnect that arrived while a drain was running
	redrain bool
}

// NewCoordinator wires the core together
func NewCoordinator(session *Session, outbox *Outbox, backend Backend, conn Connectivity, opts Options) *Coordinator {
	c := &Coordinator{
		session:  session,
		outbox:   outbox,
		backend:  backend,
		conn:     conn,
		observer: opts.Observer,
		userID:   opts.UserID,
		now:      opts.Clock,
		slot:     make(chan struct{}, 1),
	}
	if c.observer == nil {
		c.observer = ObserverFuncs{}
	}
	if c.userID == "" {
		c.userID = AnonymousUser
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Session returns the conversation session driven by the coordinator
func (c *Coordinator) Session() *Session {
	return c.session
}

// State reports the current state
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.sending:
		return StateSending
	case c.queuing:
		return StateOfflineQueued
	case c.draining:
		return StateDraining
	default:
		return StateIdle
	}
}

// Open switches the session to a topic once no exchange is in flight
func (c *Coordinator) Open(ctx context.Context, topicName string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.session.Open(ctx, topicName)
}

// ClearHistory wipes the locally stored history of every topic once no
// exchange is in flight. Queued messages are kept.
func (c *Coordinator) ClearHistory(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.session.ClearHistory(ctx)
}

// Close resets the session
func (c *Coordinator) Close() {
	c.session.Close()
}

// Submit sends one user message. Remote failures are reported to the
// observer and come back as OutcomeFailed with a nil error; the error return
// is reserved for rejected submissions and failed offline enqueues.
func (c *Coordinator) Submit(ctx context.Context, content string) (Outcome, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return OutcomeFailed, ErrEmptyMessage
	}
	if c.session.Topic() == "" {
		return OutcomeFailed, ErrNoSession
	}

	if err := c.claimSlot(ctx); err != nil {
		return OutcomeFailed, err
	}
	defer c.release()
	defer c.endSubmit()

	user := domain.NewMessage(domain.RoleUser, content, c.now())
	c.display(user)

	if !c.conn.Online() {
		return c.enqueue(ctx, user)
	}

	c.setSending(true)
	err := c.exchange(ctx, user)
	c.setSending(false)
	if err == nil {
		return OutcomeDelivered, nil
	}

	failure := Classify(err)
	if failure.Kind == KindNetwork && !c.conn.Online() {
		log.Info().Err(err).Msg("connection lost during send, queuing message")
		return c.enqueue(ctx, user)
	}

	c.report(failure)
	return OutcomeFailed, nil
}

// OnConnectivityRestored drains the offline queue through the normal exchange
// path. Submissions stay accepted meanwhile; they only wait for the send slot
// between queued messages.
func (c *Coordinator) OnConnectivityRestored(ctx context.Context) (DrainReport, error) {
	c.mu.Lock()
	if c.draining {
		c.redrain = true
		c.mu.Unlock()
		log.Debug().Msg("drain already in progress")
		return DrainReport{}, nil
	}
	c.draining = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.draining = false
		c.redrain = false
		c.mu.Unlock()
	}()

	var total DrainReport
	for {
		report, err := c.drainOnce(ctx)
		total.Delivered += report.Delivered
		total.Requeued = report.Requeued
		total.Failed = append(total.Failed, report.Failed...)
		total.Interrupted = report.Interrupted
		if err != nil {
			return total, err
		}

		// Another reconnect during the pass picks up what an offline stop left behind
		c.mu.Lock()
		again := c.redrain
		c.redrain = false
		c.mu.Unlock()
		if !again || !c.conn.Online() || c.outbox.Len() == 0 {
			return total, nil
		}
	}
}

func (c *Coordinator) drainOnce(ctx context.Context) (DrainReport, error) {
	if c.outbox.Len() == 0 {
		return DrainReport{}, nil
	}

	log.Info().Int("queued", c.outbox.Len()).Msg("syncing offline messages")
	c.notice(noticeSyncing)

	report, err := c.outbox.DrainAll(ctx, c.deliverQueued)

	for _, failed := range report.Failed {
		if errors.Is(failed.Err, ErrOffline) {
			continue
		}
		f := Classify(failed.Err)
		f.Message = fmt.Sprintf("Failed to send message: %q. %s", preview(failed.Entry.Content), f.Message)
		c.report(f)
	}

	if err != nil {
		log.Error().Err(err).Msg("offline queue drain failed")
		return report, err
	}

	if report.Requeued > 0 {
		c.notice(noticeSyncPartial)
	} else {
		c.notice(noticeSyncDone)
	}

	log.Info().
		Int("delivered", report.Delivered).
		Int("requeued", report.Requeued).
		Int("failed", len(report.Failed)).
		Msg("offline sync finished")

	return report, nil
}

// Greeting builds a welcome line from the user's record
func (c *Coordinator) Greeting(ctx context.Context) string {
	if c.userID == AnonymousUser {
		return "Welcome!"
	}
	user, err := c.backend.ReadUserRecord(ctx, c.userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", c.userID).Msg("failed to read user record")
		return "Welcome!"
	}
	if user == nil || user.DisplayName == "" {
		return "Welcome!"
	}
	return fmt.Sprintf("Welcome, %s!", user.DisplayName)
}

func (c *Coordinator) deliverQueued(ctx context.Context, entry domain.OutboxEntry) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if !c.conn.Online() {
		return ErrOffline
	}

	c.setSending(true)
	err := c.exchange(ctx, entry.Message())
	c.setSending(false)
	if err == nil {
		return nil
	}

	failure := Classify(err)
	switch {
	case failure.Kind == KindNetwork && !c.conn.Online():
		return fmt.Errorf("%w: %w", ErrOffline, err)
	case failure.Kind == KindValidation:
		return Permanent(err)
	}
	return err
}

// exchange performs one round trip and records its result. The caller holds
// the send slot.
func (c *Coordinator) exchange(ctx context.Context, user domain.Message) error {
	topicName := c.session.Topic()
	if topicName == "" {
		return ErrNoSession
	}

	messages := append(c.session.CurrentContext(), user)
	req := domain.ChatRequest{
		Messages: domain.ChatMessagesFrom(messages),
		Topic:    topicName,
		UserID:   c.userID,
	}

	reply, err := c.backend.SendChat(ctx, req)
	if err != nil {
		return err
	}
	if reply == nil || !reply.Success || strings.TrimSpace(reply.Message) == "" {
		return ErrInvalidReply
	}

	if reply.Usage != nil {
		log.Debug().
			Int("prompt_tokens", reply.Usage.PromptTokens).
			Int("completion_tokens", reply.Usage.CompletionTokens).
			Int("total_tokens", reply.Usage.TotalTokens).
			Msg("token usage")
	}

	assistant := domain.NewMessage(domain.RoleAssistant, reply.Message, c.now())
	c.display(assistant)

	if err := c.session.AppendTurn(ctx, user, assistant); err != nil {
		log.Error().Err(err).Str("topic", topicName).Msg("failed to save chat history")
	}

	c.archive(ctx, topicName, user, assistant)
	return nil
}

// archive mirrors a turn into the document store. Failures are logged only:
// the displayed chat and the archive may diverge until the next exchange.
func (c *Coordinator) archive(ctx context.Context, topicName string, user, assistant domain.Message) {
	conversationID := c.session.ConversationID()
	if conversationID == "" {
		id, err := c.backend.CreateConversationRecord(ctx, c.userID, topicName)
		if err != nil {
			log.Error().Err(err).Str("topic", topicName).Msg("failed to create conversation record")
			return
		}
		c.session.BindConversationID(id)
		conversationID = c.session.ConversationID()
		log.Info().Str("conversation_id", conversationID).Str("topic", topicName).Msg("created conversation record")
	}

	for _, m := range []domain.Message{user, assistant} {
		if err := c.backend.AppendMessageRecord(ctx, conversationID, m); err != nil {
			log.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to save message record")
			return
		}
	}
}

func (c *Coordinator) enqueue(ctx context.Context, user domain.Message) (Outcome, error) {
	c.mu.Lock()
	c.queuing = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.queuing = false
		c.mu.Unlock()
	}()

	if err := c.outbox.Enqueue(ctx, user); err != nil {
		c.report(Failure{Kind: KindStorage, Message: msgStorage, Err: err})
		return OutcomeFailed, err
	}

	c.notice(noticeQueued)
	return OutcomeQueued, nil
}

// claimSlot takes the send slot for a user submission. A second submission
// while one is pending is rejected with ErrBusy; during a drain the
// submission waits its turn between queued sends.
func (c *Coordinator) claimSlot(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return ErrBusy
	}
	acquired := false
	select {
	case c.slot <- struct{}{}:
		acquired = true
	default:
	}
	if !acquired && !c.draining {
		c.mu.Unlock()
		return ErrBusy
	}
	c.submitting = true
	c.mu.Unlock()

	if !acquired {
		if err := c.acquire(ctx); err != nil {
			c.endSubmit()
			return err
		}
	}
	return nil
}

func (c *Coordinator) endSubmit() {
	c.mu.Lock()
	c.submitting = false
	c.mu.Unlock()
}

func (c *Coordinator) acquire(ctx context.Context) error {
	select {
	case c.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	<-c.slot
}

func (c *Coordinator) setSending(v bool) {
	c.mu.Lock()
	c.sending = v
	c.mu.Unlock()
}

func (c *Coordinator) display(m domain.Message) {
	c.session.Display(m)
	c.observer.MessageAppended(m)
}

func (c *Coordinator) notice(text string) {
	c.display(domain.NewMessage(domain.RoleAssistant, text, c.now()))
}

// report surfaces exactly one message for a failed attempt
func (c *Coordinator) report(f Failure) {
	log.Warn().Err(f.Err).Str("kind", string(f.Kind)).Msg("chat send failed")
	c.session.Display(domain.NewMessage(domain.RoleAssistant, f.Message, c.now()))
	c.observer.ErrorOccurred(f)
}

func preview(content string) string {
	const n = 20
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n]) + "..."
}
