package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"order-agent/internal/conversation"
	"order-agent/internal/lock"
	"order-agent/internal/menu"
	"order-agent/internal/models"
	"order-agent/internal/sessionstore"
	"order-agent/internal/util"
	"order-agent/internal/whatsapp"

	"go.uber.org/zap"
)

var ErrEmptyPhone = errors.New("inbound message has no phone number")

// OrderCommitter turns a confirmed session into a persisted order.
type OrderCommitter interface {
	Commit(ctx context.Context, session models.Session) (models.OrderReference, error)
}

// Agent runs one conversation step per inbound message. Messages for the same phone
// are applied one at a time in arrival order; different phones proceed in parallel.
type Agent struct {
	sessions      sessionstore.Store
	menu          menu.Provider
	committer     OrderCommitter
	locker        lock.Locker
	machine       *conversation.Machine
	sender        whatsapp.Sender
	storeTimeout  time.Duration
	senderTimeout time.Duration
	logger        *zap.Logger
}

// NewAgent creates an agent. Zero timeouts leave calls bounded only by the caller's context.
func NewAgent(
	sessions sessionstore.Store,
	menuProvider menu.Provider,
	committer OrderCommitter,
	locker lock.Locker,
	machine *conversation.Machine,
	sender whatsapp.Sender,
	storeTimeout, senderTimeout time.Duration,
) *Agent {
	return &Agent{
		sessions:      sessions,
		menu:          menuProvider,
		committer:     committer,
		locker:        locker,
		machine:       machine,
		sender:        sender,
		storeTimeout:  storeTimeout,
		senderTimeout: senderTimeout,
		logger:        util.GetLogger(),
	}
}

// HandleInbound applies one customer message and returns the single reply to send.
// A non-empty reply may accompany an error when the customer should still be told
// something; callers send it either way.
func (a *Agent) HandleInbound(ctx context.Context, phone, text string) (string, error) {
	ctx, span := util.StartSpan(ctx, "Agent.HandleInbound")
	defer span.End()

	start := time.Now()
	defer func() {
		util.HandleLatency.Observe(time.Since(start).Seconds())
	}()

	if phone == "" {
		return "", ErrEmptyPhone
	}

	unlock, err := a.locker.Lock(ctx, phone)
	util.LockWaitLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer unlock()

	session, err := a.loadSession(ctx, phone)
	if err != nil {
		util.RecordError(span, err)
		return "", err
	}

	in := conversation.Classify(text, session.State)
	catalog := a.snapshotMenu(ctx, session.State, in)
	res := a.machine.Step(*session, in, catalog)

	util.TransitionsTotal.WithLabelValues(session.State.String(), res.Session.State.String()).Inc()
	a.logger.Debug("Conversation step",
		util.Phone(phone),
		zap.Stringer("input", in.Kind),
		zap.Stringer("from", session.State),
		zap.Stringer("to", res.Session.State),
		zap.Bool("commit", res.Commit),
		zap.Bool("clear", res.Clear))

	reply := res.Reply
	if res.Commit {
		ref, err := a.committer.Commit(ctx, res.Session)
		switch {
		case errors.Is(err, models.ErrIncompleteSession):
			a.logger.Error("Confirmed session is incomplete", util.Phone(phone), zap.Error(err))
			return a.forceReset(ctx, phone)
		case err != nil:
			// The session stays in confirming so a later "yes" retries.
			a.logger.Error("Failed to commit order", util.Phone(phone), zap.Error(err))
			util.RecordError(span, err)
			return conversation.ReplyOrderFailed, nil
		}
		reply = conversation.OrderPlacedReply(ref)
	}

	if res.Clear {
		if in.Kind == conversation.InputCancel || in.Kind == conversation.InputNo {
			util.OrdersCancelledTotal.WithLabelValues(session.State.String()).Inc()
		}
		if err := a.clearSession(ctx, phone); err != nil {
			util.RecordError(span, err)
			return reply, err
		}
		return reply, nil
	}

	next := res.Session
	if err := a.saveSession(ctx, &next); err != nil {
		if errors.Is(err, models.ErrInvalidSession) {
			a.logger.Error("Conversation produced an invalid session", util.Phone(phone), zap.Error(err))
			return a.forceReset(ctx, phone)
		}
		util.RecordError(span, err)
		return "", err
	}

	return reply, nil
}

// Respond handles one message and sends the reply. Send failures are logged and
// returned; the conversation state is already saved.
func (a *Agent) Respond(ctx context.Context, phone, text string) error {
	reply, handleErr := a.HandleInbound(ctx, phone, text)
	if handleErr != nil {
		a.logger.Error("Failed to handle inbound message", util.Phone(phone), zap.Error(handleErr))
	}
	if reply == "" {
		return handleErr
	}

	sendCtx, cancel := a.withTimeout(ctx, a.senderTimeout)
	defer cancel()

	if err := a.sender.Send(sendCtx, phone, reply); err != nil {
		a.logger.Error("Failed to send reply", util.Phone(phone), zap.Error(err))
		return errors.Join(handleErr, fmt.Errorf("failed to send reply: %w", err))
	}
	return handleErr
}

func (a *Agent) loadSession(ctx context.Context, phone string) (*models.Session, error) {
	ctx, cancel := a.withTimeout(ctx, a.storeTimeout)
	defer cancel()

	session, err := a.sessions.GetOrCreate(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if err := session.Validate(); err != nil {
		a.logger.Warn("Discarding invalid stored session", util.Phone(phone), zap.Error(err))
		return models.NewSession(phone), nil
	}
	return session, nil
}

func (a *Agent) saveSession(ctx context.Context, s *models.Session) error {
	ctx, cancel := a.withTimeout(ctx, a.storeTimeout)
	defer cancel()

	if err := a.sessions.Save(ctx, s); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (a *Agent) clearSession(ctx context.Context, phone string) error {
	ctx, cancel := a.withTimeout(ctx, a.storeTimeout)
	defer cancel()

	if err := a.sessions.Clear(ctx, phone); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (a *Agent) forceReset(ctx context.Context, phone string) (string, error) {
	if err := a.clearSession(ctx, phone); err != nil {
		return conversation.ReplySomethingWrong, err
	}
	return conversation.ReplySomethingWrong, nil
}

// snapshotMenu reads the menu only for steps that show or search it. A failed read
// is logged and treated as an empty menu.
func (a *Agent) snapshotMenu(ctx context.Context, state models.ConversationState, in conversation.Input) menu.Catalog {
	if in.Kind == conversation.InputCancel {
		return menu.Catalog{}
	}
	if in.Kind != conversation.InputTrigger && state != models.StateSelectingItem {
		return menu.Catalog{}
	}

	ctx, cancel := a.withTimeout(ctx, a.storeTimeout)
	defer cancel()

	catalog, err := menu.Load(ctx, a.menu)
	if err != nil {
		a.logger.Error("Failed to load menu", zap.Error(err))
		return menu.Catalog{}
	}
	return catalog
}

func (a *Agent) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
