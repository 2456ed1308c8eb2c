package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kk2215/okan-ai/internal/domain"
	"github.com/kk2215/okan-ai/internal/line"
	"github.com/kk2215/okan-ai/internal/store"
)

// resetToken wipes the profile from any state, checked before everything
// else.
const resetToken = "リセット"

// Replier is the outbound side the router needs for inbound events.
type Replier interface {
	Reply(ctx context.Context, replyToken string, texts []string) error
}

// Router dispatches webhook events to the state machine. Events within a
// batch run concurrently, but events for the same user are serialized
// because the machine's read-modify-write on a profile is not safe to
// interleave.
type Router struct {
	repo    store.Repo
	gw      Replier
	machine *Machine
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*userLock
}

// userLock serializes events for one user. Entries are refcounted and
// evicted when the last holder releases, so the map only holds users with
// in-flight events.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewRouter creates a router.
func NewRouter(repo store.Repo, gw Replier, machine *Machine, log *zap.Logger) *Router {
	return &Router{
		repo:    repo,
		gw:      gw,
		machine: machine,
		log:     log,
		locks:   map[string]*userLock{},
	}
}

// acquireUser takes the user's lock and returns the release func.
func (r *Router) acquireUser(userID string) func() {
	r.mu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, userID)
		}
		r.mu.Unlock()
	}
}

// HandleEvents processes one webhook batch. Per-event failures are logged
// and do not fail the batch.
func (r *Router) HandleEvents(ctx context.Context, events []line.Event) {
	var wg sync.WaitGroup
	for _, ev := range events {
		if !relevant(ev) {
			continue
		}
		wg.Add(1)
		go func(ev line.Event) {
			defer wg.Done()
			release := r.acquireUser(ev.Source.UserID)
			defer release()
			r.handleEvent(ctx, ev)
		}(ev)
	}
	wg.Wait()
}

func relevant(ev line.Event) bool {
	if ev.Source.UserID == "" {
		return false
	}
	if ev.Type == line.EventFollow {
		return true
	}
	return ev.Type == line.EventMessage && ev.Message.Type == "text"
}

func (r *Router) handleEvent(ctx context.Context, ev line.Event) {
	userID := ev.Source.UserID
	now := time.Now()

	profile, err := r.repo.GetProfile(ctx, userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		// first contact: create the profile and greet; the triggering text
		// itself is not interpreted
		profile = domain.NewProfile(userID, now)
		if err := r.repo.UpsertProfile(ctx, profile); err != nil {
			r.log.Error("create profile failed", zap.Error(err), zap.String("user", userID))
			r.reply(ctx, ev.ReplyToken, troubleText)
			return
		}
		r.log.Info("onboarding started", zap.String("user", userID))
		r.reply(ctx, ev.ReplyToken, greetingText)
		return
	case err != nil:
		r.log.Error("load profile failed", zap.Error(err), zap.String("user", userID))
		r.reply(ctx, ev.ReplyToken, troubleText)
		return
	}

	if ev.Type == line.EventFollow {
		// re-follow with an existing profile: greet again, keep state
		r.reply(ctx, ev.ReplyToken, greetingText)
		return
	}

	text := strings.TrimSpace(ev.Message.Text)

	// reset wins over every state, including Complete
	if text == resetToken {
		if err := r.repo.DeleteProfile(ctx, userID); err != nil {
			r.log.Error("reset failed", zap.Error(err), zap.String("user", userID))
			r.reply(ctx, ev.ReplyToken, troubleText)
			return
		}
		r.log.Info("profile reset", zap.String("user", userID))
		r.reply(ctx, ev.ReplyToken, resetDoneText)
		return
	}

	res := r.machine.HandleText(ctx, profile, text, now)

	// fail before mutation is visible: persist first, then reply
	if err := r.repo.UpsertProfile(ctx, profile); err != nil {
		r.log.Error("save profile failed", zap.Error(err), zap.String("user", userID))
		r.reply(ctx, ev.ReplyToken, troubleText)
		return
	}
	if res.NewReminder != nil {
		if err := r.repo.AddReminder(ctx, res.NewReminder); err != nil {
			r.log.Error("save reminder failed", zap.Error(err), zap.String("user", userID))
			r.reply(ctx, ev.ReplyToken, troubleText)
			return
		}
	}
	r.reply(ctx, ev.ReplyToken, res.Replies...)
}

func (r *Router) reply(ctx context.Context, replyToken string, texts ...string) {
	if replyToken == "" || len(texts) == 0 {
		return
	}
	if err := r.gw.Reply(ctx, replyToken, texts); err != nil {
		r.log.Error("reply failed", zap.Error(err))
	}
}
