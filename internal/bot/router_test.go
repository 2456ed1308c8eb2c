package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kk2215/okan-ai/internal/domain"
	"github.com/kk2215/okan-ai/internal/line"
	"github.com/kk2215/okan-ai/internal/store"
)

type memRepo struct {
	mu        sync.Mutex
	profiles  map[string]*domain.UserProfile
	reminders map[string]*domain.Reminder
}

var _ store.Repo = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		profiles:  map[string]*domain.UserProfile{},
		reminders: map[string]*domain.Reminder{},
	}
}

func (m *memRepo) GetProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) UpsertProfile(_ context.Context, p *domain.UserProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.profiles[p.UserID] = &cp
	return nil
}

func (m *memRepo) DeleteProfile(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.profiles, userID)
	return nil
}

func (m *memRepo) ListComplete(_ context.Context) ([]domain.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.UserProfile
	for _, p := range m.profiles {
		if p.SetupState == domain.StateComplete {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memRepo) AddReminder(_ context.Context, rem *domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rem
	m.reminders[rem.ID] = &cp
	return nil
}

func (m *memRepo) ListDueReminders(_ context.Context, now time.Time) ([]domain.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reminder
	for _, rem := range m.reminders {
		if !rem.DueAt.After(now) {
			out = append(out, *rem)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteReminders(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.reminders, id)
	}
	return nil
}

func (m *memRepo) Close() error { return nil }

type recordingReplier struct {
	mu      sync.Mutex
	replies map[string][]string // replyToken -> texts of the last reply
}

func newRecordingReplier() *recordingReplier {
	return &recordingReplier{replies: map[string][]string{}}
}

func (r *recordingReplier) Reply(_ context.Context, token string, texts []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies[token] = texts
	return nil
}

func textEvent(userID, token, text string) line.Event {
	var ev line.Event
	ev.Type = line.EventMessage
	ev.ReplyToken = token
	ev.Source.UserID = userID
	ev.Message.Type = "text"
	ev.Message.Text = text
	return ev
}

func newTestRouter() (*Router, *memRepo, *recordingReplier) {
	m, _, _ := newTestMachine()
	repo := newMemRepo()
	gw := newRecordingReplier()
	return NewRouter(repo, gw, m, zap.NewNop()), repo, gw
}

func TestRouter_FirstContactCreatesProfileAndGreets(t *testing.T) {
	r, repo, gw := newTestRouter()

	r.HandleEvents(context.Background(), []line.Event{textEvent("U1", "rt1", "なんか用？")})

	p, err := repo.GetProfile(context.Background(), "U1")
	if err != nil {
		t.Fatalf("profile not created: %v", err)
	}
	if p.SetupState != domain.StateAwaitingLocation {
		t.Fatalf("state: %v", p.SetupState)
	}
	if got := gw.replies["rt1"]; len(got) != 1 || got[0] != greetingText {
		t.Fatalf("reply: %v", got)
	}
}

func TestRouter_ResetWinsFromAnyState(t *testing.T) {
	r, repo, gw := newTestRouter()
	p := completeProfile()
	if err := repo.UpsertProfile(context.Background(), p); err != nil {
		t.Fatal(err)
	}

	r.HandleEvents(context.Background(), []line.Event{textEvent("U1", "rt1", "リセット")})

	if _, err := repo.GetProfile(context.Background(), "U1"); err != store.ErrNotFound {
		t.Fatalf("profile should be gone, got %v", err)
	}
	if got := gw.replies["rt1"]; len(got) != 1 || got[0] != resetDoneText {
		t.Fatalf("reply: %v", got)
	}

	// the next message starts onboarding over
	r.HandleEvents(context.Background(), []line.Event{textEvent("U1", "rt2", "こんにちは")})
	p2, err := repo.GetProfile(context.Background(), "U1")
	if err != nil || p2.SetupState != domain.StateAwaitingLocation {
		t.Fatalf("onboarding not restarted: %+v %v", p2, err)
	}
}

func TestRouter_PersistsMachineMutations(t *testing.T) {
	r, repo, _ := newTestRouter()
	if err := repo.UpsertProfile(context.Background(), domain.NewProfile("U1", testNow())); err != nil {
		t.Fatal(err)
	}

	r.HandleEvents(context.Background(), []line.Event{textEvent("U1", "rt1", "豊島区")})

	p, _ := repo.GetProfile(context.Background(), "U1")
	if p.SetupState != domain.StateAwaitingTime || p.Location != "豊島区" {
		t.Fatalf("mutation not persisted: %+v", p)
	}
}

func TestRouter_ReminderPersisted(t *testing.T) {
	r, repo, _ := newTestRouter()
	if err := repo.UpsertProfile(context.Background(), completeProfile()); err != nil {
		t.Fatal(err)
	}

	r.HandleEvents(context.Background(), []line.Event{textEvent("U1", "rt1", "10分後にお茶って覚えといて")})

	due, err := repo.ListDueReminders(context.Background(), time.Now().Add(time.Hour))
	if err != nil || len(due) != 1 {
		t.Fatalf("reminder rows: %v %v", due, err)
	}
	if due[0].Task != "お茶" || due[0].UserID != "U1" {
		t.Fatalf("reminder: %+v", due[0])
	}
}

func TestRouter_IgnoresIrrelevantEvents(t *testing.T) {
	r, repo, gw := newTestRouter()

	var sticker line.Event
	sticker.Type = line.EventMessage
	sticker.ReplyToken = "rt1"
	sticker.Source.UserID = "U1"
	sticker.Message.Type = "sticker"

	r.HandleEvents(context.Background(), []line.Event{sticker})

	if _, err := repo.GetProfile(context.Background(), "U1"); err != store.ErrNotFound {
		t.Fatalf("sticker must not create a profile: %v", err)
	}
	if len(gw.replies) != 0 {
		t.Fatalf("unexpected replies: %v", gw.replies)
	}
}

func TestRouter_FollowEventStartsOnboarding(t *testing.T) {
	r, repo, gw := newTestRouter()

	var follow line.Event
	follow.Type = line.EventFollow
	follow.ReplyToken = "rt1"
	follow.Source.UserID = "U2"

	r.HandleEvents(context.Background(), []line.Event{follow})

	p, err := repo.GetProfile(context.Background(), "U2")
	if err != nil || p.SetupState != domain.StateAwaitingLocation {
		t.Fatalf("profile: %+v %v", p, err)
	}
	if got := gw.replies["rt1"]; len(got) != 1 || got[0] != greetingText {
		t.Fatalf("reply: %v", got)
	}
}

func TestRouter_UserLocksEvictedAfterBatch(t *testing.T) {
	r, _, _ := newTestRouter()

	r.HandleEvents(context.Background(), []line.Event{
		textEvent("U1", "rt1", "豊島区"),
		textEvent("U1", "rt2", "朝8時"),
		textEvent("U2", "rt3", "豊島区"),
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.locks) != 0 {
		t.Fatalf("lock map must be empty after the batch: %v", r.locks)
	}
}
