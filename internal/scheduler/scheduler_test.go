package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kk2215/okan-ai/internal/domain"
	"github.com/kk2215/okan-ai/internal/store"
	"github.com/kk2215/okan-ai/internal/weather"
)

type memRepo struct {
	mu        sync.Mutex
	profiles  map[string]*domain.UserProfile
	reminders map[string]*domain.Reminder
	deleteErr error
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
	if m.deleteErr != nil {
		return m.deleteErr
	}
	for _, id := range ids {
		delete(m.reminders, id)
	}
	return nil
}

func (m *memRepo) Close() error { return nil }

type fakePusher struct {
	mu     sync.Mutex
	pushed map[string][]string // userID -> all texts, in order
	err    error
}

func newFakePusher() *fakePusher {
	return &fakePusher{pushed: map[string][]string{}}
}

func (f *fakePusher) Push(_ context.Context, userID string, texts []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushed[userID] = append(f.pushed[userID], texts...)
	return nil
}

type fakeWeather struct {
	report weather.Report
	err    error
}

func (f *fakeWeather) Current(context.Context, float64, float64, string) (weather.Report, error) {
	return f.report, f.err
}

type fakeStatus struct {
	status string
	err    error
}

func (f *fakeStatus) Status(context.Context, string) (string, error) {
	return f.status, f.err
}

func completeProfile(userID string) *domain.UserProfile {
	p := domain.NewProfile(userID, time.Now())
	p.SetupState = domain.StateComplete
	p.Location = "豊島区"
	p.Prefecture = "東京都"
	p.TrainLine = "JR山手線"
	p.GarbageDays = map[int]string{}
	return p
}

func TestSweep_AtMostOnceEvenWhenPushFails(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	s := New(repo, zap.NewNop(), pusher, &fakeWeather{}, nil, "08:00")

	now := time.Now().UTC()
	_ = repo.AddReminder(context.Background(), &domain.Reminder{
		ID: "r1", UserID: "U1", DueAt: now.Add(-time.Minute), Task: "薬を飲む",
	})

	pusher.err = errors.New("push down")
	s.sweepReminders(context.Background(), now)

	// the due row was removed before the failed push
	due, _ := repo.ListDueReminders(context.Background(), now)
	if len(due) != 0 {
		t.Fatalf("due reminder survived the sweep: %v", due)
	}

	// next sweep must not redeliver
	pusher.err = nil
	s.sweepReminders(context.Background(), now.Add(time.Minute))
	if len(pusher.pushed["U1"]) != 0 {
		t.Fatalf("reminder redelivered: %v", pusher.pushed["U1"])
	}
}

func TestSweep_DeliversAndPartitionsByDue(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	s := New(repo, zap.NewNop(), pusher, &fakeWeather{}, nil, "08:00")

	now := time.Now().UTC()
	_ = repo.AddReminder(context.Background(), &domain.Reminder{
		ID: "due", UserID: "U1", DueAt: now.Add(-time.Second), Task: "電話",
	})
	_ = repo.AddReminder(context.Background(), &domain.Reminder{
		ID: "later", UserID: "U1", DueAt: now.Add(time.Hour), Task: "買い物",
	})

	s.sweepReminders(context.Background(), now)

	if got := pusher.pushed["U1"]; len(got) != 1 || !strings.Contains(got[0], "電話") {
		t.Fatalf("pushed: %v", got)
	}
	remaining, _ := repo.ListDueReminders(context.Background(), now.Add(2*time.Hour))
	if len(remaining) != 1 || remaining[0].ID != "later" {
		t.Fatalf("not-due reminder must be retained: %v", remaining)
	}
}

func TestSweep_DeleteFailureSkipsPush(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	s := New(repo, zap.NewNop(), pusher, &fakeWeather{}, nil, "08:00")

	now := time.Now().UTC()
	_ = repo.AddReminder(context.Background(), &domain.Reminder{
		ID: "r1", UserID: "U1", DueAt: now.Add(-time.Minute), Task: "薬",
	})
	repo.deleteErr = errors.New("db locked")

	s.sweepReminders(context.Background(), now)
	if len(pusher.pushed["U1"]) != 0 {
		t.Fatal("push must not happen when the delete failed")
	}

	// once the store recovers, the same reminder goes out exactly once
	repo.deleteErr = nil
	s.sweepReminders(context.Background(), now)
	if len(pusher.pushed["U1"]) != 1 {
		t.Fatalf("pushed: %v", pusher.pushed["U1"])
	}
}

func TestDigest_DegradedWeatherSectionStillSends(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	ws := &fakeWeather{err: errors.New("weather api down")}
	s := New(repo, zap.NewNop(), pusher, ws, &fakeStatus{status: "平常運転"}, "08:00")

	now := time.Now()
	p := completeProfile("U1")
	p.GarbageDays[int(now.In(domain.JST()).Weekday())] = "可燃ゴミ"
	_ = repo.UpsertProfile(context.Background(), p)

	s.runDigest(context.Background(), now)

	got := pusher.pushed["U1"]
	if len(got) != 1 {
		t.Fatalf("want one digest, got %v", got)
	}
	if !strings.Contains(got[0], "天気情報がうまく取れへんかった") {
		t.Fatalf("weather section not degraded: %q", got[0])
	}
	if !strings.Contains(got[0], "可燃ゴミ") || !strings.Contains(got[0], "JR山手線") {
		t.Fatalf("other sections must stay intact: %q", got[0])
	}
}

func TestDigest_OnlyCompleteProfiles(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	s := New(repo, zap.NewNop(), pusher, &fakeWeather{report: weather.Report{Description: "晴れ", TempC: 24}}, nil, "08:00")

	_ = repo.UpsertProfile(context.Background(), completeProfile("U1"))
	_ = repo.UpsertProfile(context.Background(), domain.NewProfile("U2", time.Now()))

	s.runDigest(context.Background(), time.Now())

	if len(pusher.pushed["U1"]) != 1 {
		t.Fatalf("complete profile must get a digest: %v", pusher.pushed)
	}
	if len(pusher.pushed["U2"]) != 0 {
		t.Fatalf("incomplete profile must not: %v", pusher.pushed)
	}
}

func TestDigest_FiresOncePerDate(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	s := New(repo, zap.NewNop(), pusher, &fakeWeather{report: weather.Report{Description: "晴れ"}}, nil, "08:00")

	_ = repo.UpsertProfile(context.Background(), completeProfile("U1"))

	at := time.Date(2025, time.June, 4, 8, 0, 10, 0, domain.JST())
	s.maybeRunDigest(context.Background(), at)
	s.maybeRunDigest(context.Background(), at.Add(20*time.Second))
	if len(pusher.pushed["U1"]) != 1 {
		t.Fatalf("digest must fire once per date: %v", pusher.pushed["U1"])
	}

	// off the wall-clock minute: no fire
	s.maybeRunDigest(context.Background(), at.Add(time.Hour))
	if len(pusher.pushed["U1"]) != 1 {
		t.Fatalf("digest fired off schedule: %v", pusher.pushed["U1"])
	}

	// next day fires again
	s.maybeRunDigest(context.Background(), at.AddDate(0, 0, 1))
	if len(pusher.pushed["U1"]) != 2 {
		t.Fatalf("digest must fire on the next date: %v", pusher.pushed["U1"])
	}
}

func TestDigest_NegativeTemperatureRounds(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	ws := &fakeWeather{report: weather.Report{Description: "雪", TempC: -2.4}}
	s := New(repo, zap.NewNop(), pusher, ws, nil, "08:00")

	_ = repo.UpsertProfile(context.Background(), completeProfile("U1"))
	s.runDigest(context.Background(), time.Now())

	got := pusher.pushed["U1"]
	if len(got) != 1 || !strings.Contains(got[0], "-2度") {
		t.Fatalf("want -2度, got %v", got)
	}
}

func TestDigest_RainAddsUmbrellaLine(t *testing.T) {
	repo := newMemRepo()
	pusher := newFakePusher()
	ws := &fakeWeather{report: weather.Report{Description: "小雨", TempC: 18, Rain: true}}
	s := New(repo, zap.NewNop(), pusher, ws, nil, "08:00")

	_ = repo.UpsertProfile(context.Background(), completeProfile("U1"))
	s.runDigest(context.Background(), time.Now())

	if got := pusher.pushed["U1"]; len(got) != 1 || !strings.Contains(got[0], "傘") {
		t.Fatalf("want umbrella heads-up: %v", got)
	}
}
