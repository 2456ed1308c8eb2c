// Package scheduler runs the two periodic jobs: the daily morning digest
// and the per-minute reminder sweep.
package scheduler

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kk2215/okan-ai/internal/domain"
	"github.com/kk2215/okan-ai/internal/store"
	"github.com/kk2215/okan-ai/internal/weather"
)

// Pusher is the minimal outbound interface both jobs need.
type Pusher interface {
	Push(ctx context.Context, userID string, texts []string) error
}

// WeatherSource provides current conditions for the digest.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64, place string) (weather.Report, error)
}

// LineStatusSource provides service-status text for a train line.
type LineStatusSource interface {
	Status(ctx context.Context, lineName string) (string, error)
}

// Scheduler polls the store on two independent timers and dispatches
// pushes. Both jobs are idempotent and safe to run alongside message
// handling.
type Scheduler struct {
	repo    store.Repo
	log     *zap.Logger
	pusher  Pusher
	weather WeatherSource
	status  LineStatusSource

	digestAt string // "15:04" wall clock in JST
	interval time.Duration

	lastDigestDate string // "2006-01-02" of the last digest run
}

// New creates a Scheduler. status may be nil when no train-status endpoint
// is configured; the digest then assumes normal service, as the original
// behavior did.
//
// TODO: honor each profile's stored NotificationTime instead of one global
// digestAt; needs a per-user next-digest column and a due query.
func New(repo store.Repo, log *zap.Logger, pusher Pusher, ws WeatherSource, status LineStatusSource, digestAt string) *Scheduler {
	if digestAt == "" {
		digestAt = "08:00"
	}
	return &Scheduler{
		repo:     repo,
		log:      log,
		pusher:   pusher,
		weather:  ws,
		status:   status,
		digestAt: digestAt,
		interval: time.Minute,
	}
}

// Run starts both timer loops until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			now := time.Now()
			s.maybeRunDigest(ctx, now)
			s.sweepReminders(ctx, now)
		}
	}
}

// maybeRunDigest fires the digest when the JST wall clock reaches digestAt,
// at most once per date.
func (s *Scheduler) maybeRunDigest(ctx context.Context, now time.Time) {
	local := now.In(domain.JST())
	if local.Format("15:04") != s.digestAt {
		return
	}
	date := local.Format("2006-01-02")
	if s.lastDigestDate == date {
		return
	}
	s.lastDigestDate = date
	s.runDigest(ctx, now)
}

// runDigest composes and pushes the morning message for every profile that
// finished setup. A failing sub-lookup degrades its section; a failing push
// skips only that user.
func (s *Scheduler) runDigest(ctx context.Context, now time.Time) {
	profiles, err := s.repo.ListComplete(ctx)
	if err != nil {
		s.log.Error("list complete profiles failed", zap.Error(err))
		return
	}
	s.log.Info("running daily digest", zap.Int("profiles", len(profiles)))

	for _, p := range profiles {
		msg := s.composeDigest(ctx, &p, now)
		if err := s.pusher.Push(ctx, p.UserID, []string{msg}); err != nil {
			s.log.Error("digest push failed", zap.Error(err), zap.String("user", p.UserID))
		}
	}
}

func (s *Scheduler) composeDigest(ctx context.Context, p *domain.UserProfile, now time.Time) string {
	var b strings.Builder
	b.WriteString("おはよー！朝やで！\n")

	b.WriteString("\n" + s.weatherSection(ctx, p) + "\n")

	weekday := int(now.In(domain.JST()).Weekday())
	if cat, ok := p.GarbageDays[weekday]; ok {
		b.WriteString(fmt.Sprintf("\n今日は「%s」の日やで！忘れんといてや！🚮\n", cat))
	}

	if p.TrainLine != "" {
		b.WriteString("\n" + s.lineSection(ctx, p.TrainLine))
	}
	return b.String()
}

func (s *Scheduler) weatherSection(ctx context.Context, p *domain.UserProfile) string {
	rep, err := s.weather.Current(ctx, p.Lat, p.Lon, p.Location)
	if err != nil {
		s.log.Warn("weather lookup failed", zap.Error(err), zap.String("user", p.UserID))
		return "ごめん、天気情報がうまく取れへんかったわ…"
	}
	msg := fmt.Sprintf("今日の%sの天気は「%s」、気温は%d度くらいやで。", p.Location, rep.Description, int(math.Round(rep.TempC)))
	if rep.Rain {
		msg += "\n雨が降りそうやから、傘持って行ったほうがええよ！☔"
	}
	return msg
}

func (s *Scheduler) lineSection(ctx context.Context, lineName string) string {
	if s.status == nil {
		return fmt.Sprintf("%sは、たぶん平常運転やで！いってらっしゃい！", lineName)
	}
	st, err := s.status.Status(ctx, lineName)
	if err != nil {
		s.log.Warn("line status lookup failed", zap.Error(err), zap.String("line", lineName))
		return fmt.Sprintf("%sの運行情報はうまく取れへんかったわ。気をつけて行ってな！", lineName)
	}
	return fmt.Sprintf("%sは「%s」やって。いってらっしゃい！", lineName, st)
}

// sweepReminders delivers due reminders. Due rows are deleted from the
// store before any push goes out, so a push failure cannot cause a
// redelivery on the next sweep (at-most-once).
func (s *Scheduler) sweepReminders(ctx context.Context, now time.Time) {
	due, err := s.repo.ListDueReminders(ctx, now)
	if err != nil {
		s.log.Error("list due reminders failed", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	byUser := map[string][]domain.Reminder{}
	for _, rem := range due {
		byUser[rem.UserID] = append(byUser[rem.UserID], rem)
	}

	for userID, rems := range byUser {
		ids := make([]string, len(rems))
		for i, rem := range rems {
			ids[i] = rem.ID
		}
		// persist-before-push: if the delete fails, skip the pushes and
		// let the next sweep retry the whole batch
		if err := s.repo.DeleteReminders(ctx, ids); err != nil {
			s.log.Error("delete due reminders failed", zap.Error(err), zap.String("user", userID))
			continue
		}
		for _, rem := range rems {
			text := fmt.Sprintf("おかんやで！時間やで！\n\n「%s」\n\n忘れたらあかんで！", rem.Task)
			if err := s.pusher.Push(ctx, userID, []string{text}); err != nil {
				s.log.Error("reminder push failed", zap.Error(err), zap.String("user", userID))
			}
		}
	}
}
