package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/kk2215/okan-ai/internal/domain"
	"github.com/kk2215/okan-ai/internal/geo"
	"github.com/kk2215/okan-ai/internal/transit"
)

// LocationResolver resolves free-text place names to candidates.
type LocationResolver interface {
	Resolve(ctx context.Context, text string) ([]geo.Place, error)
}

// StationFinder resolves station names to stop records.
type StationFinder interface {
	FindStops(ctx context.Context, name string) ([]transit.Stop, error)
}

// The LINE quick-reply sheet holds at most 13 items.
const maxLineChoices = 13

// Machine drives the onboarding dialogue and, once setup is complete,
// routes free text to feature handlers. It mutates only the profile passed
// in; persistence is the caller's job.
type Machine struct {
	locations LocationResolver
	stations  StationFinder

	// SplitRouteSetup asks for the departure and arrival stations in two
	// separate messages instead of one combined 「AからB」 message.
	SplitRouteSetup bool

	rng *rand.Rand
}

// Result is the outcome of handling one message.
type Result struct {
	Replies []string
	// NewReminder is set when the message created a reminder; the caller
	// persists it.
	NewReminder *domain.Reminder
}

// NewMachine builds a state machine over the given resolvers.
func NewMachine(locations LocationResolver, stations StationFinder) *Machine {
	return &Machine{
		locations: locations,
		stations:  stations,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func reply(texts ...string) Result { return Result{Replies: texts} }

// HandleText interprets one inbound text message against the profile's
// current state. Input-format misses and resolver failures produce a
// re-prompt and leave the state unchanged; the machine never returns an
// error to the caller.
func (m *Machine) HandleText(ctx context.Context, p *domain.UserProfile, text string, now time.Time) Result {
	text = strings.TrimSpace(text)

	switch p.SetupState {
	case domain.StateAwaitingLocation:
		return m.handleLocation(ctx, p, text)
	case domain.StateAwaitingPrefecture:
		return m.handlePrefecture(p, text)
	case domain.StateAwaitingTime:
		return m.handleTime(p, text)
	case domain.StateAwaitingRoute:
		return m.handleRoute(ctx, p, text)
	case domain.StateAwaitingDeparture:
		return m.handleDeparture(ctx, p, text)
	case domain.StateAwaitingArrival:
		return m.handleArrival(ctx, p, text)
	case domain.StateAwaitingLineSelect:
		return m.handleLineSelect(p, text)
	case domain.StateAwaitingGarbage:
		return m.handleGarbage(p, text)
	case domain.StateComplete:
		return m.handleComplete(p, text, now)
	}
	// unreachable with a well-formed profile; restart onboarding
	p.SetupState = domain.StateAwaitingLocation
	return reply(locationReaskText)
}

func (m *Machine) handleLocation(ctx context.Context, p *domain.UserProfile, text string) Result {
	if text == "" {
		return reply(fmt.Sprintf(locationNotFoundFmt, text))
	}
	places, err := m.locations.Resolve(ctx, text)
	if err != nil {
		return reply(troubleText)
	}
	if len(places) == 0 {
		return reply(fmt.Sprintf(locationNotFoundFmt, text))
	}

	prefs := geo.Prefectures(places)
	if len(prefs) > 1 {
		p.Scratch = toCandidates(places)
		p.SetupState = domain.StateAwaitingPrefecture
		return reply(fmt.Sprintf(prefectureAskFmt, text, bulletList(prefs)))
	}

	// one candidate, or several within the same prefecture: take the first
	m.setLocation(p, places[0])
	return reply(fmt.Sprintf(locationSavedFmt, places[0].Prefecture+places[0].Name))
}

func (m *Machine) handlePrefecture(p *domain.UserProfile, text string) Result {
	if len(p.Scratch) == 0 {
		// scratch lost or never set; fail safe by restarting onboarding
		p.SetupState = domain.StateAwaitingLocation
		return reply(locationReaskText)
	}

	choices := candidatePrefectures(p.Scratch)
	for _, c := range p.Scratch {
		if c.Prefecture == text {
			m.setLocation(p, geo.Place(c))
			return reply(fmt.Sprintf(locationSavedFmt, c.Prefecture+c.Name))
		}
	}
	return reply(fmt.Sprintf(prefectureRetryFmt, bulletList(choices)))
}

// setLocation stores a resolved home area, clears scratch and advances to
// the notification-time step.
func (m *Machine) setLocation(p *domain.UserProfile, place geo.Place) {
	p.Location = place.Name
	p.Prefecture = place.Prefecture
	p.Lat = place.Lat
	p.Lon = place.Lon
	p.Scratch = nil
	p.SetupState = domain.StateAwaitingTime
}

func (m *Machine) handleTime(p *domain.UserProfile, text string) Result {
	if text == "" {
		return reply(fmt.Sprintf(locationSavedFmt, p.Prefecture+p.Location))
	}
	p.NotificationTime = text
	if m.SplitRouteSetup {
		p.SetupState = domain.StateAwaitingDeparture
		return reply(fmt.Sprintf(timeSavedSplitFmt, text))
	}
	p.SetupState = domain.StateAwaitingRoute
	return reply(fmt.Sprintf(timeSavedCombinedFmt, text))
}

func (m *Machine) handleRoute(ctx context.Context, p *domain.UserProfile, text string) Result {
	parts := strings.SplitN(text, "から", 2)
	if len(parts) != 2 {
		return reply(routeFormatHint)
	}
	depName := strings.TrimSpace(parts[0])
	arrName := strings.TrimSpace(parts[1])
	if depName == "" || arrName == "" {
		return reply(routeFormatHint)
	}

	dep, res := m.resolveStation(ctx, p, depName)
	if dep == nil {
		return res
	}
	arr, res := m.resolveStation(ctx, p, arrName)
	if arr == nil {
		return res
	}
	return m.finishRoute(p, *dep, *arr)
}

func (m *Machine) handleDeparture(ctx context.Context, p *domain.UserProfile, text string) Result {
	dep, res := m.resolveStation(ctx, p, text)
	if dep == nil {
		return res
	}
	p.DepartureStation = dep.Name
	p.SetupState = domain.StateAwaitingArrival
	return reply(fmt.Sprintf(arrivalAskFmt, dep.Name))
}

func (m *Machine) handleArrival(ctx context.Context, p *domain.UserProfile, text string) Result {
	arr, res := m.resolveStation(ctx, p, text)
	if arr == nil {
		return res
	}
	// the departure stop's line set is not kept across messages
	dep, res := m.resolveStation(ctx, p, p.DepartureStation)
	if dep == nil {
		return res
	}
	return m.finishRoute(p, *dep, *arr)
}

// resolveStation finds a station by name, preferring the user's home
// prefecture. A nil stop means the returned Result is the reply to send.
func (m *Machine) resolveStation(ctx context.Context, p *domain.UserProfile, name string) (*transit.Stop, Result) {
	if name == "" {
		return nil, reply(routeFormatHint)
	}
	stops, err := m.stations.FindStops(ctx, name)
	if err != nil {
		return nil, reply(troubleText)
	}
	stop, ok := transit.PickStop(stops, p.Prefecture)
	if !ok {
		return nil, reply(fmt.Sprintf(stationNotFoundFmt, name))
	}
	return &stop, Result{}
}

// finishRoute stores both endpoints and decides the commute line from their
// common lines.
func (m *Machine) finishRoute(p *domain.UserProfile, dep, arr transit.Stop) Result {
	p.DepartureStation = dep.Name
	p.ArrivalStation = arr.Name

	common := transit.CommonLines(dep, arr)
	switch {
	case len(common) == 0:
		// setup is not blocked by an unresolvable line
		p.TrainLine = ""
		p.SetupState = domain.StateAwaitingGarbage
		return reply(noCommonLineGarbage)
	case len(common) == 1:
		p.TrainLine = common[0]
		p.SetupState = domain.StateAwaitingGarbage
		return reply(fmt.Sprintf(lineSavedGarbageFmt, common[0]))
	default:
		if len(common) > maxLineChoices {
			common = common[:maxLineChoices]
		}
		p.LineChoices = common
		p.SetupState = domain.StateAwaitingLineSelect
		return reply(fmt.Sprintf(lineChooseFmt, dep.Name, arr.Name, bulletList(common)))
	}
}

// handleLineSelect accepts the answer verbatim; it is deliberately not
// validated against the offered candidates.
func (m *Machine) handleLineSelect(p *domain.UserProfile, text string) Result {
	if text == "" {
		return reply(fmt.Sprintf(lineChooseFmt, p.DepartureStation, p.ArrivalStation, bulletList(p.LineChoices)))
	}
	p.TrainLine = text
	p.LineChoices = nil
	p.SetupState = domain.StateAwaitingGarbage
	return reply(fmt.Sprintf(lineSavedGarbageFmt, text))
}

func (m *Machine) handleGarbage(p *domain.UserProfile, text string) Result {
	if domain.IsGarbageDone(text) {
		p.SetupState = domain.StateComplete
		return reply(setupDoneText)
	}
	category, weekday, ok := domain.ParseGarbageEntry(text)
	if !ok {
		return reply(garbageFormatHint)
	}
	if p.GarbageDays == nil {
		p.GarbageDays = map[int]string{}
	}
	p.GarbageDays[weekday] = category
	return reply(fmt.Sprintf(garbageSavedFmt, category, domain.WeekdayKanji(weekday)))
}

func toCandidates(places []geo.Place) []domain.Candidate {
	out := make([]domain.Candidate, 0, len(places))
	for _, p := range places {
		out = append(out, domain.Candidate(p))
	}
	return out
}

func candidatePrefectures(cands []domain.Candidate) []string {
	var out []string
	seen := map[string]bool{}
	for _, c := range cands {
		if !seen[c.Prefecture] {
			seen[c.Prefecture] = true
			out = append(out, c.Prefecture)
		}
	}
	return out
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("・" + it)
	}
	return b.String()
}
