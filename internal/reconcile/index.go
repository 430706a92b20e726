package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/repository"
	"github.com/yourusername/tipwatch/internal/tracks"
)

type meetingKey struct {
	state     string
	canonical string
}

type raceKey struct {
	meetingID  uuid.UUID
	raceNumber int
}

type runnerKey struct {
	raceID    uuid.UUID
	tabNumber int
}

// dayIndex holds the meetings and races of one date, kept current as feeds
// create or patch them during a run.
type dayIndex struct {
	date      time.Time
	meetings  []*models.Meeting
	byID      map[uuid.UUID]*models.Meeting
	byKey     map[meetingKey]*models.Meeting
	byPF      map[int]*models.Meeting
	byCode    map[string]*models.Meeting
	races     map[raceKey]*models.Race
	raceByID  map[uuid.UUID]*models.Race
	raceOrder []uuid.UUID
}

func loadDay(ctx context.Context, repos *repository.Repositories, date time.Time) (*dayIndex, error) {
	meetings, err := repos.Meeting.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load meetings: %w", err)
	}

	idx := &dayIndex{
		date:     date,
		byID:     make(map[uuid.UUID]*models.Meeting),
		byKey:    make(map[meetingKey]*models.Meeting),
		byPF:     make(map[int]*models.Meeting),
		byCode:   make(map[string]*models.Meeting),
		races:    make(map[raceKey]*models.Race),
		raceByID: make(map[uuid.UUID]*models.Race),
	}
	ids := make([]uuid.UUID, 0, len(meetings))
	for _, m := range meetings {
		idx.addMeeting(m)
		ids = append(ids, m.ID)
	}

	races, err := repos.Race.ListByMeetings(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load races: %w", err)
	}
	for _, r := range races {
		idx.addRace(r)
	}
	return idx, nil
}

func keyOf(state, track string) meetingKey {
	return meetingKey{state: strings.ToUpper(strings.TrimSpace(state)), canonical: tracks.Canonical(track)}
}

func (idx *dayIndex) addMeeting(m *models.Meeting) {
	if _, ok := idx.byID[m.ID]; !ok {
		idx.meetings = append(idx.meetings, m)
	}
	idx.byID[m.ID] = m
	key := keyOf(m.State, m.TrackName)
	if _, taken := idx.byKey[key]; !taken {
		idx.byKey[key] = m
	}
	if m.PFMeetingID != nil {
		idx.byPF[*m.PFMeetingID] = m
	}
	if m.RAMeetCode != nil && *m.RAMeetCode != "" {
		idx.byCode[strings.ToUpper(*m.RAMeetCode)] = m
	}
}

func (idx *dayIndex) addRace(r *models.Race) {
	key := raceKey{meetingID: r.MeetingID, raceNumber: r.RaceNumber}
	if _, ok := idx.races[key]; ok {
		return
	}
	idx.races[key] = r
	idx.raceByID[r.ID] = r
	idx.raceOrder = append(idx.raceOrder, r.ID)
}

func (idx *dayIndex) raceIDs() []uuid.UUID {
	return append([]uuid.UUID(nil), idx.raceOrder...)
}

// placement returns the meeting and race a race id belongs to.
func (idx *dayIndex) placement(raceID uuid.UUID) (*models.Meeting, *models.Race, bool) {
	race, ok := idx.raceByID[raceID]
	if !ok {
		return nil, nil, false
	}
	m, ok := idx.byID[race.MeetingID]
	return m, race, ok
}

// candidates returns same-state meetings other than exclude, in a fixed order.
// When raceNumber is positive only meetings that hold that race are returned.
func (idx *dayIndex) candidates(state string, raceNumber int, exclude uuid.UUID) []*models.Meeting {
	state = strings.ToUpper(strings.TrimSpace(state))
	var out []*models.Meeting
	for _, m := range idx.meetings {
		if m.ID == exclude || strings.ToUpper(m.State) != state {
			continue
		}
		if raceNumber > 0 {
			if _, ok := idx.races[raceKey{meetingID: m.ID, raceNumber: raceNumber}]; !ok {
				continue
			}
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TrackName != out[j].TrackName {
			return out[i].TrackName < out[j].TrackName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// fetchRequest lists the meetings and race numbers whose tips still need a
// result from the highest-precedence provider.
func (idx *dayIndex) fetchRequest(tips []*models.Tip, outcomes map[uuid.UUID]*models.TipOutcome) datasource.FetchRequest {
	wanted := make(map[uuid.UUID]map[int]bool)
	for _, t := range tips {
		if o := outcomes[t.ID]; o != nil && final(o) {
			continue
		}
		m, race, ok := idx.placement(t.RaceID)
		if !ok {
			continue
		}
		if wanted[m.ID] == nil {
			wanted[m.ID] = make(map[int]bool)
		}
		wanted[m.ID][race.RaceNumber] = true
	}

	req := datasource.FetchRequest{Date: idx.date}
	for _, m := range idx.meetings {
		numbers := wanted[m.ID]
		if len(numbers) == 0 {
			continue
		}
		ref := datasource.MeetingRef{State: m.State, Track: m.TrackName, PFMeetingID: m.PFMeetingID}
		for n := range numbers {
			ref.RaceNumbers = append(ref.RaceNumbers, n)
		}
		sort.Ints(ref.RaceNumbers)
		req.Meetings = append(req.Meetings, ref)
	}
	return req
}

// final reports whether an outcome can no longer be improved by another fetch.
func final(o *models.TipOutcome) bool {
	if models.NormalizeProvider(string(o.Provider)) != models.ProviderPF {
		return false
	}
	return o.Status.Settled() || o.Status == models.OutcomeStatusScratched
}
