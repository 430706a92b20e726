package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/tipwatch/internal/models"
)

// MemoryStore keeps every aggregate in process memory under one lock.
// It enforces the same natural keys and precedence rules as the PostgreSQL schema.
type MemoryStore struct {
	mu  sync.RWMutex
	now func() time.Time

	meetings    map[uuid.UUID]*models.Meeting
	meetingKeys map[models.MeetingKey]uuid.UUID
	races       map[uuid.UUID]*models.Race
	raceKeys    map[raceKey]uuid.UUID
	tipRuns     map[uuid.UUID]*models.TipRun
	tipRunSeq   map[uuid.UUID]int
	tips        map[uuid.UUID]*models.Tip
	tipKeys     map[tipKey]uuid.UUID
	results     map[uuid.UUID]*models.RaceResult
	resultKeys  map[models.RaceResultKey]uuid.UUID
	outcomes    map[uuid.UUID]*models.TipOutcome
}

type raceKey struct {
	meetingID  uuid.UUID
	raceNumber int
}

type tipKey struct {
	runID   uuid.UUID
	raceID  uuid.UUID
	tipType models.TipType
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:         time.Now,
		meetings:    make(map[uuid.UUID]*models.Meeting),
		meetingKeys: make(map[models.MeetingKey]uuid.UUID),
		races:       make(map[uuid.UUID]*models.Race),
		raceKeys:    make(map[raceKey]uuid.UUID),
		tipRuns:     make(map[uuid.UUID]*models.TipRun),
		tipRunSeq:   make(map[uuid.UUID]int),
		tips:        make(map[uuid.UUID]*models.Tip),
		tipKeys:     make(map[tipKey]uuid.UUID),
		results:     make(map[uuid.UUID]*models.RaceResult),
		resultKeys:  make(map[models.RaceResultKey]uuid.UUID),
		outcomes:    make(map[uuid.UUID]*models.TipOutcome),
	}
}

// Counts reports the number of stored results and outcomes.
func (s *MemoryStore) Counts() (results, outcomes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results), len(s.outcomes)
}

// Meetings returns the store's MeetingRepository.
func (s *MemoryStore) Meetings() MeetingRepository { return memoryMeetings{s} }

// Races returns the store's RaceRepository.
func (s *MemoryStore) Races() RaceRepository { return memoryRaces{s} }

// TipRuns returns the store's TipRunRepository.
func (s *MemoryStore) TipRuns() TipRunRepository { return memoryTipRuns{s} }

// Tips returns the store's TipRepository.
func (s *MemoryStore) Tips() TipRepository { return memoryTips{s} }

// RaceResults returns the store's RaceResultRepository.
func (s *MemoryStore) RaceResults() RaceResultRepository { return memoryResults{s} }

// TipOutcomes returns the store's TipOutcomeRepository.
func (s *MemoryStore) TipOutcomes() TipOutcomeRepository { return memoryOutcomes{s} }

func cloneMeeting(m *models.Meeting) *models.Meeting {
	c := *m
	return &c
}

func cloneRace(r *models.Race) *models.Race {
	c := *r
	return &c
}

func cloneTip(t *models.Tip) *models.Tip {
	c := *t
	return &c
}

func cloneResult(r *models.RaceResult) *models.RaceResult {
	c := *r
	return &c
}

func cloneOutcome(o *models.TipOutcome) *models.TipOutcome {
	c := *o
	return &c
}

type memoryMeetings struct{ s *MemoryStore }

func (r memoryMeetings) GetOrCreate(_ context.Context, m *models.Meeting) (*models.Meeting, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.meetingKeys[m.Key()]; ok {
		return cloneMeeting(s.meetings[id]), false, nil
	}
	stored := cloneMeeting(m)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	if stored.Country == "" {
		stored.Country = models.DefaultCountry
	}
	stored.Date = models.TruncateDate(stored.Date)
	stored.CreatedAt = s.now()
	s.meetings[stored.ID] = stored
	s.meetingKeys[stored.Key()] = stored.ID
	return cloneMeeting(stored), true, nil
}

func (r memoryMeetings) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	m, ok := r.s.meetings[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneMeeting(m), nil
}

func (r memoryMeetings) ListByDate(_ context.Context, date time.Time) ([]*models.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	key := models.DateKey(date)
	var out []*models.Meeting
	for _, m := range r.s.meetings {
		if models.DateKey(m.Date) == key {
			out = append(out, cloneMeeting(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].TrackName < out[j].TrackName
	})
	return out, nil
}

func (r memoryMeetings) UpdateExternalIDs(_ context.Context, id uuid.UUID, pfMeetingID *int, raMeetCode *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.meetings[id]
	if !ok {
		return models.ErrNotFound
	}
	if pfMeetingID != nil {
		v := *pfMeetingID
		m.PFMeetingID = &v
	}
	if raMeetCode != nil {
		v := *raMeetCode
		m.RAMeetCode = &v
	}
	return nil
}

type memoryRaces struct{ s *MemoryStore }

func (r memoryRaces) GetOrCreate(_ context.Context, race *models.Race) (*models.Race, bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	key := raceKey{meetingID: race.MeetingID, raceNumber: race.RaceNumber}
	if id, ok := s.raceKeys[key]; ok {
		return cloneRace(s.races[id]), false, nil
	}
	if _, ok := s.meetings[race.MeetingID]; !ok {
		return nil, false, models.ErrNotFound
	}
	stored := cloneRace(race)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.CreatedAt = s.now()
	s.races[stored.ID] = stored
	s.raceKeys[key] = stored.ID
	return cloneRace(stored), true, nil
}

func (r memoryRaces) GetByID(_ context.Context, id uuid.UUID) (*models.Race, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	race, ok := r.s.races[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneRace(race), nil
}

func (r memoryRaces) ListByMeetings(_ context.Context, meetingIDs []uuid.UUID) ([]*models.Race, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(meetingIDs))
	for _, id := range meetingIDs {
		want[id] = true
	}
	var out []*models.Race
	for _, race := range r.s.races {
		if want[race.MeetingID] {
			out = append(out, cloneRace(race))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeetingID != out[j].MeetingID {
			return out[i].MeetingID.String() < out[j].MeetingID.String()
		}
		return out[i].RaceNumber < out[j].RaceNumber
	})
	return out, nil
}

type memoryTipRuns struct{ s *MemoryStore }

func (r memoryTipRuns) Create(_ context.Context, run *models.TipRun) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if _, ok := s.tipRuns[run.ID]; ok {
		return models.ErrDuplicateKey
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now()
	}
	c := *run
	s.tipRuns[run.ID] = &c
	s.tipRunSeq[run.ID] = len(s.tipRunSeq)
	return nil
}

func (r memoryTipRuns) GetByID(_ context.Context, id uuid.UUID) (*models.TipRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.tipRuns[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *run
	return &c, nil
}

type memoryTips struct{ s *MemoryStore }

func (r memoryTips) Create(_ context.Context, tip *models.Tip) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if tip.ID == uuid.Nil {
		tip.ID = uuid.New()
	}
	if _, ok := s.tipRuns[tip.TipRunID]; !ok {
		return models.ErrNotFound
	}
	if _, ok := s.races[tip.RaceID]; !ok {
		return models.ErrNotFound
	}
	key := tipKey{runID: tip.TipRunID, raceID: tip.RaceID, tipType: tip.TipType}
	if _, ok := s.tipKeys[key]; ok {
		return models.ErrDuplicateKey
	}
	if _, ok := s.tips[tip.ID]; ok {
		return models.ErrDuplicateKey
	}
	tip.StakeUnits = tip.Units()
	tip.CreatedAt = s.now()
	s.tips[tip.ID] = cloneTip(tip)
	s.tipKeys[key] = tip.ID
	return nil
}

// detail joins a tip with its race, meeting and outcome. Caller holds the lock.
func (s *MemoryStore) detail(t *models.Tip) *models.TipDetail {
	race := s.races[t.RaceID]
	meeting := s.meetings[race.MeetingID]
	d := &models.TipDetail{Tip: *t, Race: *race, Meeting: *meeting}
	if o, ok := s.outcomes[t.ID]; ok {
		d.Outcome = cloneOutcome(o)
	}
	return d
}

func sortDetails(ds []*models.TipDetail) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if !a.Meeting.Date.Equal(b.Meeting.Date) {
			return a.Meeting.Date.Before(b.Meeting.Date)
		}
		if a.Meeting.State != b.Meeting.State {
			return a.Meeting.State < b.Meeting.State
		}
		if a.Meeting.TrackName != b.Meeting.TrackName {
			return a.Meeting.TrackName < b.Meeting.TrackName
		}
		if a.Race.RaceNumber != b.Race.RaceNumber {
			return a.Race.RaceNumber < b.Race.RaceNumber
		}
		return a.Tip.TipType < b.Tip.TipType
	})
}

func (r memoryTips) ListByDate(_ context.Context, date time.Time) ([]*models.Tip, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := models.DateKey(date)
	var ds []*models.TipDetail
	for _, t := range s.tips {
		d := s.detail(t)
		if models.DateKey(d.Meeting.Date) == key {
			ds = append(ds, d)
		}
	}
	sortDetails(ds)
	out := make([]*models.Tip, 0, len(ds))
	for _, d := range ds {
		tip := d.Tip
		out = append(out, &tip)
	}
	return out, nil
}

// newerRun reports whether run a supersedes run b. Caller holds the lock.
func (s *MemoryStore) newerRun(a, b uuid.UUID) bool {
	ra, rb := s.tipRuns[a], s.tipRuns[b]
	if !ra.CreatedAt.Equal(rb.CreatedAt) {
		return ra.CreatedAt.After(rb.CreatedAt)
	}
	return s.tipRunSeq[a] > s.tipRunSeq[b]
}

func (r memoryTips) ListTipDetails(_ context.Context, from, to time.Time, filter TipFilter) ([]*models.TipDetail, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[uuid.UUID]uuid.UUID)
	for _, t := range s.tips {
		cur, ok := latest[t.RaceID]
		if !ok || s.newerRun(t.TipRunID, cur) {
			latest[t.RaceID] = t.TipRunID
		}
	}

	lo, hi := models.DateKey(from), models.DateKey(to)
	var out []*models.TipDetail
	for _, t := range s.tips {
		if latest[t.RaceID] != t.TipRunID {
			continue
		}
		d := s.detail(t)
		day := models.DateKey(d.Meeting.Date)
		if day < lo || day > hi {
			continue
		}
		if filter.matches(d) {
			out = append(out, d)
		}
	}
	sortDetails(out)
	return out, nil
}

type memoryResults struct{ s *MemoryStore }

func (r memoryResults) Upsert(_ context.Context, result *models.RaceResult) (*models.RaceResult, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[result.RaceID]; !ok {
		return nil, models.ErrNotFound
	}

	now := s.now()
	key := result.Key()
	if id, ok := s.resultKeys[key]; ok {
		stored := s.results[id]
		stored.HorseName = result.HorseName
		stored.FinishPosition = result.FinishPosition
		stored.Status = result.Status
		stored.MarginText = result.MarginText
		if result.StartingPrice != nil {
			stored.StartingPrice = result.StartingPrice
		}
		stored.UpdatedAt = now
		return cloneResult(stored), nil
	}

	stored := cloneResult(result)
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	stored.Provider = key.Provider
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.results[stored.ID] = stored
	s.resultKeys[key] = stored.ID
	return cloneResult(stored), nil
}

func (r memoryResults) ListByRaces(_ context.Context, raceIDs []uuid.UUID) ([]*models.RaceResult, error) {
	s := r.s
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(raceIDs))
	for _, id := range raceIDs {
		want[id] = true
	}
	var out []*models.RaceResult
	for _, rr := range s.results {
		if want[rr.RaceID] {
			out = append(out, cloneResult(rr))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RaceID != b.RaceID {
			return a.RaceID.String() < b.RaceID.String()
		}
		if a.TabNumber != b.TabNumber {
			return a.TabNumber < b.TabNumber
		}
		return a.Provider < b.Provider
	})
	return out, nil
}

func (r memoryResults) BackfillStartingPrice(_ context.Context, id uuid.UUID, price decimal.Decimal) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	rr, ok := s.results[id]
	if !ok || rr.StartingPrice != nil {
		return false, nil
	}
	rr.StartingPrice = &price
	rr.UpdatedAt = s.now()
	return true, nil
}

type memoryOutcomes struct{ s *MemoryStore }

func (r memoryOutcomes) Get(_ context.Context, tipID uuid.UUID) (*models.TipOutcome, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.outcomes[tipID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return cloneOutcome(o), nil
}

func (r memoryOutcomes) ListByTips(_ context.Context, tipIDs []uuid.UUID) ([]*models.TipOutcome, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*models.TipOutcome
	for _, id := range tipIDs {
		if o, ok := r.s.outcomes[id]; ok {
			out = append(out, cloneOutcome(o))
		}
	}
	return out, nil
}

func (r memoryOutcomes) Upsert(_ context.Context, outcome *models.TipOutcome) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	tip, ok := s.tips[outcome.TipID]
	if !ok {
		return false, models.ErrNotFound
	}
	if outcome.RaceResultID != nil {
		rr, ok := s.results[*outcome.RaceResultID]
		if !ok || rr.RaceID != tip.RaceID {
			return false, models.NewValidationError("RESULT_RACE_MISMATCH", "race result does not belong to the tip's race")
		}
	}

	now := s.now()
	incoming := cloneOutcome(outcome)
	incoming.Provider = models.NormalizeProvider(string(incoming.Provider))
	existing, ok := s.outcomes[outcome.TipID]
	if !ok {
		incoming.CreatedAt = now
		incoming.UpdatedAt = now
		s.outcomes[outcome.TipID] = incoming
		return true, nil
	}
	if !incoming.Provider.MayOverwrite(existing.Provider) {
		return false, nil
	}
	if incoming.StartingPrice == nil {
		incoming.StartingPrice = existing.StartingPrice
	}
	incoming.CreatedAt = existing.CreatedAt
	incoming.UpdatedAt = now
	s.outcomes[outcome.TipID] = incoming
	return true, nil
}

func (r memoryOutcomes) BackfillStartingPrice(_ context.Context, tipID uuid.UUID, price decimal.Decimal) (bool, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.outcomes[tipID]
	if !ok || o.StartingPrice != nil {
		return false, nil
	}
	o.StartingPrice = &price
	o.UpdatedAt = s.now()
	return true, nil
}
