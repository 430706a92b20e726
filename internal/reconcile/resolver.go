package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/tipwatch/internal/datasource"
	"github.com/yourusername/tipwatch/internal/logger"
	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
	"github.com/yourusername/tipwatch/internal/repository"
	"github.com/yourusername/tipwatch/internal/tracks"
)

// Match methods, strongest first.
const (
	MatchPFMeetingID = "pf_meeting_id"
	MatchMeetCode    = "meet_code"
	MatchExact       = "canonical"
	MatchCreated     = "created"
)

// resolution places a feed row on a stored meeting and race.
type resolution struct {
	meeting *models.Meeting
	race    *models.Race
	method  string
}

// resolver maps feed rows onto the meetings and races of one date. Rows of the
// same (state, track, race) resolve once per run.
type resolver struct {
	repos  *repository.Repositories
	audit  *logger.AuditLogger
	report *Report
	idx    *dayIndex
	memo   map[string]*resolution
}

func newResolver(repos *repository.Repositories, audit *logger.AuditLogger, report *Report, idx *dayIndex) *resolver {
	return &resolver{
		repos:  repos,
		audit:  audit,
		report: report,
		idx:    idx,
		memo:   make(map[string]*resolution),
	}
}

func memoKey(row *datasource.RawResultRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%d", strings.ToUpper(row.State), tracks.Normalize(row.Track), row.RaceNumber)
	if row.PFMeetingID != nil {
		fmt.Fprintf(&b, "|pf:%d", *row.PFMeetingID)
	}
	if row.MeetCode != nil {
		fmt.Fprintf(&b, "|ra:%s", strings.ToUpper(*row.MeetCode))
	}
	return b.String()
}

// resolve finds or creates the meeting and race for row.
func (r *resolver) resolve(ctx context.Context, provider models.Provider, row *datasource.RawResultRow) (*resolution, error) {
	key := memoKey(row)
	if res, ok := r.memo[key]; ok {
		return res, nil
	}

	meeting, method := r.findMeeting(row)
	if meeting == nil {
		created, err := r.createMeeting(ctx, provider, row)
		if err != nil {
			return nil, err
		}
		meeting, method = created, MatchCreated
	} else if err := r.patchIdentifiers(ctx, meeting, row); err != nil {
		return nil, err
	}

	race, err := r.findRace(ctx, meeting, row)
	if err != nil {
		return nil, err
	}

	res := &resolution{meeting: meeting, race: race, method: method}
	r.memo[key] = res
	return res, nil
}

// findMeeting applies the ranked match methods: provider identifiers, exact
// canonical (state, track), then fuzzy strategies limited to the same state.
func (r *resolver) findMeeting(row *datasource.RawResultRow) (*models.Meeting, string) {
	idx := r.idx
	if row.PFMeetingID != nil {
		if m, ok := idx.byPF[*row.PFMeetingID]; ok {
			return m, MatchPFMeetingID
		}
	}
	if row.MeetCode != nil && *row.MeetCode != "" {
		if m, ok := idx.byCode[strings.ToUpper(*row.MeetCode)]; ok {
			return m, MatchMeetCode
		}
	}
	if m, ok := idx.byKey[keyOf(row.State, row.Track)]; ok {
		return m, MatchExact
	}

	// Same state and race number first; same state alone only when unambiguous.
	if m, method := r.fuzzy(row, idx.candidates(row.State, row.RaceNumber, uuid.Nil), true); m != nil {
		return m, method
	}
	if m, method := r.fuzzy(row, idx.candidates(row.State, 0, uuid.Nil), false); m != nil {
		return m, method
	}
	return nil, ""
}

func (r *resolver) fuzzy(row *datasource.RawResultRow, candidates []*models.Meeting, allowTie bool) (*models.Meeting, string) {
	if len(candidates) == 0 {
		return nil, ""
	}
	names := make([]string, len(candidates))
	for i, m := range candidates {
		names[i] = m.TrackName
	}
	sel, ok := tracks.Select(row.Track, names)
	if !ok {
		return nil, ""
	}
	if sel.Ambiguous {
		if !allowTie {
			return nil, ""
		}
		r.recordAmbiguity(row.State, row.Track, row.RaceNumber, sel, names)
	}
	return candidates[sel.Index], sel.Strategy.String()
}

func (r *resolver) recordAmbiguity(state, track string, raceNumber int, sel tracks.Selection, names []string) {
	recordAmbiguity(r.audit, r.report, state, track, raceNumber, sel, names)
}

func recordAmbiguity(audit *logger.AuditLogger, report *Report, state, track string, raceNumber int, sel tracks.Selection, names []string) {
	tied := make([]string, 0, len(sel.Tied))
	for _, i := range sel.Tied {
		tied = append(tied, names[i])
	}
	audit.LogAmbiguousMatch(report.Date, state, track, raceNumber, sel.Strategy.String(), names[sel.Index], tied)
	metrics.RecordAmbiguousMatch()
	report.AmbiguousMatches++
}

func (r *resolver) createMeeting(ctx context.Context, provider models.Provider, row *datasource.RawResultRow) (*models.Meeting, error) {
	m := &models.Meeting{
		Date:        r.idx.date,
		TrackName:   strings.TrimSpace(row.Track),
		State:       strings.ToUpper(strings.TrimSpace(row.State)),
		PFMeetingID: row.PFMeetingID,
		RAMeetCode:  row.MeetCode,
	}
	stored, created, err := r.repos.Meeting.GetOrCreate(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting %s %s: %w", m.State, m.TrackName, err)
	}
	if created {
		r.audit.LogMeetingCreated(stored.ID.String(), r.report.Date, stored.State, stored.TrackName, string(provider))
		r.report.MeetingsCreated++
	}
	r.idx.addMeeting(stored)
	return stored, nil
}

// patchIdentifiers records provider identifiers the meeting does not carry yet.
func (r *resolver) patchIdentifiers(ctx context.Context, m *models.Meeting, row *datasource.RawResultRow) error {
	var pf *int
	var code *string
	if m.PFMeetingID == nil && row.PFMeetingID != nil {
		pf = row.PFMeetingID
	}
	if (m.RAMeetCode == nil || *m.RAMeetCode == "") && row.MeetCode != nil && *row.MeetCode != "" {
		code = row.MeetCode
	}
	if pf == nil && code == nil {
		return nil
	}
	if err := r.repos.Meeting.UpdateExternalIDs(ctx, m.ID, pf, code); err != nil {
		return fmt.Errorf("failed to patch meeting identifiers: %w", err)
	}
	if pf != nil {
		v := *pf
		m.PFMeetingID = &v
	}
	if code != nil {
		v := *code
		m.RAMeetCode = &v
	}
	r.idx.addMeeting(m)
	return nil
}

func (r *resolver) findRace(ctx context.Context, m *models.Meeting, row *datasource.RawResultRow) (*models.Race, error) {
	if race, ok := r.idx.races[raceKey{meetingID: m.ID, raceNumber: row.RaceNumber}]; ok {
		return race, nil
	}
	race, _, err := r.repos.Race.GetOrCreate(ctx, &models.Race{
		MeetingID:  m.ID,
		RaceNumber: row.RaceNumber,
		Name:       row.RaceName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create race %d at %s: %w", row.RaceNumber, m.TrackName, err)
	}
	r.idx.addRace(race)
	return race, nil
}
