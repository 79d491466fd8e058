package service

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"lottery-panel/database"
	"lottery-panel/database/model"
	"lottery-panel/logger"
	"lottery-panel/remote"
	"lottery-panel/util/common"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrDrawNotFound  = errors.New("draw not found")
	ErrDrawNotOpen   = errors.New("draw is not open")
	ErrDrawNotClosed = errors.New("draw is not closed")
	ErrAlreadyDrawn  = errors.New("draw has already been drawn")
	ErrEmptyPool     = errors.New("eligible pool is empty")
	ErrPoolNotEmpty  = errors.New("eligible pool is not empty")
	ErrNoReplacement = errors.New("no replacement candidate left")
)

// DrawService closes draws and selects winners. A draw's outcome is a
// pure function of (pool snapshot, policy, seed); the snapshot and
// seed are recorded so any run can be audited or replayed.
type DrawService struct {
	transitioner
}

func NewDrawService(rc remote.SyncClient, notify *NotifyService, timeout time.Duration) *DrawService {
	return &DrawService{transitioner: newTransitioner(rc, notify, timeout)}
}

func (s *DrawService) CreateDraw(name, policy string, winnerCount, maxEntries int, lat, lng float64, scheduledAt *time.Time) (*model.Draw, error) {
	draw := &model.Draw{
		Id:          uuid.NewString(),
		Name:        name,
		Policy:      PolicyByName(policy).Name(),
		WinnerCount: winnerCount,
		MaxEntries:  maxEntries,
		Status:      model.DrawOpen,
		Seed:        common.RandomSeed(),
		Lat:         lat,
		Lng:         lng,
		ScheduledAt: scheduledAt,
		CreatedAt:   time.Now(),
	}
	if err := database.CreateDraw(draw); err != nil {
		return nil, err
	}
	logger.Infof("draw %s (%s) created, policy %s, seed %d", draw.Id, draw.Name, draw.Policy, draw.Seed)
	return draw, nil
}

func (s *DrawService) GetDraw(id string) (*model.Draw, error) {
	draw, err := database.GetDraw(id)
	if err != nil {
		return nil, err
	}
	if draw == nil {
		return nil, ErrDrawNotFound
	}
	return draw, nil
}

func (s *DrawService) ListDraws() ([]*model.Draw, error) {
	return database.ListDraws()
}

// DrawLocation is the read-only pair handed to the map collaborator.
type DrawLocation struct {
	DrawId string  `json:"drawId"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
}

func (s *DrawService) ListDrawLocations() ([]*DrawLocation, error) {
	draws, err := database.ListDraws()
	if err != nil {
		return nil, err
	}
	locations := make([]*DrawLocation, 0, len(draws))
	for _, d := range draws {
		if d.Lat == 0 && d.Lng == 0 {
			continue
		}
		locations = append(locations, &DrawLocation{DrawId: d.Id, Lat: d.Lat, Lng: d.Lng})
	}
	return locations, nil
}

// CloseDraw freezes the eligible pool to the tickets currently entered
// and moves the draw open -> closed. The snapshot never changes
// afterwards.
func (s *DrawService) CloseDraw(drawId string) (*model.Draw, error) {
	draw, err := s.GetDraw(drawId)
	if err != nil {
		return nil, err
	}
	if draw.Status != model.DrawOpen {
		if draw.Status == model.DrawDrawn {
			return nil, ErrAlreadyDrawn
		}
		return nil, ErrDrawNotOpen
	}

	entered, err := database.ListTicketsInState(drawId, model.Entered)
	if err != nil {
		return nil, err
	}
	pool := make([]string, 0, len(entered))
	for _, t := range entered {
		pool = append(pool, t.Id)
	}
	sort.Strings(pool)

	snapshot, err := json.Marshal(pool)
	if err != nil {
		return nil, err
	}
	draw.PoolSnapshot = string(snapshot)
	draw.Status = model.DrawClosed
	if err := database.SaveDraw(draw); err != nil {
		return nil, err
	}
	logger.Infof("draw %s closed with %d eligible tickets", draw.Id, len(pool))
	return draw, nil
}

// ranking replays the policy ordering from the draw's recorded seed.
func (s *DrawService) ranking(draw *model.Draw) ([]string, error) {
	var pool []string
	if err := json.Unmarshal([]byte(draw.PoolSnapshot), &pool); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(draw.Seed))
	return PolicyByName(draw.Policy).Rank(rng, pool), nil
}

// RunDraw selects winners from the frozen pool and applies
// entered -> won / entered -> lost through the conditional-write path.
// Deterministic for a given draw, idempotent under re-runs: tickets
// that already left the entered state are skipped by the state check,
// and a draw already drawn is rejected outright.
func (s *DrawService) RunDraw(ctx context.Context, drawId string) (*model.Draw, error) {
	draw, err := s.GetDraw(drawId)
	if err != nil {
		return nil, err
	}
	switch draw.Status {
	case model.DrawClosed:
	case model.DrawDrawn:
		return nil, ErrAlreadyDrawn
	default:
		return nil, ErrDrawNotClosed
	}

	ranked, err := s.ranking(draw)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, ErrEmptyPool
	}

	winnerCount := draw.WinnerCount
	if winnerCount > len(ranked) {
		winnerCount = len(ranked)
	}
	winners := make(map[string]bool, winnerCount)
	for _, id := range ranked[:winnerCount] {
		winners[id] = true
	}

	for _, id := range ranked {
		target := model.Lost
		if winners[id] {
			target = model.Won
		}
		if err := s.applyDrawResult(ctx, id, model.Entered, target); err != nil {
			return nil, err
		}
	}

	now := time.Now()
	draw.Status = model.DrawDrawn
	draw.DrawnAt = &now
	if err := database.SaveDraw(draw); err != nil {
		return nil, err
	}
	logger.Infof("draw %s drawn: %d winners of %d entries", draw.Id, winnerCount, len(ranked))
	return draw, nil
}

// ResolveEmptyDraw finishes a closed draw whose frozen pool has no
// entrants. There is nothing to select, so the draw moves straight to
// drawn instead of failing every scheduler tick.
func (s *DrawService) ResolveEmptyDraw(drawId string) (*model.Draw, error) {
	draw, err := s.GetDraw(drawId)
	if err != nil {
		return nil, err
	}
	switch draw.Status {
	case model.DrawClosed:
	case model.DrawDrawn:
		return nil, ErrAlreadyDrawn
	default:
		return nil, ErrDrawNotClosed
	}

	var pool []string
	if err := json.Unmarshal([]byte(draw.PoolSnapshot), &pool); err != nil {
		return nil, err
	}
	if len(pool) > 0 {
		return nil, ErrPoolNotEmpty
	}

	now := time.Now()
	draw.Status = model.DrawDrawn
	draw.DrawnAt = &now
	if err := database.SaveDraw(draw); err != nil {
		return nil, err
	}
	logger.Infof("draw %s resolved with no entrants", draw.Id)
	return draw, nil
}

// DrawReplacement promotes the next candidate in the recorded ranking
// after a winner was voided, mirroring the second-chance invitation of
// the original system. Deterministic: the ranking is replayed from the
// seed and the draw's replacement counter indexes into it.
func (s *DrawService) DrawReplacement(ctx context.Context, drawId string) (*model.Ticket, error) {
	draw, err := s.GetDraw(drawId)
	if err != nil {
		return nil, err
	}
	if draw.Status != model.DrawDrawn {
		return nil, ErrDrawNotClosed
	}

	ranked, err := s.ranking(draw)
	if err != nil {
		return nil, err
	}

	// walk the ranking past the original winners and any candidates
	// consumed by earlier replacements
	start := draw.WinnerCount + draw.Replacements
	for idx := start; idx < len(ranked); idx++ {
		id := ranked[idx]
		draw.Replacements++

		unlock := database.LockTicket(id)
		current, err := s.loadTicket(ctx, id)
		if err != nil {
			unlock()
			draw.Replacements--
			return nil, err
		}
		if current == nil || current.State != model.Lost {
			// voided or already promoted; candidate is spent either way
			unlock()
			continue
		}

		next := current.Clone()
		next.State = model.Won
		next.Version = current.Version + 1
		next.UpdatedAt = time.Now()
		status, _, err := s.commit(ctx, current, next)
		if err != nil {
			unlock()
			return nil, err
		}
		if status == commitConflict {
			// someone else touched the candidate; it is spent, move on
			unlock()
			continue
		}
		if status == commitDeferred {
			// keep the pending promotion locally visible until replay
			if _, err := database.UpsertTicket(next); err != nil {
				unlock()
				return nil, err
			}
		}
		unlock()

		if err := database.SaveDraw(draw); err != nil {
			return nil, err
		}
		logger.Infof("draw %s replacement winner: %s", draw.Id, id)
		return next, nil
	}

	if err := database.SaveDraw(draw); err != nil {
		return nil, err
	}
	return nil, ErrNoReplacement
}

// applyDrawResult transitions one ticket from want to target through
// the CAS path, tolerating concurrent writers: a conflict refreshes
// and re-checks, a ticket no longer in want is left alone.
func (s *DrawService) applyDrawResult(ctx context.Context, id string, want, target model.TicketState) error {
	unlock := database.LockTicket(id)
	defer unlock()

	current, err := s.loadTicket(ctx, id)
	if err != nil && err != remote.ErrUnavailable {
		return err
	}
	if current == nil || current.State != want {
		return nil
	}

	next := current.Clone()
	next.State = target
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now()

	status, serverCopy, err := s.commit(ctx, current, next)
	if err != nil {
		return err
	}
	if status == commitConflict && serverCopy != nil && serverCopy.State == want {
		// unrelated field change won the race; retry once on top of it
		retry := serverCopy.Clone()
		retry.State = target
		retry.Version = serverCopy.Version + 1
		retry.UpdatedAt = time.Now()
		if _, _, err := s.commit(ctx, serverCopy, retry); err != nil {
			return err
		}
	}
	return nil
}
