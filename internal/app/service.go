package app

import (
	"context"
	"errors"
	"fmt"

	"house-points-service/internal/domain"
)

const (
	// recentTransactionLimit bounds the dashboard ledger excerpt.
	recentTransactionLimit = 20
	// topStudentsLimit bounds the admin overview ranking.
	topStudentsLimit = 10
)

// Store abstracts the persistent collaborator (Postgres, in-memory, etc).
// Implementations own all mutation discipline: upserts must be
// conflict-tolerant, house increments atomic, and ApplyPointsChange a
// single transaction so the ledger row, student total, and house aggregate
// can never partially apply.
type Store interface {
	// UpsertStudent creates the profile or refreshes its contact fields.
	// An existing student keeps its assigned house and total.
	UpsertStudent(ctx context.Context, student domain.Student) error
	GetStudent(ctx context.Context, id string) (domain.Student, error)
	// ListStudents returns students sorted by name, optionally filtered by
	// house (empty house means all).
	ListStudents(ctx context.Context, house domain.House) ([]domain.Student, error)
	AssignHouse(ctx context.Context, studentID string, house domain.House) error

	// EnsureHouse idempotently creates the house row with a zero total.
	// Concurrent calls for the same name leave exactly one row.
	EnsureHouse(ctx context.Context, house domain.House) error
	// AdjustHousePoints atomically adds delta, creating the row with total
	// delta when absent.
	AdjustHousePoints(ctx context.Context, house domain.House, delta int) error
	ListHouses(ctx context.Context) ([]domain.HouseStanding, error)
	// RankedStandings orders houses by total descending, name ascending.
	RankedStandings(ctx context.Context) ([]domain.HouseStanding, error)
	TopStudents(ctx context.Context, limit int) ([]domain.StudentRank, error)

	// ApplyPointsChange validates the student, appends the ledger row,
	// updates the student total, and adjusts the assigned house aggregate
	// as one atomic unit. Returns the recorded transaction and new total.
	ApplyPointsChange(ctx context.Context, studentID string, delta int, reason string) (domain.PointTransaction, int, error)
	RecentTransactions(ctx context.Context, studentID string, limit int) ([]domain.PointTransaction, error)

	InsertQuizAnswers(ctx context.Context, studentID string, answers []string) error
}

// Identity abstracts the external account provider. It returns stable
// opaque user ids that double as student ids.
type Identity interface {
	// CreateUser registers a new account; ErrUserExists when the email is taken.
	CreateUser(ctx context.Context, email, password string) (string, error)
	FindUserByEmail(ctx context.Context, email string) (string, error)
}

// StandingsProvider serves ranked house standings, possibly via a cache.
type StandingsProvider interface {
	Standings(ctx context.Context) ([]domain.HouseStanding, error)
	// Invalidate drops any cached snapshot after a write changes totals.
	Invalidate(ctx context.Context) error
}

// DirectStandings serves standings straight from the store, for
// deployments without a cache in front.
type DirectStandings struct {
	store Store
}

func NewDirectStandings(store Store) *DirectStandings {
	return &DirectStandings{store: store}
}

func (d *DirectStandings) Standings(ctx context.Context) ([]domain.HouseStanding, error) {
	return d.store.RankedStandings(ctx)
}

func (d *DirectStandings) Invalidate(context.Context) error { return nil }

// SignupInput carries the profile fields collected at registration.
type SignupInput struct {
	Name      string
	Email     string
	Password  string
	Phone     string
	Instagram string
	LinkedIn  string
}

// HouseService contains the core use cases: signup, sorting, the points
// ledger, and the read views.
type HouseService struct {
	store     Store
	identity  Identity
	sorter    *Sorter
	standings StandingsProvider
	events    *Broadcaster
}

func NewHouseService(store Store, identity Identity, sorter *Sorter, standings StandingsProvider, events *Broadcaster) *HouseService {
	if sorter == nil {
		sorter = NewSorter(nil)
	}
	if standings == nil {
		standings = NewDirectStandings(store)
	}
	if events == nil {
		events = NewBroadcaster()
	}
	return &HouseService{
		store:     store,
		identity:  identity,
		sorter:    sorter,
		standings: standings,
		events:    events,
	}
}

// Signup registers an account (create-or-fetch by email, so repeat signups
// are idempotent) and upserts the student profile with no house and zero
// points. Houses are seeded here so first signup bootstraps the registry.
func (s *HouseService) Signup(ctx context.Context, input SignupInput) (domain.Student, error) {
	userID, err := s.identity.CreateUser(ctx, input.Email, input.Password)
	if errors.Is(err, domain.ErrUserExists) {
		userID, err = s.identity.FindUserByEmail(ctx, input.Email)
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("signup: %w", err)
	}

	if err := s.SeedHouses(ctx); err != nil {
		return domain.Student{}, err
	}

	profile := domain.Student{
		ID:        userID,
		Name:      input.Name,
		Email:     input.Email,
		Phone:     input.Phone,
		Instagram: input.Instagram,
		LinkedIn:  input.LinkedIn,
	}
	if err := s.store.UpsertStudent(ctx, profile); err != nil {
		return domain.Student{}, fmt.Errorf("upsert student: %w", err)
	}
	return s.store.GetStudent(ctx, userID)
}

// SubmitQuiz scores the answers, records the submission for audit, and
// assigns the resulting house. Resubmission overwrites the assignment;
// past ledger deltas stay attributed to the previous house.
func (s *HouseService) SubmitQuiz(ctx context.Context, studentID string, answers []string) (domain.House, error) {
	if _, err := s.store.GetStudent(ctx, studentID); err != nil {
		return "", err
	}

	house := s.sorter.Score(answers)

	if err := s.store.InsertQuizAnswers(ctx, studentID, answers); err != nil {
		return "", fmt.Errorf("record quiz answers: %w", err)
	}
	if err := s.store.EnsureHouse(ctx, house); err != nil {
		return "", fmt.Errorf("ensure house: %w", err)
	}
	if err := s.store.AssignHouse(ctx, studentID, house); err != nil {
		return "", fmt.Errorf("assign house: %w", err)
	}
	return house, nil
}

// ApplyPointsChange runs the ledger unit of work and returns the new
// student total. A zero delta is permitted and still writes a ledger row.
func (s *HouseService) ApplyPointsChange(ctx context.Context, studentID string, delta int, reason string) (int, error) {
	_, newTotal, err := s.store.ApplyPointsChange(ctx, studentID, delta, reason)
	if err != nil {
		return 0, err
	}
	s.publishStandings(ctx)
	return newTotal, nil
}

// Dashboard builds the student read view: profile, all standings, and the
// most recent ledger entries, newest first.
func (s *HouseService) Dashboard(ctx context.Context, studentID string) (domain.Dashboard, error) {
	profile, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	houses, err := s.standings.Standings(ctx)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("standings: %w", err)
	}
	transactions, err := s.store.RecentTransactions(ctx, studentID, recentTransactionLimit)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("recent transactions: %w", err)
	}
	return domain.Dashboard{Profile: profile, Houses: houses, Transactions: transactions}, nil
}

// Overview builds the admin read view: houses ranked by total descending
// and the top students (ties broken by name, then id).
func (s *HouseService) Overview(ctx context.Context) (domain.Overview, error) {
	houses, err := s.standings.Standings(ctx)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("standings: %w", err)
	}
	top, err := s.store.TopStudents(ctx, topStudentsLimit)
	if err != nil {
		return domain.Overview{}, fmt.Errorf("top students: %w", err)
	}
	return domain.Overview{Houses: houses, TopStudents: top}, nil
}

// Students lists profiles sorted by name. A non-empty filter must name one
// of the four houses.
func (s *HouseService) Students(ctx context.Context, houseFilter string) ([]domain.Student, error) {
	var house domain.House
	if houseFilter != "" {
		parsed, err := domain.ParseHouse(houseFilter)
		if err != nil {
			return nil, err
		}
		house = parsed
	}
	return s.store.ListStudents(ctx, house)
}

// StandingsSnapshot returns the current ranked standings (for the live feed's
// initial frame).
func (s *HouseService) StandingsSnapshot(ctx context.Context) ([]domain.HouseStanding, error) {
	return s.standings.Standings(ctx)
}

// Subscribe attaches a live standings listener.
func (s *HouseService) Subscribe() (<-chan domain.Standings, func()) {
	return s.events.Subscribe()
}

// SeedHouses idempotently creates all four house rows.
func (s *HouseService) SeedHouses(ctx context.Context) error {
	for _, house := range domain.Houses {
		if err := s.store.EnsureHouse(ctx, house); err != nil {
			return fmt.Errorf("seed house %s: %w", house, err)
		}
	}
	return nil
}

// Bootstrap seeds the houses and provisions the operator account with an
// unsorted zero-point profile.
func (s *HouseService) Bootstrap(ctx context.Context, name, email, password string) (string, error) {
	if err := s.SeedHouses(ctx); err != nil {
		return "", err
	}
	userID, err := s.identity.CreateUser(ctx, email, password)
	if errors.Is(err, domain.ErrUserExists) {
		userID, err = s.identity.FindUserByEmail(ctx, email)
	}
	if err != nil {
		return "", fmt.Errorf("bootstrap admin: %w", err)
	}
	if err := s.store.UpsertStudent(ctx, domain.Student{ID: userID, Name: name, Email: email}); err != nil {
		return "", fmt.Errorf("bootstrap profile: %w", err)
	}
	return userID, nil
}

// publishStandings refreshes subscribers after a write. Cache invalidation
// is best-effort; the TTL bounds any staleness if it fails.
func (s *HouseService) publishStandings(ctx context.Context) {
	_ = s.standings.Invalidate(ctx)
	houses, err := s.standings.Standings(ctx)
	if err != nil {
		return
	}
	s.events.Publish(houses)
}
