package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"house-points-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. A single mutex makes
// every operation atomic, which mirrors what the Postgres store gets from
// row-level increments and transactions. Useful for unit tests and for
// booting without a database.
type Store struct {
	clock func() time.Time

	mu           sync.Mutex
	students     map[string]domain.Student
	houses       map[domain.House]int
	transactions []domain.PointTransaction
	quizAnswers  []domain.QuizAnswerRecord
	nextTxID     int64
	nextQuizID   int64
}

func NewStore() *Store {
	return newStoreWithClock(time.Now)
}

// newStoreWithClock allows deterministic timestamps in tests.
func newStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:      clock,
		students:   make(map[string]domain.Student),
		houses:     make(map[domain.House]int),
		nextTxID:   1,
		nextQuizID: 1,
	}
}

func (s *Store) UpsertStudent(_ context.Context, student domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.students[student.ID]; ok {
		// Profile refresh keeps the house and total intact.
		student.AssignedHouse = existing.AssignedHouse
		student.TotalPoints = existing.TotalPoints
	}
	s.students[student.ID] = student
	return nil
}

func (s *Store) GetStudent(_ context.Context, id string) (domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.students[id]
	if !ok {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	return student, nil
}

func (s *Store) ListStudents(_ context.Context, house domain.House) ([]domain.Student, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	students := make([]domain.Student, 0, len(s.students))
	for _, student := range s.students {
		if house != "" && student.AssignedHouse != house {
			continue
		}
		students = append(students, student)
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Name != students[j].Name {
			return students[i].Name < students[j].Name
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (s *Store) AssignHouse(_ context.Context, studentID string, house domain.House) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.students[studentID]
	if !ok {
		return domain.ErrStudentNotFound
	}
	student.AssignedHouse = house
	s.students[studentID] = student
	return nil
}

func (s *Store) EnsureHouse(_ context.Context, house domain.House) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.houses[house]; !ok {
		s.houses[house] = 0
	}
	return nil
}

func (s *Store) AdjustHousePoints(_ context.Context, house domain.House, delta int) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.houses[house] += delta
	return nil
}

func (s *Store) ListHouses(_ context.Context) ([]domain.HouseStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.standingsLocked(), nil
}

func (s *Store) RankedStandings(_ context.Context) ([]domain.HouseStanding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	standings := s.standingsLocked()
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].TotalPoints != standings[j].TotalPoints {
			return standings[i].TotalPoints > standings[j].TotalPoints
		}
		return standings[i].Name < standings[j].Name
	})
	return standings, nil
}

func (s *Store) TopStudents(_ context.Context, limit int) ([]domain.StudentRank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ranks := make([]domain.StudentRank, 0, len(s.students))
	for _, student := range s.students {
		ranks = append(ranks, domain.StudentRank{
			ID:            student.ID,
			Name:          student.Name,
			AssignedHouse: student.AssignedHouse,
			TotalPoints:   student.TotalPoints,
		})
	}
	sort.Slice(ranks, func(i, j int) bool {
		if ranks[i].TotalPoints != ranks[j].TotalPoints {
			return ranks[i].TotalPoints > ranks[j].TotalPoints
		}
		if ranks[i].Name != ranks[j].Name {
			return ranks[i].Name < ranks[j].Name
		}
		return ranks[i].ID < ranks[j].ID
	})
	if limit > 0 && len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}

// ApplyPointsChange performs the ledger unit of work under the store lock:
// validate, append, project onto the student total, adjust the assigned
// house. An unknown student writes nothing.
func (s *Store) ApplyPointsChange(_ context.Context, studentID string, delta int, reason string) (domain.PointTransaction, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	student, ok := s.students[studentID]
	if !ok {
		return domain.PointTransaction{}, 0, domain.ErrStudentNotFound
	}

	tx := domain.PointTransaction{
		ID:        s.nextTxID,
		StudentID: studentID,
		Delta:     delta,
		Reason:    reason,
		CreatedAt: s.clock(),
	}
	s.nextTxID++
	s.transactions = append(s.transactions, tx)

	student.TotalPoints += delta
	s.students[studentID] = student

	if student.AssignedHouse != "" {
		s.houses[student.AssignedHouse] += delta
	}
	return tx, student.TotalPoints, nil
}

func (s *Store) RecentTransactions(_ context.Context, studentID string, limit int) ([]domain.PointTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := make([]domain.PointTransaction, 0, limit)
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].StudentID != studentID {
			continue
		}
		recent = append(recent, s.transactions[i])
		if limit > 0 && len(recent) == limit {
			break
		}
	}
	return recent, nil
}

func (s *Store) InsertQuizAnswers(_ context.Context, studentID string, answers []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record := domain.QuizAnswerRecord{
		ID:        s.nextQuizID,
		StudentID: studentID,
		Answers:   append([]string(nil), answers...),
		CreatedAt: s.clock(),
	}
	s.nextQuizID++
	s.quizAnswers = append(s.quizAnswers, record)
	return nil
}

// TransactionCount reports the ledger length for a student (test helper).
func (s *Store) TransactionCount(studentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, tx := range s.transactions {
		if tx.StudentID == studentID {
			count++
		}
	}
	return count
}

// HouseCount reports how many house rows exist (test helper for seeding
// idempotency).
func (s *Store) HouseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.houses)
}

func (s *Store) standingsLocked() []domain.HouseStanding {
	standings := make([]domain.HouseStanding, 0, len(s.houses))
	for _, house := range domain.Houses {
		if total, ok := s.houses[house]; ok {
			standings = append(standings, domain.HouseStanding{Name: house, TotalPoints: total})
		}
	}
	return standings
}
