package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"house-points-service/internal/domain"
)

// Store is the durable implementation of app.Store on Postgres. House
// increments ride on `total_points = total_points + delta` so concurrent
// writers cannot lose updates, and ApplyPointsChange wraps the whole
// ledger unit of work in one transaction. Correctness never relies on
// process-local locks, so multiple replicas can share a database.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) UpsertStudent(ctx context.Context, student domain.Student) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, name, email, phone, instagram, linkedin, assigned_house, total_points)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, 0)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			email=EXCLUDED.email,
			phone=EXCLUDED.phone,
			instagram=EXCLUDED.instagram,
			linkedin=EXCLUDED.linkedin
	`, student.ID, student.Name, student.Email, student.Phone, student.Instagram, student.LinkedIn)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

func (s *Store) GetStudent(ctx context.Context, id string) (domain.Student, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, instagram, linkedin, assigned_house, total_points
		FROM students WHERE id=$1
	`, id)
	student, err := scanStudent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Student{}, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.Student{}, fmt.Errorf("get student: %w", err)
	}
	return student, nil
}

func (s *Store) ListStudents(ctx context.Context, house domain.House) ([]domain.Student, error) {
	query := `
		SELECT id, name, email, phone, instagram, linkedin, assigned_house, total_points
		FROM students`
	args := []interface{}{}
	if house != "" {
		query += ` WHERE assigned_house=$1`
		args = append(args, string(house))
	}
	query += ` ORDER BY name ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []domain.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, student)
	}
	return students, rows.Err()
}

func (s *Store) AssignHouse(ctx context.Context, studentID string, house domain.House) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}
	tag, err := s.pool.Exec(ctx, `UPDATE students SET assigned_house=$2 WHERE id=$1`, studentID, string(house))
	if err != nil {
		return fmt.Errorf("assign house: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStudentNotFound
	}
	return nil
}

func (s *Store) EnsureHouse(ctx context.Context, house domain.House) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO houses (name, total_points) VALUES ($1, 0)
		ON CONFLICT (name) DO NOTHING
	`, string(house))
	if err != nil {
		return fmt.Errorf("ensure house: %w", err)
	}
	return nil
}

func (s *Store) AdjustHousePoints(ctx context.Context, house domain.House, delta int) error {
	if !house.Valid() {
		return domain.ErrUnknownHouse
	}
	if err := adjustHouse(ctx, s.pool, house, delta); err != nil {
		return fmt.Errorf("adjust house: %w", err)
	}
	return nil
}

func (s *Store) ListHouses(ctx context.Context) ([]domain.HouseStanding, error) {
	return s.queryStandings(ctx, `SELECT name, total_points FROM houses ORDER BY name ASC`)
}

func (s *Store) RankedStandings(ctx context.Context) ([]domain.HouseStanding, error) {
	return s.queryStandings(ctx, `SELECT name, total_points FROM houses ORDER BY total_points DESC, name ASC`)
}

func (s *Store) TopStudents(ctx context.Context, limit int) ([]domain.StudentRank, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, assigned_house, total_points
		FROM students
		ORDER BY total_points DESC, name ASC, id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	defer rows.Close()

	var ranks []domain.StudentRank
	for rows.Next() {
		var (
			rank  domain.StudentRank
			house *string
			total int64
		)
		if err := rows.Scan(&rank.ID, &rank.Name, &house, &total); err != nil {
			return nil, fmt.Errorf("scan rank: %w", err)
		}
		if house != nil {
			rank.AssignedHouse = domain.House(*house)
		}
		rank.TotalPoints = int(total)
		ranks = append(ranks, rank)
	}
	return ranks, rows.Err()
}

// ApplyPointsChange runs the full ledger unit of work in one transaction:
// lock the student row, append the ledger entry, project the new total,
// and bump the assigned house aggregate. Either everything commits or
// nothing does, so partial ledger states cannot be observed.
func (s *Store) ApplyPointsChange(ctx context.Context, studentID string, delta int, reason string) (domain.PointTransaction, int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.PointTransaction{}, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		house *string
		total int64
	)
	err = tx.QueryRow(ctx, `
		SELECT assigned_house, total_points FROM students WHERE id=$1 FOR UPDATE
	`, studentID).Scan(&house, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PointTransaction{}, 0, domain.ErrStudentNotFound
	}
	if err != nil {
		return domain.PointTransaction{}, 0, fmt.Errorf("lock student: %w", err)
	}

	entry := domain.PointTransaction{StudentID: studentID, Delta: delta, Reason: reason}
	err = tx.QueryRow(ctx, `
		INSERT INTO point_transactions (student_id, delta, reason)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, studentID, delta, reason).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return domain.PointTransaction{}, 0, fmt.Errorf("append transaction: %w", err)
	}

	newTotal := int(total) + delta
	if _, err := tx.Exec(ctx, `UPDATE students SET total_points=$2 WHERE id=$1`, studentID, newTotal); err != nil {
		return domain.PointTransaction{}, 0, fmt.Errorf("update student total: %w", err)
	}

	if house != nil {
		if err := adjustHouse(ctx, tx, domain.House(*house), delta); err != nil {
			return domain.PointTransaction{}, 0, fmt.Errorf("adjust house: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.PointTransaction{}, 0, fmt.Errorf("commit: %w", err)
	}
	return entry, newTotal, nil
}

func (s *Store) RecentTransactions(ctx context.Context, studentID string, limit int) ([]domain.PointTransaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, student_id, delta, reason, created_at
		FROM point_transactions
		WHERE student_id=$1
		ORDER BY id DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.PointTransaction
	for rows.Next() {
		var (
			entry domain.PointTransaction
			delta int64
		)
		if err := rows.Scan(&entry.ID, &entry.StudentID, &delta, &entry.Reason, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		entry.Delta = int(delta)
		transactions = append(transactions, entry)
	}
	return transactions, rows.Err()
}

func (s *Store) InsertQuizAnswers(ctx context.Context, studentID string, answers []string) error {
	payload, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO quiz_answers (student_id, answers) VALUES ($1, $2::jsonb)
	`, studentID, string(payload)); err != nil {
		return fmt.Errorf("insert quiz answers: %w", err)
	}
	return nil
}

func (s *Store) queryStandings(ctx context.Context, query string) ([]domain.HouseStanding, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var standings []domain.HouseStanding
	for rows.Next() {
		var (
			name  string
			total int64
		)
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		standings = append(standings, domain.HouseStanding{Name: domain.House(name), TotalPoints: int(total)})
	}
	return standings, rows.Err()
}

// pgxExecer is satisfied by both the pool and an open transaction.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// adjustHouse upserts the row with total=delta or increments the existing
// total, as one server-side statement (ensure-then-adjust, race-free).
func adjustHouse(ctx context.Context, db pgxExecer, house domain.House, delta int) error {
	_, err := db.Exec(ctx, `
		INSERT INTO houses (name, total_points) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET total_points = houses.total_points + EXCLUDED.total_points
	`, string(house), delta)
	return err
}

type studentScanner interface {
	Scan(dest ...interface{}) error
}

func scanStudent(row studentScanner) (domain.Student, error) {
	var (
		student domain.Student
		house   *string
		total   int64
	)
	err := row.Scan(&student.ID, &student.Name, &student.Email, &student.Phone,
		&student.Instagram, &student.LinkedIn, &house, &total)
	if err != nil {
		return domain.Student{}, err
	}
	if house != nil {
		student.AssignedHouse = domain.House(*house)
	}
	student.TotalPoints = int(total)
	return student, nil
}
