package domain

import "time"

// Student is a participant profile. AssignedHouse is empty until the
// student submits the sorting quiz; TotalPoints is a denormalized sum of
// that student's ledger deltas.
type Student struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	Instagram     string `json:"instagram,omitempty"`
	LinkedIn      string `json:"linkedin,omitempty"`
	AssignedHouse House  `json:"assignedHouse,omitempty"`
	TotalPoints   int    `json:"totalPoints"`
}

// PointTransaction is an append-only ledger entry. Rows are never updated
// or deleted; totals are projections over them.
type PointTransaction struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"studentId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuizAnswerRecord captures one quiz submission. Resubmissions append new
// records; earlier ones are kept for audit.
type QuizAnswerRecord struct {
	ID        int64     `json:"id"`
	StudentID string    `json:"studentId"`
	Answers   []string  `json:"answers"`
	CreatedAt time.Time `json:"createdAt"`
}

// HouseStanding is a snapshot-friendly view of a house total.
type HouseStanding struct {
	Name        House `json:"name"`
	TotalPoints int   `json:"totalPoints"`
}

// Standings captures the ordered house scoreboard.
type Standings struct {
	Houses    []HouseStanding `json:"houses"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// StudentRank is the admin-overview projection of a student.
type StudentRank struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	AssignedHouse House  `json:"assignedHouse,omitempty"`
	TotalPoints   int    `json:"totalPoints"`
}

// Dashboard is the student-facing read view: own profile, all house
// standings, and the most recent ledger entries.
type Dashboard struct {
	Profile      Student            `json:"profile"`
	Houses       []HouseStanding    `json:"houses"`
	Transactions []PointTransaction `json:"transactions"`
}

// Overview is the admin-facing read view.
type Overview struct {
	Houses      []HouseStanding `json:"houses"`
	TopStudents []StudentRank   `json:"topStudents"`
}
