package domain

import "time"

// Modship records that a user moderates a leaderboard.
type Modship struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	LeaderboardID string    `json:"leaderboardId"`
	CreatedAt     time.Time `json:"createdAt"`
}
