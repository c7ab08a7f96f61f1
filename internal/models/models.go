package models

import "time"

// DeviceKind classifies the physical units that take part in the readiness
// handshake and hit reporting.
type DeviceKind string

const (
	KindTargetNode DeviceKind = "target"
	KindCar        DeviceKind = "car"
	KindCamera     DeviceKind = "camera"
	KindDrone      DeviceKind = "drone"
)

// Device is one physical unit in the fleet. Devices exist for the duration of
// a readiness handshake; LastReady is set when the ack arrives.
type Device struct {
	ID        string     `json:"id"`
	Kind      DeviceKind `json:"kind"`
	LastReady time.Time  `json:"last_ready,omitempty"`
}

// SessionMeta is the metadata handoff written by the console front end before
// a game launches: which game, which level, and which controller (if any) the
// player picked.
type SessionMeta struct {
	GameNumber  int    `json:"game_number"`
	LevelNumber int    `json:"level_number"`
	Controller  string `json:"controller,omitempty"`
}

// PlayRecord is the immutable historical entry for one completed session.
// Timestamps are unix seconds, UTC.
type PlayRecord struct {
	PlayID         string `json:"play_id"`
	TokenID        int    `json:"token_id"`
	GameNumber     int    `json:"game_number"`
	LevelNumber    int    `json:"level_number"`
	Score          int    `json:"score"`
	BeginTimestamp int64  `json:"begin_timestamp"`
	EndTimestamp   int64  `json:"end_timestamp"`
}

// BestKey identifies one best-score row.
type BestKey struct {
	TokenID     int `json:"token_id"`
	GameNumber  int `json:"game_number"`
	LevelNumber int `json:"level_number"`
}

// BestScore is the highest score ever recorded for one key. HighestScore is
// monotonically non-decreasing over the row's lifetime.
type BestScore struct {
	BestKey
	HighestScore      int   `json:"highest_score"`
	TimestampAchieved int64 `json:"timestamp_achieved"`
}
