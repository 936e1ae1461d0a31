package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GaitSpeedRecord is a single walking-speed measurement in meters/second.
// Records reference their owner by username and are never edited.
type GaitSpeedRecord struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username string             `bson:"username" json:"username"`
	Date     time.Time          `bson:"date" json:"date"`
	Speed    float64            `bson:"speed" json:"speed"`
}

// SpeedStats summarises a set of speed measurements
type SpeedStats struct {
	Mean         float64 `json:"mean"`
	Stdev        float64 `json:"stdev"`
	TotalRecords int     `json:"totalRecords"`
}
