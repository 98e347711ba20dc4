package training

import (
	"encoding/json"
	"strings"
)

const (
	TypeRunning       = "running"
	TypeNordicWalking = "nordic-walking"
)

// Training is one entry of the trainings file.
type Training struct {
	UID          string  `json:"uid"`
	Type         string  `json:"type"`
	Datetime     string  `json:"datetime"` // DD/MM/YYYY HH:MM
	Location     string  `json:"location"`
	LocationLink string  `json:"locationLink"`
	Comment      string  `json:"comment"`
	Phone        string  `json:"phone"`
	Distance     float64 `json:"distance"`
	Pace         float64 `json:"pace"`
}

func (t Training) RecordID() string { return t.UID }

// TrainingRequest is the body of the add and update calls. Distance and pace
// may arrive as numbers or numeric strings.
type TrainingRequest struct {
	Type         string      `json:"type" example:"running"`
	Datetime     string      `json:"datetime" example:"2025-05-04T18:30"`
	Location     string      `json:"location" example:"Błonia"`
	LocationLink string      `json:"locationLink"`
	Comment      string      `json:"comment"`
	Phone        string      `json:"phone"`
	Distance     json.Number `json:"distance" swaggertype:"number" example:"10"`
	Pace         json.Number `json:"pace" swaggertype:"number" example:"5.5"`
}

// NormalizeType maps the labels used by older data files to the current ones.
func NormalizeType(s string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case TypeRunning, "bieg":
		return TypeRunning, true
	case TypeNordicWalking, "nordic walking", "nordic_walking", "nw":
		return TypeNordicWalking, true
	default:
		return "", false
	}
}
