package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Coord struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// RescueRequest is the customer form. It is immutable once submitted.
type RescueRequest struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Location       string `json:"location"`
	VehicleModel   string `json:"vehicle_model"`
	VehicleNumber  string `json:"vehicle_number,omitempty"`
	BatteryLevel   int    `json:"battery_level"` // 0..100
	AdditionalInfo string `json:"additional_info,omitempty"`
}

// Validate applies the required-field rules of the rescue form.
func (r RescueRequest) Validate() error {
	v := ValidationError{}
	v.require("name", r.Name)
	v.require("phone", r.Phone)
	v.require("location", r.Location)
	v.require("vehicle_model", r.VehicleModel)
	if r.BatteryLevel < 0 || r.BatteryLevel > 100 {
		v.add("battery_level", "must be between 0 and 100")
	}
	return v.orNil()
}

// DriverInfo is a rescue van driver as served by the mock directory.
type DriverInfo struct {
	ID      string  `json:"id" yaml:"id"`
	Name    string  `json:"name" yaml:"name"`
	Phone   string  `json:"phone,omitempty" yaml:"phone"`
	Vehicle string  `json:"vehicle" yaml:"vehicle"`
	Plate   string  `json:"plate" yaml:"plate"`
	Rating  float64 `json:"rating" yaml:"rating"` // 0..5
	Loc     Coord   `json:"loc" yaml:"loc"`
	Online  bool    `json:"online" yaml:"online"`
	ETA     float64 `json:"eta_seconds,omitempty" yaml:"-"`
}

// RescueJob is a pending rescue request shown on the driver dashboard.
type RescueJob struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Location     string        `json:"location"`
	Vehicle      string        `json:"vehicle"`
	BatteryLevel int           `json:"battery_level"`
	Loc          Coord         `json:"loc"`
	RequestedAgo time.Duration `json:"requested_ago"`
	DistanceKm   float64       `json:"distance_km"`
	Status       string        `json:"status"` // pending, accepted
}

// Timestamp renders RequestedAgo the way the dashboard shows it.
func (j RescueJob) Timestamp() string {
	m := int(j.RequestedAgo.Round(time.Minute) / time.Minute)
	switch {
	case m <= 0:
		return "just now"
	case m == 1:
		return "1 minute ago"
	default:
		return fmt.Sprintf("%d minutes ago", m)
	}
}

func (j RescueJob) Distance() string { return fmt.Sprintf("%.1f km", j.DistanceKm) }

type Rating struct {
	Stars    int    `json:"stars"`
	Feedback string `json:"feedback,omitempty"`
}

// DriverRegistration is the driver sign-up form.
type DriverRegistration struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`
}

func (d DriverRegistration) Validate() error {
	v := ValidationError{}
	v.require("name", d.Name)
	v.require("email", d.Email)
	v.require("phone", d.Phone)
	v.require("city", d.City)
	return v.orNil()
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c Credentials) Validate() error {
	v := ValidationError{}
	v.require("email", c.Email)
	v.require("password", c.Password)
	return v.orNil()
}

type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (c ContactMessage) Validate() error {
	v := ValidationError{}
	v.require("name", c.Name)
	v.require("email", c.Email)
	v.require("subject", c.Subject)
	v.require("message", c.Message)
	return v.orNil()
}

type Variant string

const (
	VariantSuccess     Variant = "success"
	VariantDestructive Variant = "destructive"
)

// Notification is a fire-and-forget toast.
type Notification struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Variant     Variant `json:"variant"`
}

type DashboardStats struct {
	ActiveRequests int `json:"active_requests"`
	CompletedToday int `json:"completed_today"`
	TotalRescues   int `json:"total_rescues"`
}

// RescueRecord summarises a finished workflow run.
type RescueRecord struct {
	SessionID    string
	Role         string
	CustomerName string
	DriverName   string
	Vehicle      string
	StartBattery int
	EndBattery   int
	Amount       int
	Stars        int
	Feedback     string
	CompletedAt  time.Time
}

// StageEvent is published on every stage transition.
type StageEvent struct {
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Event     string    `json:"event"`
	At        time.Time `json:"at"`
}

type GuideStep struct {
	Number      int    `json:"number" yaml:"number"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
}

// ValidationError maps form fields to messages.
type ValidationError map[string]string

func (v ValidationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationError) add(field, msg string) { v[field] = msg }

func (v ValidationError) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
	}
}

func (v ValidationError) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
