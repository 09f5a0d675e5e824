package models

import "time"

// OwnedRecord is implemented by every configuration record that belongs to one context.
// Nullable columns map to pointer fields so a NULL survives a copy.
type OwnedRecord interface {
	RecordID() string
	RecordContextID() string
}

// MainZone is a top-level zone of an event.
type MainZone struct {
	ID           string     `db:"id" json:"id"`
	ContextID    string     `db:"context_id" json:"context_id"`
	Name         string     `db:"name" json:"name"`
	Description  *string    `db:"description" json:"description,omitempty"`
	Color        *string    `db:"color" json:"color,omitempty"`
	Latitude     *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude    *float64   `db:"longitude" json:"longitude,omitempty"`
	RadiusMeters *float64   `db:"radius_meters" json:"radius_meters,omitempty"`
	SortOrder    int        `db:"sort_order" json:"sort_order"`
	Active       bool       `db:"active" json:"active"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (z MainZone) RecordID() string        { return z.ID }
func (z MainZone) RecordContextID() string { return z.ContextID }

// SubZone is nested under exactly one main zone of the same context.
type SubZone struct {
	ID          string     `db:"id" json:"id"`
	ContextID   string     `db:"context_id" json:"context_id"`
	MainZoneID  string     `db:"main_zone_id" json:"main_zone_id"`
	Name        string     `db:"name" json:"name"`
	Description *string    `db:"description" json:"description,omitempty"`
	Color       *string    `db:"color" json:"color,omitempty"`
	SortOrder   int        `db:"sort_order" json:"sort_order"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (z SubZone) RecordID() string        { return z.ID }
func (z SubZone) RecordContextID() string { return z.ContextID }

// CameraZone is an area covered by a camera feed.
type CameraZone struct {
	ID        string     `db:"id" json:"id"`
	ContextID string     `db:"context_id" json:"context_id"`
	Name      string     `db:"name" json:"name"`
	StreamURL *string    `db:"stream_url" json:"stream_url,omitempty"`
	Latitude  *float64   `db:"latitude" json:"latitude,omitempty"`
	Longitude *float64   `db:"longitude" json:"longitude,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (z CameraZone) RecordID() string        { return z.ID }
func (z CameraZone) RecordContextID() string { return z.ContextID }

// MessageCenter routes outbound messages for an event.
type MessageCenter struct {
	ID        string     `db:"id" json:"id"`
	ContextID string     `db:"context_id" json:"context_id"`
	Name      string     `db:"name" json:"name"`
	Channel   *string    `db:"channel" json:"channel,omitempty"`
	Address   *string    `db:"address" json:"address,omitempty"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (m MessageCenter) RecordID() string        { return m.ID }
func (m MessageCenter) RecordContextID() string { return m.ContextID }

// ReferenceMaterial is a named image or document whose bytes live in asset storage.
type ReferenceMaterial struct {
	ID         string     `db:"id" json:"id"`
	ContextID  string     `db:"context_id" json:"context_id"`
	Name       string     `db:"name" json:"name"`
	MediaType  *string    `db:"media_type" json:"media_type,omitempty"`
	FileName   *string    `db:"file_name" json:"file_name,omitempty"`
	StorageKey *string    `db:"storage_key" json:"storage_key,omitempty"`
	SizeBytes  int64      `db:"size_bytes" json:"size_bytes"`
	CreatedAt  *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (r ReferenceMaterial) RecordID() string        { return r.ID }
func (r ReferenceMaterial) RecordContextID() string { return r.ContextID }

// PresetMessage is a canned message operators can send.
type PresetMessage struct {
	ID        string     `db:"id" json:"id"`
	ContextID string     `db:"context_id" json:"context_id"`
	Title     string     `db:"title" json:"title"`
	Body      *string    `db:"body" json:"body,omitempty"`
	Priority  int        `db:"priority" json:"priority"`
	Active    bool       `db:"active" json:"active"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (p PresetMessage) RecordID() string        { return p.ID }
func (p PresetMessage) RecordContextID() string { return p.ContextID }

// Department groups contacts for alert routing.
type Department struct {
	ID        string     `db:"id" json:"id"`
	ContextID string     `db:"context_id" json:"context_id"`
	Name      string     `db:"name" json:"name"`
	Email     *string    `db:"email" json:"email,omitempty"`
	Phone     *string    `db:"phone" json:"phone,omitempty"`
	CreatedAt *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (d Department) RecordID() string        { return d.ID }
func (d Department) RecordContextID() string { return d.ContextID }

// Contact is a directory entry that may receive alerts.
type Contact struct {
	ID           string     `db:"id" json:"id"`
	ContextID    string     `db:"context_id" json:"context_id"`
	DepartmentID *string    `db:"department_id" json:"department_id,omitempty"`
	Name         string     `db:"name" json:"name"`
	Email        *string    `db:"email" json:"email,omitempty"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         *string    `db:"role" json:"role,omitempty"`
	AlertEnabled bool       `db:"alert_enabled" json:"alert_enabled"`
	CreatedAt    *time.Time `db:"created_at" json:"created_at,omitempty"`
}

func (c Contact) RecordID() string        { return c.ID }
func (c Contact) RecordContextID() string { return c.ContextID }
