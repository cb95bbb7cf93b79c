package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type Role string

const (
	RoleClient     Role = "client"
	RoleTechnician Role = "technician"
)

type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusAssigned   TicketStatus = "assign"
	TicketStatusPlanified  TicketStatus = "planified"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusSuspended  TicketStatus = "suspendu"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// PhotoList stores opaque photo references as a JSON array column.
// The backend never interprets photo bytes, only the references.
type PhotoList []string

func (p PhotoList) Value() (driver.Value, error) {
	if p == nil {
		p = PhotoList{}
	}
	return json.Marshal(p)
}

func (p *PhotoList) Scan(value interface{}) error {
	if value == nil {
		*p = PhotoList{}
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("photos: unsupported column type %T", value)
	}
}

type User struct {
	ID           uint64 `gorm:"primaryKey" json:"id"`
	LastName     string `gorm:"column:nom;type:varchar(255);not null" json:"nom"`
	FirstName    string `gorm:"column:prenom;type:varchar(255);not null" json:"prenom"`
	Email        string `gorm:"uniqueIndex;type:varchar(255);not null" json:"email"`
	PasswordHash string `gorm:"column:password;type:varchar(255);not null" json:"-"`
	Phone        string `gorm:"column:telephone;uniqueIndex;type:varchar(32);not null" json:"telephone"`
	Country      string `gorm:"column:pays;type:varchar(64)" json:"pays"`
	City         string `gorm:"column:ville;type:varchar(64)" json:"ville"`
	Role         Role   `gorm:"type:varchar(16);not null" json:"role"`
	ProfilePhoto string `gorm:"column:photo_profile;type:varchar(255)" json:"photo_profile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Ticket struct {
	ID            uint64       `gorm:"primaryKey" json:"id"`
	ClientID      uint64       `gorm:"column:user_id;index;not null" json:"user_id"`
	ProblemType   string       `gorm:"column:type_probleme;type:varchar(255);not null" json:"type_probleme"`
	Description   string       `gorm:"type:text;not null" json:"description"`
	Address       string       `gorm:"column:adresse;type:varchar(255);not null" json:"adresse"`
	Photos        PhotoList    `gorm:"type:json" json:"photos"`
	Status        TicketStatus `gorm:"column:statut;type:varchar(32);index;not null" json:"statut"`
	AppointmentAt *time.Time   `gorm:"column:date_rdv" json:"date_rdv,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Intervention is one technician's timed work session against a ticket.
// At most one row per (ticket, technician) may have a null end time; the
// store enforces that with a partial unique index.
type Intervention struct {
	ID           uint64     `gorm:"primaryKey" json:"id"`
	TicketID     uint64     `gorm:"index;not null" json:"ticket_id"`
	ClientID     uint64     `gorm:"index;not null" json:"client_id"`
	TechnicianID uint64     `gorm:"index;not null" json:"technician_id"`
	StartedAt    *time.Time `gorm:"column:heure_debut" json:"heure_debut,omitempty"`
	EndedAt      *time.Time `gorm:"column:heure_fin" json:"heure_fin,omitempty"`
	TakenOn      time.Time  `gorm:"column:date_prise_en_charge;not null" json:"date_prise_en_charge"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Report is the technician's closing record for a ticket. Append-only:
// no update or delete path exists.
type Report struct {
	ID           uint64       `gorm:"primaryKey" json:"id"`
	TicketID     uint64       `gorm:"index;not null" json:"ticket_id"`
	ClientID     uint64       `gorm:"index;not null" json:"client_id"`
	TechnicianID uint64       `gorm:"column:technicien_id;index;not null" json:"technicien_id"`
	Solution     string       `gorm:"type:text;not null" json:"solution"`
	Duration     string       `gorm:"column:duree;type:varchar(20);not null" json:"duree"`
	Price        float64      `gorm:"column:prix;not null" json:"prix"`
	Status       TicketStatus `gorm:"column:statut;type:varchar(32);not null" json:"statut"`
	WorkedOn     time.Time    `gorm:"column:date_intervention;not null" json:"date_intervention"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Report) TableName() string { return "rapports" }

type Payment struct {
	ID       uint64        `gorm:"primaryKey" json:"id"`
	ClientID uint64        `gorm:"index;not null" json:"client_id"`
	TicketID uint64        `gorm:"uniqueIndex;not null" json:"ticket_id"`
	Amount   float64       `json:"amount"`
	Method   string        `gorm:"type:varchar(16);not null" json:"method"`
	Status   PaymentStatus `gorm:"type:varchar(16);index;not null" json:"status"`
	Link     string        `gorm:"column:payment_link;type:text" json:"payment_link"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
