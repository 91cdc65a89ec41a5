package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProfileType is the closed set of profile kinds. Anything that is not a
// known kind is treated as ProfileUnspecified.
type ProfileType string

const (
	ProfileStudent      ProfileType = "student"
	ProfileProfessional ProfileType = "professional"
	ProfileUnspecified  ProfileType = "unspecified"
)

// ParseProfileType returns the matching kind and whether s named a known kind.
func ParseProfileType(s string) (ProfileType, bool) {
	switch ProfileType(strings.ToLower(strings.TrimSpace(s))) {
	case ProfileStudent:
		return ProfileStudent, true
	case ProfileProfessional:
		return ProfileProfessional, true
	default:
		return ProfileUnspecified, false
	}
}

// Normalized maps stored values outside the closed set to ProfileUnspecified.
func (p ProfileType) Normalized() ProfileType {
	pt, _ := ParseProfileType(string(p))
	return pt
}

type User struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	Email          string      `gorm:"uniqueIndex;not null" json:"email"`
	HashedPassword string      `gorm:"not null" json:"-"`
	IsActive       bool        `gorm:"not null" json:"is_active"`
	IsSuperuser    bool        `gorm:"not null;default:false" json:"is_superuser"`
	IsVerified     bool        `gorm:"not null;default:false" json:"is_verified"`
	Username       string      `gorm:"not null" json:"username"`
	ProfileType    ProfileType `gorm:"size:20" json:"profile_type"`
	Organization   string      `json:"organization"`
	Program        *string     `json:"program"`
	YearOfStudy    *int        `json:"year_of_study"`
	JobTitle       *string     `json:"job_title"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// Owner is the display view of an author attached to posts and comments.
type Owner struct {
	Username     string      `json:"username"`
	ProfileType  ProfileType `json:"profile_type"`
	Organization string      `json:"organization"`
	Headline     string      `json:"headline"`
}

func (u *User) Owner() Owner {
	return Owner{
		Username:     u.Username,
		ProfileType:  u.ProfileType.Normalized(),
		Organization: u.Organization,
		Headline:     u.Headline(),
	}
}

// Headline is the job title when set, otherwise "{program}, Year {n}".
// Users with neither get an empty headline.
func (u *User) Headline() string {
	if u.JobTitle != nil && strings.TrimSpace(*u.JobTitle) != "" {
		return strings.TrimSpace(*u.JobTitle)
	}
	if u.Program == nil || strings.TrimSpace(*u.Program) == "" {
		return ""
	}
	program := strings.TrimSpace(*u.Program)
	if u.YearOfStudy == nil {
		return program
	}
	return fmt.Sprintf("%s, Year %d", program, *u.YearOfStudy)
}
