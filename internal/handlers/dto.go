package handlers

import (
	"paperboard/internal/services"

	"github.com/google/uuid"
)

// Request payloads. Shape and format rules live in the binding tags; the
// services enforce the domain rules again.

type registerRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=8"`
	Username     string  `json:"username" binding:"required,max=50"`
	ProfileType  string  `json:"profile_type" binding:"required,oneof=student professional"`
	Organization string  `json:"organization" binding:"max=200"`
	Program      *string `json:"program" binding:"omitempty,max=200"`
	YearOfStudy  *int    `json:"year_of_study" binding:"omitempty,min=1,max=10"`
	JobTitle     *string `json:"job_title" binding:"omitempty,max=200"`
}

func (r registerRequest) input() services.RegisterInput {
	return services.RegisterInput{
		Email:        r.Email,
		Password:     r.Password,
		Username:     r.Username,
		ProfileType:  r.ProfileType,
		Organization: r.Organization,
		Program:      r.Program,
		YearOfStudy:  r.YearOfStudy,
		JobTitle:     r.JobTitle,
	}
}

type profileUpdateRequest struct {
	Email        *string `json:"email" binding:"omitempty,email"`
	Password     *string `json:"password" binding:"omitempty,min=8"`
	Username     *string `json:"username" binding:"omitempty,max=50"`
	ProfileType  *string `json:"profile_type" binding:"omitempty,oneof=student professional"`
	Organization *string `json:"organization" binding:"omitempty,max=200"`
	Program      *string `json:"program" binding:"omitempty,max=200"`
	YearOfStudy  *int    `json:"year_of_study" binding:"omitempty,min=1,max=10"`
	JobTitle     *string `json:"job_title" binding:"omitempty,max=200"`
}

func (r profileUpdateRequest) input() services.ProfileUpdate {
	return services.ProfileUpdate{
		Email:        r.Email,
		Password:     r.Password,
		Username:     r.Username,
		ProfileType:  r.ProfileType,
		Organization: r.Organization,
		Program:      r.Program,
		YearOfStudy:  r.YearOfStudy,
		JobTitle:     r.JobTitle,
	}
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type createCommentRequest struct {
	Body            string     `json:"body" binding:"required,max=1000"`
	ParentCommentID *uuid.UUID `json:"parent_comment_id"`
}

// rateRequest is bound from ?score= or from a JSON body.
type rateRequest struct {
	Score *int `form:"score" json:"score" binding:"required,min=1,max=5"`
}
