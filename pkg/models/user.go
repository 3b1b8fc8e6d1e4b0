package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultUserName is the placeholder owner assigned to pages discovered on disk
// before anyone has claimed them. It carries no email.
const DefaultUserName = "Default"

// User represents a person who can own, review or request changes to pages
type User struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	JiraAccountID string    `json:"jira_account_id,omitempty" db:"jira_account_id"`
	Team          string    `json:"team,omitempty" db:"team"`
	Department    string    `json:"department,omitempty" db:"department"`
	HRCID         string    `json:"hrc_id,omitempty" db:"hrc_id"`
	JobTitle      string    `json:"job_title,omitempty" db:"job_title"`
	Role          string    `json:"role,omitempty" db:"role"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// IsDefault reports whether u is the "no owner" sentinel.
func (u *User) IsDefault() bool {
	return u == nil || u.Email == ""
}

// UserStruct is the user payload sent by the console when assigning people.
// It mirrors the employee directory record.
type UserStruct struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Team       string `json:"team"`
	Department string `json:"department"`
	JobTitle   string `json:"jobTitle"`
	Role       string `json:"role"`
}

// ToUser converts the directory payload into a User.
func (s UserStruct) ToUser() *User {
	return &User{
		Name:       s.Name,
		Email:      s.Email,
		Team:       s.Team,
		Department: s.Department,
		HRCID:      s.ID,
		JobTitle:   s.JobTitle,
		Role:       s.Role,
	}
}

// TokenClaims represents the JWT token claims
type TokenClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name,omitempty"`
	Type   string `json:"type"` // "access"
	Exp    int64  `json:"exp"`
	Iat    int64  `json:"iat"`
}

// GetExpirationTime implements jwt.Claims interface
func (c *TokenClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Exp, 0)), nil
}

// GetIssuedAt implements jwt.Claims interface
func (c *TokenClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(time.Unix(c.Iat, 0)), nil
}

// GetNotBefore implements jwt.Claims interface
func (c *TokenClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return nil, nil
}

// GetIssuer implements jwt.Claims interface
func (c *TokenClaims) GetIssuer() (string, error) {
	return "", nil
}

// GetSubject implements jwt.Claims interface
func (c *TokenClaims) GetSubject() (string, error) {
	return c.UserID, nil
}

// GetAudience implements jwt.Claims interface
func (c *TokenClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}
