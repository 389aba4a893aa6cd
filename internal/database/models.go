package database

import (
	"database/sql"
	"time"
)

type Message struct {
	Id        int
	Ref       string
	Nickname  string
	Body      string
	SessionId sql.NullString
	CreatedAt time.Time
}

type Ban struct {
	Id        int
	SessionId string
	Nickname  sql.NullString
	Reason    sql.NullString
	CreatedAt time.Time
	ExpiresAt sql.NullTime
}

type User struct {
	Id           int
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateMessageParams struct {
	Ref       string
	Nickname  string
	Body      string
	SessionId string
}

type CreateBanParams struct {
	SessionId string
	Nickname  string
	Reason    string
	ExpiresAt *time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	PasswordHash string
}
