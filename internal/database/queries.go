package database

import (
	"database/sql"
	"time"
)

const maxRecentMessages = 100

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	var sessionId sql.NullString
	if params.SessionId != "" {
		sessionId = sql.NullString{String: params.SessionId, Valid: true}
	}

	res := db.conn.QueryRow(
		"INSERT INTO chat_messages (ref, nickname, body, session_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, ref, nickname, body, session_id, created_at",
		params.Ref,
		params.Nickname,
		params.Body,
		sessionId,
		time.Now().UTC(),
	)

	var m Message
	err := res.Scan(
		&m.Id,
		&m.Ref,
		&m.Nickname,
		&m.Body,
		&m.SessionId,
		&m.CreatedAt,
	)

	return m, err
}

// RecentMessages returns the most recent messages ordered ascending by
// creation time. The limit is capped at maxRecentMessages.
func (db *PgChatRepository) RecentMessages(limit int) ([]Message, error) {
	if limit <= 0 || limit > maxRecentMessages {
		limit = maxRecentMessages
	}

	rows, err := db.conn.Query(
		"SELECT id, ref, nickname, body, session_id, created_at FROM ("+
			"SELECT id, ref, nickname, body, session_id, created_at FROM chat_messages "+
			"ORDER BY created_at DESC, id DESC LIMIT $1"+
			") AS recent ORDER BY created_at ASC, id ASC",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var m Message
		if err = rows.Scan(&m.Id, &m.Ref, &m.Nickname, &m.Body, &m.SessionId, &m.CreatedAt); err != nil {
			break
		}

		messages = append(messages, m)
	}

	return messages, err
}

func (db *PgChatRepository) DeleteMessage(id int) error {
	res, err := db.conn.Exec("DELETE FROM chat_messages WHERE id = $1", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgChatRepository) CreateBan(params CreateBanParams) (Ban, error) {
	var nickname, reason sql.NullString
	if params.Nickname != "" {
		nickname = sql.NullString{String: params.Nickname, Valid: true}
	}
	if params.Reason != "" {
		reason = sql.NullString{String: params.Reason, Valid: true}
	}

	var expiresAt sql.NullTime
	if params.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *params.ExpiresAt, Valid: true}
	}

	res := db.conn.QueryRow(
		"INSERT INTO chat_bans (session_id, nickname, reason, created_at, expires_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, session_id, nickname, reason, created_at, expires_at",
		params.SessionId,
		nickname,
		reason,
		time.Now().UTC(),
		expiresAt,
	)

	var b Ban
	err := res.Scan(
		&b.Id,
		&b.SessionId,
		&b.Nickname,
		&b.Reason,
		&b.CreatedAt,
		&b.ExpiresAt,
	)

	return b, err
}

func (db *PgChatRepository) DeleteBan(id int) error {
	res, err := db.conn.Exec("DELETE FROM chat_bans WHERE id = $1", id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *PgChatRepository) ListBans() ([]Ban, error) {
	rows, err := db.conn.Query(
		"SELECT id, session_id, nickname, reason, created_at, expires_at FROM chat_bans " +
			"ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bans = make([]Ban, 0)
	for rows.Next() {
		var b Ban
		if err = rows.Scan(&b.Id, &b.SessionId, &b.Nickname, &b.Reason, &b.CreatedAt, &b.ExpiresAt); err != nil {
			break
		}

		bans = append(bans, b)
	}

	return bans, err
}

// ActiveBanSessionIds returns the session ids of bans which have not
// expired. Expiry is passive, expired rows stay in the table until an
// explicit unban.
func (db *PgChatRepository) ActiveBanSessionIds() ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT session_id FROM chat_bans WHERE expires_at IS NULL OR expires_at > $1",
		time.Now().UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids = make([]string, 0)
	for rows.Next() {
		var id string
		if err = rows.Scan(&id); err != nil {
			break
		}

		ids = append(ids, id)
	}

	return ids, err
}

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, username, email, created_at, updated_at",
		params.Username,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func (db *PgChatRepository) CountAccounts() (int, error) {
	row := db.conn.QueryRow("SELECT count(*) FROM accounts")

	var n int
	err := row.Scan(&n)
	return n, err
}

func (db *PgChatRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, password_hash, created_at, updated_at FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}
