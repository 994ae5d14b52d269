package auth

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/affinity-network/exchange-service/pkg/storage"
)

const sessionNamespace = "auth-session"

type Storage struct {
	db storage.ServiceStorage
}

func NewAuthStorage(db storage.ServiceStorage) (*Storage, error) {
	if db == nil {
		return nil, errors.New("db reference is nil")
	}
	return &Storage{db: db}, nil
}

func (s *Storage) StoreSession(ctx context.Context, session Session) error {
	if session.Token == "" {
		return errors.New("could not store session without a token")
	}
	sessionBytes, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "marshalling session")
	}
	return s.db.Write(ctx, sessionNamespace, session.Token, sessionBytes)
}

func (s *Storage) GetSession(ctx context.Context, token string) (*Session, error) {
	sessionBytes, err := s.db.Read(ctx, sessionNamespace, token)
	if err != nil {
		return nil, errors.Wrap(err, "reading session")
	}
	if sessionBytes == nil {
		return nil, nil
	}
	var session Session
	if err = json.Unmarshal(sessionBytes, &session); err != nil {
		return nil, errors.Wrap(err, "unmarshalling session")
	}
	return &session, nil
}

func (s *Storage) DeleteSession(ctx context.Context, token string) error {
	return s.db.Delete(ctx, sessionNamespace, token)
}

// attemptUpdater increments a session's attempt count and exhausts the session
// at the ceiling, as one atomic storage update. The ceiling check and the
// increment must not be separable: two racing wrong-code submissions may not
// both observe a count below the ceiling.
type attemptUpdater struct {
	ceiling int
}

func (u attemptUpdater) Validate(v []byte) error {
	if v == nil {
		return errors.New("session not found")
	}
	return nil
}

func (u attemptUpdater) Update(v []byte) ([]byte, error) {
	var session Session
	if err := json.Unmarshal(v, &session); err != nil {
		return nil, errors.Wrap(err, "unmarshalling session")
	}
	session.AttemptCount++
	if session.AttemptCount >= u.ceiling {
		session.Status = StatusExhausted
	}
	return json.Marshal(session)
}

// RecordFailedAttempt atomically increments the session's attempt count,
// exhausting it at the ceiling, and returns the updated session.
func (s *Storage) RecordFailedAttempt(ctx context.Context, token string, ceiling int) (*Session, error) {
	updatedBytes, err := s.db.Update(ctx, sessionNamespace, token, attemptUpdater{ceiling: ceiling})
	if err != nil {
		return nil, errors.Wrap(err, "recording failed attempt")
	}
	var session Session
	if err = json.Unmarshal(updatedBytes, &session); err != nil {
		return nil, errors.Wrap(err, "unmarshalling updated session")
	}
	return &session, nil
}
