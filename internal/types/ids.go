// internal/types/ids.go
package types

import (
	"github.com/google/uuid"
)

type SessionID string
type RunID string
type EventID string
type AssetID string
type RequestID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewRunID() RunID {
	return RunID(uuid.New().String())
}

func NewEventID() EventID {
	return EventID(uuid.New().String())
}

func NewAssetID() AssetID {
	return AssetID(uuid.New().String())
}

func NewRequestID() RequestID {
	return RequestID(uuid.New().String())
}
