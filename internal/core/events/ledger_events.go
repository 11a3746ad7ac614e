package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeTransactionCreated = "transaction.created"
	EventTypeTransactionUpdated = "transaction.updated"
	EventTypeTransactionDeleted = "transaction.deleted"

	EventTypeCategoryCreated = "category.created"
	EventTypeCategoryUpdated = "category.updated"
	EventTypeCategoryDeleted = "category.deleted"

	EventTypeUserDeleted = "user.deleted"
)

var (
	TransactionEventTypes = []string{EventTypeTransactionCreated, EventTypeTransactionUpdated, EventTypeTransactionDeleted}
	CategoryEventTypes    = []string{EventTypeCategoryCreated, EventTypeCategoryUpdated, EventTypeCategoryDeleted}
)

// TransactionMutatedEvent is published after a transaction write commits.
// OwnerID is the user whose ledger changed, which is not necessarily the
// acting user.
type TransactionMutatedEvent struct {
	BaseEvent
	TransactionID int64 `json:"transaction_id"`
	OwnerID       int64 `json:"owner_id"`
	ActorID       int64 `json:"actor_id"`
}

func NewTransactionMutatedEvent(eventType string, transactionID, ownerID, actorID int64) *TransactionMutatedEvent {
	return &TransactionMutatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"transaction_id": transactionID,
				"owner_id":       ownerID,
				"actor_id":       actorID,
			},
		},
		TransactionID: transactionID,
		OwnerID:       ownerID,
		ActorID:       actorID,
	}
}

// CategoryMutatedEvent is published after a category write commits.
// PresentationChanged is set when the name or color changed, which affects
// every payload embedding the category.
type CategoryMutatedEvent struct {
	BaseEvent
	CategoryID          int64 `json:"category_id"`
	PresentationChanged bool  `json:"presentation_changed"`
}

func NewCategoryMutatedEvent(eventType string, categoryID int64, presentationChanged bool) *CategoryMutatedEvent {
	return &CategoryMutatedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"category_id":          categoryID,
				"presentation_changed": presentationChanged,
			},
		},
		CategoryID:          categoryID,
		PresentationChanged: presentationChanged,
	}
}

// UserDeletedEvent is published after a user and their transactions are
// removed.
type UserDeletedEvent struct {
	BaseEvent
	UserID  int64 `json:"user_id"`
	ActorID int64 `json:"actor_id"`
}

func NewUserDeletedEvent(userID, actorID int64) *UserDeletedEvent {
	return &UserDeletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeUserDeleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"user_id":  userID,
				"actor_id": actorID,
			},
		},
		UserID:  userID,
		ActorID: actorID,
	}
}
