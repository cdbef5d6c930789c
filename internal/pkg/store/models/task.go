package models

import (
	"time"

	"ess-loan-gateway/internal/pkg/consts"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskPayload carries what a task needs beyond the application id.
type TaskPayload struct {
	SourceMsgID string `bson:"sourceMsgId,omitempty" json:"sourceMsgId,omitempty"`
	MessageType string `bson:"messageType,omitempty" json:"messageType,omitempty"`
	DetailsXML  string `bson:"detailsXml,omitempty" json:"detailsXml,omitempty"`
}

// Task is a durable unit of saga work drained by the worker pool.
type Task struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	TaskID        string             `bson:"taskId" json:"taskId"`
	Kind          consts.TaskKind    `bson:"kind" json:"kind"`
	ApplicationID string             `bson:"applicationId" json:"applicationId"`
	DedupeKey     string             `bson:"dedupeKey" json:"dedupeKey"`
	Payload       TaskPayload        `bson:"payload" json:"payload"`
	Status        consts.TaskStatus  `bson:"status" json:"status"`
	Attempts      int                `bson:"attempts" json:"attempts"`
	MaxAttempts   int                `bson:"maxAttempts" json:"maxAttempts"`
	NextAttemptAt time.Time          `bson:"nextAttemptAt" json:"nextAttemptAt"`
	LockedUntil   *time.Time         `bson:"lockedUntil,omitempty" json:"lockedUntil,omitempty"`
	LockedBy      string             `bson:"lockedBy,omitempty" json:"lockedBy,omitempty"`
	LastError     string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
