package db_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"student-management-api/internal/config"
	"student-management-api/internal/db"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second},
		{5, 10 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, db.BackoffDelay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestGatewayBeforeConnect(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	gateway := db.New(config.MongoConfig{}, logger)

	assert.False(t, gateway.Ready())

	_, err := gateway.Collection()
	assert.ErrorIs(t, err, db.ErrNotInitialized)

	err = gateway.Ping(context.Background())
	assert.ErrorIs(t, err, db.ErrNotInitialized)

	// Closing an unconnected gateway is a no-op.
	assert.NoError(t, gateway.Close(context.Background()))
}

func TestDuplicateKeyField(t *testing.T) {
	duplicate := func(msg string) error {
		return mongo.WriteException{
			WriteErrors: mongo.WriteErrors{{Code: 11000, Message: msg}},
		}
	}

	t.Run("EmailIndex", func(t *testing.T) {
		err := duplicate(`E11000 duplicate key error collection: student_management.students index: email_1 dup key: { email: "a@b.com" }`)
		field, ok := db.DuplicateKeyField(err)
		assert.True(t, ok)
		assert.Equal(t, "email", field)
	})

	t.Run("StudentIdIndex", func(t *testing.T) {
		err := duplicate(`E11000 duplicate key error collection: student_management.students index: studentId_1 dup key: { studentId: "ST1" }`)
		field, ok := db.DuplicateKeyField(err)
		assert.True(t, ok)
		assert.Equal(t, "studentId", field)
	})

	t.Run("PhoneIndex", func(t *testing.T) {
		err := duplicate(`E11000 duplicate key error collection: student_management.students index: phone_1 dup key: { phone: "+919876543210" }`)
		field, ok := db.DuplicateKeyField(err)
		assert.True(t, ok)
		assert.Equal(t, "phone", field)
	})

	t.Run("NotADuplicate", func(t *testing.T) {
		_, ok := db.DuplicateKeyField(errors.New("connection reset"))
		assert.False(t, ok)
	})

	t.Run("NilError", func(t *testing.T) {
		_, ok := db.DuplicateKeyField(nil)
		assert.False(t, ok)
	})
}
