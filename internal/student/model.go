package student

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Student is the single persisted entity. studentId is the client-supplied
// business identifier; ID is the datastore-assigned one. Both are immutable
// after creation.
type Student struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	StudentID string             `bson:"studentId" json:"studentId" validate:"required"`
	Name      string             `bson:"name" json:"name" validate:"required"`
	Email     string             `bson:"email" json:"email"`
	Phone     string             `bson:"phone" json:"phone"`
	Program   string             `bson:"program" json:"program" validate:"required"`
	BatchYear int                `bson:"batchYear" json:"batchYear" validate:"required,gte=2000"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

var emailPattern = regexp.MustCompile(`^[\w\-.]+@([\w\-]+\.)+[\w\-]{2,4}$`)

// NormalizePhone rewrites a phone number before validation and storage.
// Numbers already carrying a country code (leading +) pass through; anything
// else has leading zeros stripped and +91 prepended.
func NormalizePhone(raw string) string {
	if raw == "" {
		return raw
	}
	if strings.HasPrefix(raw, "+") {
		return raw
	}
	return "+91" + strings.TrimLeft(raw, "0")
}

// ValidEmail reports whether the address matches local@domain.tld with a
// final label of 2-4 letters.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidPhone reports whether the (already normalized) number carries at
// least 10 digits, ignoring spaces, hyphens and the country-code plus.
func ValidPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

// Validate accumulates every violation rather than stopping at the first;
// callers join the list into a single error message. Presence checks come
// first, then email format, then phone format (after normalization).
func (s *Student) Validate(v *validator.Validate) []string {
	var violations []string

	missing := map[string]bool{}
	if err := v.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				missing[fe.StructField()] = true
			}
		}
	}

	if missing["StudentID"] {
		violations = append(violations, "studentId is required")
	}
	if missing["Name"] {
		violations = append(violations, "name is required")
	}
	if missing["Program"] {
		violations = append(violations, "program is required")
	}
	if missing["BatchYear"] {
		violations = append(violations, "batchYear is required and must be 2000 or later")
	}

	if !ValidEmail(s.Email) {
		violations = append(violations, fmt.Sprintf("%s is not a valid email address", s.Email))
	}
	if !ValidPhone(NormalizePhone(s.Phone)) {
		violations = append(violations, fmt.Sprintf("%s is not a valid phone number", s.Phone))
	}

	return violations
}
