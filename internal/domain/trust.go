package domain

import (
	"time"

	"github.com/google/uuid"
)

// Action classifies the operation a request wants to perform.
type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionAdmin  Action = "admin"
	ActionSystem Action = "system"
)

// Sensitivity classifies the resource a request targets.
type Sensitivity string

const (
	SensitivityPublic       Sensitivity = "public"
	SensitivityInternal     Sensitivity = "internal"
	SensitivityConfidential Sensitivity = "confidential"
	SensitivitySecret       Sensitivity = "secret"
	SensitivityTopSecret    Sensitivity = "top_secret"
)

// StepUpMethod is an additional verification the engine may offer when
// a request falls just short of the required trust score.
type StepUpMethod string

const (
	StepUpTOTP              StepUpMethod = "totp"
	StepUpSMS               StepUpMethod = "sms"
	StepUpEmailCode         StepUpMethod = "email_code"
	StepUpRecoveryCode      StepUpMethod = "recovery_code"
	StepUpSecurityQuestions StepUpMethod = "security_questions"
)

// Anomaly is a single detector finding.
type Anomaly struct {
	Kind     EventKind `json:"kind"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// TrustDecision is the persisted outcome of one risk evaluation.
// Written for audit only; nothing reads it back on the hot path.
type TrustDecision struct {
	ID            uuid.UUID   `json:"id" db:"id"`
	IdentityID    *uuid.UUID  `json:"identity_id,omitempty" db:"identity_id"`
	IPAddress     string      `json:"ip_address" db:"ip_address"`
	Action        Action      `json:"action" db:"action"`
	Sensitivity   Sensitivity `json:"sensitivity" db:"sensitivity"`
	DeviceScore   float64     `json:"device_score" db:"device_score"`
	UserScore     float64     `json:"user_score" db:"user_score"`
	BehaviorScore float64     `json:"behavior_score" db:"behavior_score"`
	NetworkScore  float64     `json:"network_score" db:"network_score"`
	ContextScore  float64     `json:"context_score" db:"context_score"`
	Aggregate     float64     `json:"aggregate" db:"aggregate"`
	Required      float64     `json:"required" db:"required"`
	Allowed       bool        `json:"allowed" db:"allowed"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}
