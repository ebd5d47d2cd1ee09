package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Validation Configuration Constants
// =============================================================================

const (
	// ValidationLinkDuration is how long a supervisor may act on a link.
	ValidationLinkDuration = 30 * 24 * time.Hour

	// ValidationTokenBytes is the number of random bytes in a validation
	// token. The token is hex-encoded to 64 characters.
	ValidationTokenBytes = 32
)

// Messages shown to the supervisor on the public validation page.
const (
	MsgValidationNotFound  = "Lien de validation introuvable"
	MsgValidationExpired   = "Ce lien de validation a expiré"
	MsgValidationProcessed = "Cette demande de validation a déjà été traitée"
	MsgValidationApproved  = "Le constat a été validé et envoyé aux destinataires"
	MsgValidationRejected  = "Le constat a été refusé, le rédacteur a été notifié"
)

// =============================================================================
// Validation Status
// =============================================================================

// ValidationStatus is the state of a validation request.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "pending"
	ValidationApproved ValidationStatus = "approved"
	ValidationRejected ValidationStatus = "rejected"
)

// IsValid returns true if the status is a recognized value.
func (s ValidationStatus) IsValid() bool {
	switch s {
	case ValidationPending, ValidationApproved, ValidationRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may change to target.
// Only pending requests move, and only once.
func (s ValidationStatus) CanTransitionTo(target ValidationStatus) bool {
	return s == ValidationPending && (target == ValidationApproved || target == ValidationRejected)
}

// DecisionStatus returns the status a supervisor decision leads to.
func DecisionStatus(approved bool) ValidationStatus {
	if approved {
		return ValidationApproved
	}
	return ValidationRejected
}

// =============================================================================
// Validation Request
// =============================================================================

// ValidationRequest asks a supervisor to approve a finalized report before it
// is sent. The HTML and recipients are frozen at creation so the supervisor
// approves exactly what will be sent.
type ValidationRequest struct {
	ID                 uuid.UUID
	StateReportID      uuid.UUID
	UserID             *uuid.UUID
	ServiceID          *uuid.UUID
	SupervisorEmail    string
	Link               string
	ExpiresAt          time.Time
	Status             ValidationStatus
	SupervisorComment  *string
	ValidatedAt        *time.Time
	HTML               string
	OriginalRecipients []string
	CreatedAt          time.Time
}

// IsExpired returns true once now is past the expiry timestamp.
func (r *ValidationRequest) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// IsProcessed returns true once a decision has been recorded.
func (r *ValidationRequest) IsProcessed() bool {
	return r.Status != ValidationPending
}

// CheckUsable returns the error a caller gets for an expired or already
// processed request. Expiry is checked first.
func (r *ValidationRequest) CheckUsable(op string, now time.Time) error {
	if r.IsExpired(now) {
		return Gone(op, MsgValidationExpired)
	}
	if r.IsProcessed() {
		return Gone(op, MsgValidationProcessed)
	}
	return nil
}

// CheckViewable is CheckUsable without the status check. Processed requests
// stay downloadable until they expire.
func (r *ValidationRequest) CheckViewable(op string, now time.Time) error {
	if r.IsExpired(now) {
		return Gone(op, MsgValidationExpired)
	}
	return nil
}

// DecisionResult is returned to the supervisor after a decision.
type DecisionResult struct {
	Status  ValidationStatus
	Message string
}
