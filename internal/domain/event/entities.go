package event

import (
	"context"
	"encoding/json"
	"time"
)

type Type string

const (
	MemberRegistered          Type = "member.registered"
	MemberVerificationUpdated Type = "member.verification_updated"
	PledgeRecorded            Type = "guarantor.pledge_recorded"
	LoanRequested             Type = "loan.requested"
	LoanGuaranteed            Type = "loan.guaranteed"
	LoanThresholdAdjusted     Type = "loan.threshold_adjusted"
	LoanApproved              Type = "loan.approved"
	LoanDisbursed             Type = "loan.disbursed"
	InstallmentPaid           Type = "loan.installment_paid"
	PenaltyCharged            Type = "loan.penalty_charged"
	RepaymentReceived         Type = "loan.repayment_received"
	OverpaymentRefunded       Type = "loan.overpayment_refunded"
	LoanFullyRepaid           Type = "loan.fully_repaid"
	LoanDefaulted             Type = "loan.defaulted"
	LoanCancelled             Type = "loan.cancelled"
	CollateralReleased        Type = "collateral.released"
	CollateralWithdrawn       Type = "collateral.withdrawn"
	OperatorGranted           Type = "admin.operator_granted"
	OperatorRevoked           Type = "admin.operator_revoked"
	ParamsUpdated             Type = "admin.params_updated"
	WalletDeposited           Type = "vault.deposit_recorded"
	CustodyFunded             Type = "vault.custody_funded"
)

// Outbox is a committed-but-unpublished event. Rows are written in the same
// transaction as the state change they describe.
type Outbox struct {
	ID          uint64     `gorm:"primaryKey;column:id" json:"-"`
	EventID     string     `gorm:"size:32;not null;uniqueIndex:ux_outbox_event_id" json:"event_id"`
	Type        Type       `gorm:"size:48;not null" json:"type"`
	LoanID      uint64     `gorm:"not null;default:0;index" json:"loan_id,omitempty"`
	Subject     string     `gorm:"size:42" json:"subject,omitempty"`
	Amount      int64      `gorm:"not null;default:0" json:"amount,omitempty"`
	Payload     string     `gorm:"type:text" json:"payload,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	PublishedAt *time.Time `gorm:"index" json:"published_at,omitempty"`
	Attempts    int        `gorm:"not null;default:0" json:"-"`
	LastError   string     `gorm:"size:255" json:"-"`
}

func (Outbox) TableName() string { return "outbox_events" }

type Repository interface {
	Append(ctx context.Context, e *Outbox) error
	// Pending returns up to limit unpublished rows, oldest first.
	Pending(ctx context.Context, limit int) ([]Outbox, error)
	MarkPublished(ctx context.Context, id uint64, at time.Time) error
	MarkFailed(ctx context.Context, id uint64, reason string) error
}

// Publisher delivers an event to consumers outside the service.
type Publisher interface {
	Publish(ctx context.Context, e Outbox) error
}

// New builds an outbox row; payload, when non-nil, is stored as JSON.
func New(typ Type, loanID uint64, subject string, amount int64, payload any) *Outbox {
	e := &Outbox{Type: typ, LoanID: loanID, Subject: subject, Amount: amount}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			e.Payload = string(b)
		}
	}
	return e
}
