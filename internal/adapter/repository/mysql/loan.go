package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	loanDomain "github.com/kefkio/bloc-sacco/internal/domain/loan"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func bySeq(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(l).Error; err != nil {
		return err
	}
	return r.saveInstallments(ctx, l)
}

func (r *LoanRepository) Save(ctx context.Context, l *loanDomain.Loan) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(l).Error; err != nil {
		return err
	}
	return r.saveInstallments(ctx, l)
}

func (r *LoanRepository) saveInstallments(ctx context.Context, l *loanDomain.Loan) error {
	for i := range l.Installments {
		inst := &l.Installments[i]
		inst.LoanID = l.ID
		if err := r.db.WithContext(ctx).Save(inst).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Preload("Installments", bySeq).First(&out, id)
	return &out, res.Error
}

func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Installments", bySeq).
		First(&out, id)
	return &out, res.Error
}

func (r *LoanRepository) ListByBorrower(ctx context.Context, borrower string) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Where("borrower = ?", borrower).
		Order("id DESC").
		Find(&out)
	return out, res.Error
}
