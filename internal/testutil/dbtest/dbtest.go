// Package dbtest wires the gorm repositories and the custodial vault over an
// in-memory sqlite database for use case tests.
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	accessAdapter "github.com/kefkio/bloc-sacco/internal/adapter/access"
	"github.com/kefkio/bloc-sacco/internal/adapter/repository/mysql"
	vault "github.com/kefkio/bloc-sacco/internal/adapter/settlement"
	"github.com/kefkio/bloc-sacco/internal/domain/access"
	"github.com/kefkio/bloc-sacco/internal/domain/loan"
	"github.com/kefkio/bloc-sacco/internal/domain/member"
	"github.com/kefkio/bloc-sacco/internal/domain/params"
	"github.com/kefkio/bloc-sacco/internal/domain/settlement"
	"github.com/kefkio/bloc-sacco/pkg/lock"
)

// Open returns an in-memory sqlite handle with the full schema. The pool is
// capped at one connection because each :memory: connection is its own database,
// so tests must not query the root handle while a transaction is open.
func Open(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := mysql.Migrate(db); err != nil {
		t.Fatalf("migrate core: %v", err)
	}
	if err := vault.Migrate(db); err != nil {
		t.Fatalf("migrate vault: %v", err)
	}
	return db
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// Epoch is the default start time of a harness clock.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultParams keep the minimum loan small so tests can use round numbers.
var DefaultParams = params.Params{
	MinLoanAmount:         100,
	GracePeriodSecs:       3 * 24 * 3600,
	DefaultPenaltyPercent: 5,
	MaxPenaltyPercent:     10,
	MaxInstallmentCount:   24,
}

type Harness struct {
	DB      *gorm.DB
	UoW     *mysql.GormUoW
	Vault   *vault.Vault
	Checker *accessAdapter.Checker
	Guard   *lock.Keyed
	Clock   *Clock
	Admin   string
	Op      string

	// Wrap, when set, decorates the settlement adapter handed to every
	// transaction.
	Wrap func(settlement.Adapter) settlement.Adapter
}

func New(t *testing.T) *Harness {
	t.Helper()
	db := Open(t)
	h := &Harness{
		DB:    db,
		Vault: vault.NewVault(db, loan.ValidAsset),
		Guard: lock.NewKeyed(),
		Clock: NewClock(Epoch),
		Admin: Addr(0xad),
		Op:    Addr(0x0b),
	}
	factory := vault.Factory(loan.ValidAsset)
	h.UoW = mysql.NewGormUoW(db, func(tx *gorm.DB) settlement.Adapter {
		a := factory(tx)
		if h.Wrap != nil {
			return h.Wrap(a)
		}
		return a
	})
	h.Checker = accessAdapter.NewChecker(mysql.NewGrantRepository(db), []string{h.Admin})
	h.Grant(t, h.Op, access.RoleOperator)
	return h
}

// Addr builds a valid, distinct 0x address from n.
func Addr(n int) string { return fmt.Sprintf("0x%040x", n) }

func (h *Harness) Grant(t *testing.T, addr string, role access.Role) {
	t.Helper()
	g := &access.Grant{Address: addr, Role: role, GrantedBy: h.Admin}
	if err := mysql.NewGrantRepository(h.DB).Grant(context.Background(), g); err != nil {
		t.Fatalf("grant %s: %v", role, err)
	}
}

// Member stores a registered member with the given verification status.
func (h *Harness) Member(t *testing.T, addr string, status member.VerificationStatus) {
	t.Helper()
	m := &member.Member{Address: addr, Registered: true, Status: status, RegisteredBy: addr}
	if err := mysql.NewMemberRepository(h.DB).Create(context.Background(), m); err != nil {
		t.Fatalf("seed member: %v", err)
	}
}

// Deposit credits addr's vault wallet.
func (h *Harness) Deposit(t *testing.T, addr, asset string, amount int64) {
	t.Helper()
	if err := h.Vault.RecordDeposit(context.Background(), addr, asset, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

// FundCustody puts amount of asset straight into custody.
func (h *Harness) FundCustody(t *testing.T, asset string, amount int64) {
	t.Helper()
	funder := Addr(0xf0)
	h.Deposit(t, funder, asset, amount)
	if err := h.Vault.FundCustody(context.Background(), funder, asset, amount); err != nil {
		t.Fatalf("fund custody: %v", err)
	}
}

func (h *Harness) Wallet(t *testing.T, addr, asset string) int64 {
	t.Helper()
	bal, err := h.Vault.WalletBalance(context.Background(), addr, asset)
	if err != nil {
		t.Fatalf("wallet balance: %v", err)
	}
	return bal
}

func (h *Harness) Custody(t *testing.T, asset string) int64 {
	t.Helper()
	bal, err := h.Vault.CustodyBalance(context.Background(), asset)
	if err != nil {
		t.Fatalf("custody balance: %v", err)
	}
	return bal
}

// Root-handle repositories for assertions outside transactions.
func (h *Harness) Loans() *mysql.LoanRepository       { return mysql.NewLoanRepository(h.DB) }
func (h *Harness) Pledges() *mysql.PledgeRepository   { return mysql.NewPledgeRepository(h.DB) }
func (h *Harness) Balances() *mysql.BalanceRepository { return mysql.NewBalanceRepository(h.DB) }
func (h *Harness) Members() *mysql.MemberRepository   { return mysql.NewMemberRepository(h.DB) }
func (h *Harness) Params() *mysql.ParamsRepository    { return mysql.NewParamsRepository(h.DB) }
func (h *Harness) Events() *mysql.EventRepository     { return mysql.NewEventRepository(h.DB) }
