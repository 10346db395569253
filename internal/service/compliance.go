package service

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-firm/trust-ledger-go/internal/domain"
	"github.com/meridian-firm/trust-ledger-go/internal/infra/observability"
	"github.com/meridian-firm/trust-ledger-go/internal/port"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var complianceTracer = otel.Tracer("service/compliance")

// Report status thresholds: score >= 95 is compliant, >= 80 a warning,
// anything lower a violation.
var (
	scoreCompliant = decimal.NewFromInt(95)
	scoreWarning   = decimal.NewFromInt(80)
)

// ComplianceReporter aggregates registry, ledger and alert state into
// point-in-time regulatory reports. It is a read-only observer: reports
// never mutate underlying state.
type ComplianceReporter struct {
	store       port.LedgerStore
	cache       port.Cache[*domain.ComplianceReport]
	concurrency int
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewComplianceReporter creates a new reporter. concurrency bounds the
// per-account aggregation fan-out.
func NewComplianceReporter(store port.LedgerStore, cache port.Cache[*domain.ComplianceReport], concurrency int, metrics *observability.Metrics, logger *zap.Logger) *ComplianceReporter {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &ComplianceReporter{store: store, cache: cache, concurrency: concurrency, metrics: metrics, logger: logger}
}

type accountAggregate struct {
	compliance  domain.AccountCompliance
	deposits    decimal.Decimal
	withdrawals decimal.Decimal
	depCount    int
	wdCount     int
}

// GenerateReport builds an immutable compliance report for the period,
// scoped to one account when accountID is set, otherwise to all.
func (c *ComplianceReporter) GenerateReport(ctx context.Context, actor domain.Actor, start, end time.Time, accountID string) (*domain.ComplianceReport, error) {
	ctx, span := complianceTracer.Start(ctx, "ComplianceReporter.GenerateReport")
	defer span.End()
	span.SetAttributes(attribute.String("period.start", start.Format(time.RFC3339)))

	opStart := time.Now()
	defer func() { c.metrics.RecordOperationDuration("compliance_report", time.Since(opStart)) }()

	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, &domain.ErrValidation{Field: "period", Message: "end_date must be after start_date"}
	}

	cacheKey := fmt.Sprintf("%d|%d|%s", start.Unix(), end.Unix(), accountID)
	if cached, ok := c.cache.Get(cacheKey); ok {
		c.metrics.IncrCacheHit("compliance_report")
		return cached, nil
	}
	c.metrics.IncrCacheMiss("compliance_report")

	var accounts []domain.TrustAccount
	if accountID != "" {
		account, err := c.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		accounts = []domain.TrustAccount{*account}
	} else {
		var err error
		accounts, err = c.store.ListAccounts(ctx, domain.AccountFilter{})
		if err != nil {
			return nil, err
		}
	}

	aggregates := make([]accountAggregate, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range accounts {
		i := i
		g.Go(func() error {
			agg, err := c.aggregateAccount(gctx, &accounts[i], start, end)
			if err != nil {
				return err
			}
			aggregates[i] = *agg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := c.assemble(actor, start, end, accounts, aggregates)
	c.cache.Set(cacheKey, report)

	c.metrics.IncrReport(report.Status)
	c.logger.Info("compliance report generated",
		zap.String("report_id", report.ID),
		zap.Int("total_accounts", report.TotalAccounts),
		zap.Int("compliant_accounts", report.CompliantAccounts),
		zap.String("score", report.ComplianceScore.StringFixed(1)),
		zap.String("status", report.Status),
	)
	return report, nil
}

// aggregateAccount computes one account's compliance posture and its
// period deposit/withdrawal totals.
func (c *ComplianceReporter) aggregateAccount(ctx context.Context, account *domain.TrustAccount, start, end time.Time) (*accountAggregate, error) {
	agg := &accountAggregate{
		compliance: domain.AccountCompliance{
			AccountID:      account.ID,
			Compliant:      true,
			CurrentBalance: account.CurrentBalance,
		},
		deposits:    decimal.Zero,
		withdrawals: decimal.Zero,
	}

	if !account.IOLTACompliant {
		agg.compliance.Compliant = false
		agg.compliance.Issues = append(agg.compliance.Issues, "account not flagged IOLTA compliant")
	}
	if account.CurrentBalance.LessThan(account.MinimumBalance) {
		agg.compliance.Compliant = false
		agg.compliance.Issues = append(agg.compliance.Issues, "balance below minimum threshold")
	}

	alerts, err := c.store.ListAlerts(ctx, account.ID, true)
	if err != nil {
		return nil, err
	}
	for _, a := range alerts {
		if a.Severity == domain.AlertSeverityCritical {
			agg.compliance.Compliant = false
			agg.compliance.Issues = append(agg.compliance.Issues, "active critical alert: "+a.Type)
			break
		}
	}

	txns, err := c.store.ListTransactions(ctx, domain.TransactionFilter{
		AccountIDs: []string{account.ID},
		From:       &start,
		To:         &end,
	})
	if err != nil {
		return nil, err
	}
	for _, t := range txns {
		switch t.Type {
		case domain.TransactionTypeDeposit:
			agg.deposits = agg.deposits.Add(t.Amount)
			agg.depCount++
		case domain.TransactionTypeWithdrawal:
			agg.withdrawals = agg.withdrawals.Add(t.Amount)
			agg.wdCount++
		}
	}
	return agg, nil
}

func (c *ComplianceReporter) assemble(actor domain.Actor, start, end time.Time, accounts []domain.TrustAccount, aggregates []accountAggregate) *domain.ComplianceReport {
	report := &domain.ComplianceReport{
		ID:               uuid.New().String(),
		PeriodStart:      start,
		PeriodEnd:        end,
		TotalAccounts:    len(accounts),
		AggregateBalance: decimal.Zero,
		AverageBalance:   decimal.Zero,
		TotalDeposits:    decimal.Zero,
		TotalWithdrawals: decimal.Zero,
		GeneratedBy:      actor.ID,
		GeneratedAt:      time.Now().UTC(),
	}

	for i := range accounts {
		report.AccountIDs = append(report.AccountIDs, accounts[i].ID)
		agg := &aggregates[i]
		report.Accounts = append(report.Accounts, agg.compliance)
		if agg.compliance.Compliant {
			report.CompliantAccounts++
		}
		report.AggregateBalance = report.AggregateBalance.Add(agg.compliance.CurrentBalance)
		report.TotalDeposits = report.TotalDeposits.Add(agg.deposits)
		report.TotalWithdrawals = report.TotalWithdrawals.Add(agg.withdrawals)
		report.DepositCount += agg.depCount
		report.WithdrawalCount += agg.wdCount
	}

	if report.TotalAccounts > 0 {
		n := decimal.NewFromInt(int64(report.TotalAccounts))
		report.AverageBalance = report.AggregateBalance.Div(n).Round(2)
		report.ComplianceScore = decimal.NewFromInt(int64(report.CompliantAccounts)).
			Div(n).Mul(decimal.NewFromInt(100)).Round(2)
	} else {
		// No accounts in scope: vacuously compliant.
		report.ComplianceScore = decimal.NewFromInt(100)
	}

	switch {
	case report.ComplianceScore.GreaterThanOrEqual(scoreCompliant):
		report.Status = domain.ReportStatusCompliant
	case report.ComplianceScore.GreaterThanOrEqual(scoreWarning):
		report.Status = domain.ReportStatusWarning
	default:
		report.Status = domain.ReportStatusViolation
	}
	return report
}
