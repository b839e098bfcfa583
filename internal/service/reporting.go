package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportingService derives read-only views from the ledger and bucket set.
// Nothing it returns is a source of truth for balances.
type ReportingService struct {
	store   QueryStore
	buckets BucketStore
	ledger  LedgerStore
}

func NewReportingService(store QueryStore) *ReportingService {
	return &ReportingService{store: store}
}

type AllocationItem struct {
	Bucket  domain.Bucket   `json:"bucket"`
	Value   decimal.Decimal `json:"value"`
	Share   decimal.Decimal `json:"share"`
	Display string          `json:"display"`
}

type AllocationReport struct {
	AccountID uuid.UUID        `json:"accountId"`
	Total     decimal.Decimal  `json:"total"`
	Display   string           `json:"display"`
	Items     []AllocationItem `json:"items"`
}

// Allocation returns each bucket's value and its share of the total, rounded to
// four places. Shares are zero for an empty account.
func (s *ReportingService) Allocation(ctx context.Context, accountID uuid.UUID) (*AllocationReport, error) {
	b, err := s.buckets.Get(ctx, s.store.Queries(), accountID)
	if err != nil {
		return nil, err
	}
	total := b.Total()
	report := &AllocationReport{
		AccountID: accountID,
		Total:     total,
		Display:   domain.FormatUSD(total),
		Items:     make([]AllocationItem, 0, len(domain.Buckets)),
	}
	for _, bucket := range domain.Buckets {
		v, _ := b.Get(bucket)
		share := decimal.Zero
		if total.IsPositive() {
			share = v.DivRound(total, 4)
		}
		report.Items = append(report.Items, AllocationItem{
			Bucket:  bucket,
			Value:   v,
			Share:   share,
			Display: domain.FormatUSD(v),
		})
	}
	return report, nil
}

// FlowDay sums one UTC day of settled entries. Inflow and Outflow follow the
// ledger sign convention, so investment withdrawals count as inflow and
// investment funding as outflow. Swaps are zero-net and contribute nothing.
type FlowDay struct {
	Date    string          `json:"date"`
	Inflow  decimal.Decimal `json:"inflow"`
	Outflow decimal.Decimal `json:"outflow"`
	Net     decimal.Decimal `json:"net"`
	PnL     decimal.Decimal `json:"pnl"`
}

type FlowsReport struct {
	AccountID uuid.UUID       `json:"accountId"`
	From      *time.Time      `json:"from,omitempty"`
	To        *time.Time      `json:"to,omitempty"`
	Days      []FlowDay       `json:"days"`
	Net       decimal.Decimal `json:"net"`
	PnL       decimal.Decimal `json:"pnl"`
}

// Flows groups SUCCESS entries in [from, to] by day. PnL entries are reported
// in their own column, signed by kind.
func (s *ReportingService) Flows(ctx context.Context, accountID uuid.UUID, from, to *time.Time) (*FlowsReport, error) {
	if from != nil && to != nil && to.Before(*from) {
		return nil, errors.New("to must not be before from")
	}
	if _, err := s.buckets.Get(ctx, s.store.Queries(), accountID); err != nil {
		return nil, err
	}

	days := make(map[string]*FlowDay)
	filter := models.LedgerFilter{
		From:   from,
		To:     to,
		Status: domain.StatusSuccess,
		Limit:  maxLedgerLimit,
	}
	for {
		page, err := s.ledger.ListForAccount(ctx, s.store.Queries(), accountID, filter)
		if err != nil {
			return nil, err
		}
		for _, e := range page {
			key := e.CreatedAt.UTC().Format("2006-01-02")
			day, ok := days[key]
			if !ok {
				day = &FlowDay{Date: key}
				days[key] = day
			}
			addFlow(day, e)
		}
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	report := &FlowsReport{AccountID: accountID, From: from, To: to, Days: make([]FlowDay, 0, len(days))}
	for _, day := range days {
		report.Days = append(report.Days, *day)
		report.Net = report.Net.Add(day.Net)
		report.PnL = report.PnL.Add(day.PnL)
	}
	sort.Slice(report.Days, func(i, j int) bool { return report.Days[i].Date < report.Days[j].Date })
	return report, nil
}

func addFlow(day *FlowDay, e models.LedgerEntry) {
	if e.Classification == domain.ClassInvestPnL {
		if e.Kind == domain.KindWithdraw {
			day.PnL = day.PnL.Sub(e.Amount)
		} else {
			day.PnL = day.PnL.Add(e.Amount)
		}
		return
	}
	switch e.Amount.Sign() {
	case 1:
		day.Inflow = day.Inflow.Add(e.Amount)
	case -1:
		day.Outflow = day.Outflow.Add(e.Amount.Abs())
	}
	day.Net = day.Inflow.Sub(day.Outflow)
}
