package services

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "tattootrack/internal/errors"
	"tattootrack/internal/logger"
	"tattootrack/internal/models"
)

// financeService computes period reports over transactions.
type financeService struct {
	db *gorm.DB
}

// NewFinanceService creates a new FinanceServicer.
func NewFinanceService(db *gorm.DB) FinanceServicer {
	return &financeService{db: db}
}

type amountRow struct {
	CategoryID string
	Type       models.TransactionType
	Amount     decimal.Decimal
}

// rows loads the amounts booked within [from, to], both inclusive days.
func (s *financeService) rows(ctx context.Context, from, to time.Time) ([]amountRow, error) {
	start, end := dayBounds(&from, &to)
	var rows []amountRow
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Select("category_id", "type", "amount").
		Where("date >= ? AND date < ?", *start, *end).
		Scan(&rows).Error
	return rows, err
}

func checkPeriod(from, to time.Time) error {
	if to.Before(from) {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "end_date must not be before start_date")
	}
	return nil
}

// Summary totals income and expense over the period.
func (s *financeService) Summary(ctx context.Context, from, to time.Time) (*FinanceSummary, error) {
	if err := checkPeriod(from, to); err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	summary := &FinanceSummary{Income: decimal.Zero, Expense: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case models.TransactionTypeIncome:
			summary.Income = summary.Income.Add(r.Amount)
		case models.TransactionTypeExpense:
			summary.Expense = summary.Expense.Add(r.Amount)
		}
	}
	summary.Balance = summary.Income.Sub(summary.Expense)
	summary.TransactionCount = int64(len(rows))
	return summary, nil
}

// ByCategory totals the period per category, largest first.
func (s *financeService) ByCategory(ctx context.Context, from, to time.Time) ([]CategoryTotal, error) {
	if err := checkPeriod(from, to); err != nil {
		return nil, err
	}
	rows, err := s.rows(ctx, from, to)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	totals := make(map[string]*CategoryTotal)
	ids := make([]string, 0)
	for _, r := range rows {
		t, ok := totals[r.CategoryID]
		if !ok {
			t = &CategoryTotal{CategoryID: r.CategoryID, Total: decimal.Zero}
			totals[r.CategoryID] = t
			ids = append(ids, r.CategoryID)
		}
		t.Total = t.Total.Add(r.Amount)
		t.Count++
	}

	if len(ids) > 0 {
		var categories []models.Category
		if err := s.db.WithContext(ctx).Unscoped().Where("id IN ?", ids).Find(&categories).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, c := range categories {
			if t, ok := totals[c.ID]; ok {
				t.Name = c.Name
				t.Type = c.Type
				t.Color = c.Color
			}
		}
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, id := range ids {
		out = append(out, *totals[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Report runs Summary and ByCategory concurrently.
func (s *financeService) Report(ctx context.Context, from, to time.Time) (*FinanceReport, error) {
	ctx, span := tracer.Start(ctx, "finances.Report")
	defer span.End()
	span.SetAttributes(
		attribute.String("period.from", from.Format("2006-01-02")),
		attribute.String("period.to", to.Format("2006-01-02")),
	)

	var (
		summary    *FinanceSummary
		categories []CategoryTotal
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = s.Summary(gctx, from, to)
		return err
	})
	g.Go(func() error {
		var err error
		categories, err = s.ByCategory(gctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &FinanceReport{From: from, To: to, Summary: *summary, Categories: categories}, nil
}

// Export writes the period as an xlsx workbook with a summary, a category
// breakdown and every transaction.
func (s *financeService) Export(ctx context.Context, from, to time.Time, w io.Writer) error {
	report, err := s.Report(ctx, from, to)
	if err != nil {
		return err
	}

	start, end := dayBounds(&from, &to)
	var transactions []models.Transaction
	if err := s.db.WithContext(ctx).
		Preload("Category", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Where("date >= ? AND date < ?", *start, *end).
		Order("date ASC").
		Find(&transactions).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logger.Get().Warnw("failed to close workbook", "error", err)
		}
	}()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	summaryRows := [][]any{
		{"Period", fmt.Sprintf("%s to %s", from.Format("2006-01-02"), to.Format("2006-01-02"))},
		{"Income", report.Summary.Income.InexactFloat64()},
		{"Expense", report.Summary.Expense.InexactFloat64()},
		{"Balance", report.Summary.Balance.InexactFloat64()},
		{"Transactions", report.Summary.TransactionCount},
	}
	if err := writeRows(f, summarySheet, summaryRows); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	const categorySheet = "Categories"
	if _, err := f.NewSheet(categorySheet); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	categoryRows := [][]any{{"Category", "Type", "Total", "Count"}}
	for _, c := range report.Categories {
		categoryRows = append(categoryRows, []any{c.Name, string(c.Type), c.Total.InexactFloat64(), c.Count})
	}
	if err := writeRows(f, categorySheet, categoryRows); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	const txSheet = "Transactions"
	if _, err := f.NewSheet(txSheet); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	txRows := [][]any{{"Date", "Type", "Category", "Description", "Amount", "Automatic"}}
	for _, t := range transactions {
		categoryName := ""
		if t.Category != nil {
			categoryName = t.Category.Name
		}
		txRows = append(txRows, []any{
			t.Date.Format("2006-01-02"),
			string(t.Type),
			categoryName,
			t.Description,
			t.Amount.InexactFloat64(),
			t.IsAutomatic,
		})
	}
	if err := writeRows(f, txSheet, txRows); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if err := f.Write(w); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
