// Copyright 2022-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package store owns the companies and financial tables. Every operation runs
// in its own transaction; the store makes no isolation guarantee across calls
// (single-user assumption).
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/penny-vault/investor/common"
	"github.com/penny-vault/investor/database"
	"github.com/penny-vault/investor/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// Company is a listed business identified by its ticker. Ticker identity is
// immutable after creation; changing it requires delete and re-create.
type Company struct {
	Ticker string
	Name   string
	Sector string
}

// Financial holds the reported figures for a single company. nil means the
// source data did not include the figure; it is persisted as NULL and must
// never be conflated with zero.
type Financial struct {
	Ticker          string
	EBITDA          *float64
	Sales           *float64
	NetProfit       *float64
	MarketPrice     *float64
	NetDebt         *float64
	Assets          *float64
	Equity          *float64
	CashEquivalents *float64
	Liabilities     *float64
}

// FinancialColumns lists the updatable columns of the financial table in
// schema order
var FinancialColumns = []string{
	"ebitda",
	"sales",
	"net_profit",
	"market_price",
	"net_debt",
	"assets",
	"equity",
	"cash_equivalents",
	"liabilities",
}

// Store provides CRUD access over the companies and financial tables
type Store struct {
	pool database.PgxIface
}

// New creates a store over the given connection pool
func New(pool database.PgxIface) *Store {
	return &Store{pool: pool}
}

func (s *Store) begin(ctx context.Context) (pgx.Tx, error) {
	trx, err := s.pool.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not begin transaction")
	}
	return trx, err
}

func rollback(ctx context.Context, trx pgx.Tx) {
	if err := trx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		log.Error().Stack().Err(err).Msg("could not rollback transaction")
	}
}

// CreateCompany inserts a new company; returns ErrDuplicateTicker when the
// ticker is already present
func (s *Store) CreateCompany(ctx context.Context, company *Company) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "CreateCompany")
	defer span.End()

	company.Ticker = common.NormalizeTicker(company.Ticker)
	if company.Ticker == "" {
		return ErrEmptyTicker
	}

	trx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	_, err = trx.Exec(ctx, "INSERT INTO companies (ticker, name, sector) VALUES ($1, $2, $3)",
		company.Ticker, company.Name, company.Sector)
	if err != nil {
		rollback(ctx, trx)
		err = classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert company failed")
		if !errors.Is(err, ErrDuplicateTicker) {
			log.Error().Stack().Err(err).Str("Ticker", company.Ticker).Msg("could not insert company")
		}
		return err
	}

	return trx.Commit(ctx)
}

// CreateFinancial inserts the financial row for a company; returns
// ErrNoCompany when no company exists for the ticker
func (s *Store) CreateFinancial(ctx context.Context, financial *Financial) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "CreateFinancial")
	defer span.End()

	financial.Ticker = common.NormalizeTicker(financial.Ticker)
	if financial.Ticker == "" {
		return ErrEmptyTicker
	}

	trx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	_, err = trx.Exec(ctx, `INSERT INTO financial (ticker, ebitda, sales, net_profit, market_price,
		net_debt, assets, equity, cash_equivalents, liabilities)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		financial.Ticker, financial.EBITDA, financial.Sales, financial.NetProfit,
		financial.MarketPrice, financial.NetDebt, financial.Assets, financial.Equity,
		financial.CashEquivalents, financial.Liabilities)
	if err != nil {
		rollback(ctx, trx)
		err = classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert financial failed")
		if !errors.Is(err, ErrNoCompany) && !errors.Is(err, ErrDuplicateTicker) {
			log.Error().Stack().Err(err).Str("Ticker", financial.Ticker).Msg("could not insert financial record")
		}
		return err
	}

	return trx.Commit(ctx)
}

// Company returns the company for ticker; ErrNotFound when absent
func (s *Store) Company(ctx context.Context, ticker string) (*Company, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Company")
	defer span.End()

	ticker = common.NormalizeTicker(ticker)

	trx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, trx)

	company := &Company{}
	err = trx.QueryRow(ctx, "SELECT ticker, name, sector FROM companies WHERE ticker=$1", ticker).
		Scan(&company.Ticker, &company.Name, &company.Sector)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "select company failed")
		log.Error().Stack().Err(err).Str("Ticker", ticker).Msg("could not query company")
		return nil, err
	}

	return company, nil
}

// Financial returns the financial record for ticker; ErrNotFound when absent
func (s *Store) Financial(ctx context.Context, ticker string) (*Financial, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Financial")
	defer span.End()

	ticker = common.NormalizeTicker(ticker)

	trx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, trx)

	financial := &Financial{}
	err = trx.QueryRow(ctx, fmt.Sprintf("SELECT ticker, %s FROM financial WHERE ticker=$1",
		strings.Join(FinancialColumns, ", ")), ticker).
		Scan(&financial.Ticker, &financial.EBITDA, &financial.Sales, &financial.NetProfit,
			&financial.MarketPrice, &financial.NetDebt, &financial.Assets, &financial.Equity,
			&financial.CashEquivalents, &financial.Liabilities)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "select financial failed")
		log.Error().Stack().Err(err).Str("Ticker", ticker).Msg("could not query financial record")
		return nil, err
	}

	return financial, nil
}

// UpdateFinancial applies a partial update of the supplied columns only.
// Fields holds column name to new value; a nil value clears the column.
// Returns ErrNotFound when no financial record exists for ticker.
func (s *Store) UpdateFinancial(ctx context.Context, ticker string, fields map[string]*float64) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "UpdateFinancial")
	defer span.End()

	ticker = common.NormalizeTicker(ticker)
	if len(fields) == 0 {
		return ErrNoFields
	}

	// build the SET clause in schema order so the statement is deterministic;
	// only allow-listed columns may appear
	assignments := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	seen := 0
	for _, col := range FinancialColumns {
		val, ok := fields[col]
		if !ok {
			continue
		}
		seen++
		args = append(args, val)
		assignments = append(assignments, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if seen != len(fields) {
		return ErrUnknownField
	}
	args = append(args, ticker)
	sql := fmt.Sprintf("UPDATE financial SET %s WHERE ticker=$%d", strings.Join(assignments, ", "), len(args))

	trx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	tag, err := trx.Exec(ctx, sql, args...)
	if err != nil {
		rollback(ctx, trx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "update financial failed")
		log.Error().Stack().Err(err).Str("Ticker", ticker).Str("Query", sql).Msg("could not update financial record")
		return err
	}
	if tag.RowsAffected() == 0 {
		rollback(ctx, trx)
		return ErrNotFound
	}

	return trx.Commit(ctx)
}

// DeleteCompany removes the company and, through the cascading foreign key,
// its financial record in a single transaction. Returns ErrNotFound when the
// ticker is absent.
func (s *Store) DeleteCompany(ctx context.Context, ticker string) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "DeleteCompany")
	defer span.End()

	ticker = common.NormalizeTicker(ticker)

	trx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	tag, err := trx.Exec(ctx, "DELETE FROM companies WHERE ticker=$1", ticker)
	if err != nil {
		rollback(ctx, trx)
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete company failed")
		log.Error().Stack().Err(err).Str("Ticker", ticker).Msg("could not delete company")
		return err
	}
	if tag.RowsAffected() == 0 {
		rollback(ctx, trx)
		return ErrNotFound
	}

	return trx.Commit(ctx)
}

// Companies returns every company ordered ascending by ticker
func (s *Store) Companies(ctx context.Context) ([]*Company, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Companies")
	defer span.End()

	trx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, trx)

	rows, err := trx.Query(ctx, "SELECT ticker, name, sector FROM companies ORDER BY ticker ASC")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select companies failed")
		log.Error().Stack().Err(err).Msg("could not query companies")
		return nil, err
	}

	return scanCompanies(rows)
}

// SearchCompanies returns companies whose name contains the given fragment,
// case-insensitive, ordered ascending by ticker
func (s *Store) SearchCompanies(ctx context.Context, name string) ([]*Company, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "SearchCompanies")
	defer span.End()

	trx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, trx)

	rows, err := trx.Query(ctx,
		"SELECT ticker, name, sector FROM companies WHERE name ILIKE $1 ORDER BY ticker ASC",
		fmt.Sprintf("%%%s%%", name))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "search companies failed")
		log.Error().Stack().Err(err).Str("Name", name).Msg("could not search companies")
		return nil, err
	}

	return scanCompanies(rows)
}

func scanCompanies(rows pgx.Rows) ([]*Company, error) {
	companies := make([]*Company, 0, 16)
	for rows.Next() {
		company := &Company{}
		if err := rows.Scan(&company.Ticker, &company.Name, &company.Sector); err != nil {
			log.Error().Stack().Err(err).Msg("could not scan company row")
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// Financials returns every financial record ordered ascending by ticker
func (s *Store) Financials(ctx context.Context) ([]*Financial, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Financials")
	defer span.End()

	trx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer rollback(ctx, trx)

	rows, err := trx.Query(ctx, fmt.Sprintf("SELECT ticker, %s FROM financial ORDER BY ticker ASC",
		strings.Join(FinancialColumns, ", ")))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select financial records failed")
		log.Error().Stack().Err(err).Msg("could not query financial records")
		return nil, err
	}

	financials := make([]*Financial, 0, 16)
	for rows.Next() {
		financial := &Financial{}
		err := rows.Scan(&financial.Ticker, &financial.EBITDA, &financial.Sales,
			&financial.NetProfit, &financial.MarketPrice, &financial.NetDebt,
			&financial.Assets, &financial.Equity, &financial.CashEquivalents,
			&financial.Liabilities)
		if err != nil {
			log.Error().Stack().Err(err).Msg("could not scan financial row")
			return nil, err
		}
		financials = append(financials, financial)
	}

	return financials, rows.Err()
}

// CompanyCount returns the number of companies in the store
func (s *Store) CompanyCount(ctx context.Context) (int64, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "CompanyCount")
	defer span.End()

	trx, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer rollback(ctx, trx)

	var cnt int64
	if err := trx.QueryRow(ctx, "SELECT count(*) FROM companies").Scan(&cnt); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count companies failed")
		log.Error().Stack().Err(err).Msg("could not count companies")
		return 0, err
	}

	return cnt, nil
}

// Clear removes every financial and company record; calling it on an empty
// store is not an error
func (s *Store) Clear(ctx context.Context) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "Clear")
	defer span.End()

	trx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	// financial rows first so the foreign key never fires
	for _, sql := range []string{"DELETE FROM financial", "DELETE FROM companies"} {
		if _, err := trx.Exec(ctx, sql); err != nil {
			rollback(ctx, trx)
			span.RecordError(err)
			span.SetStatus(codes.Error, "clear store failed")
			log.Error().Stack().Err(err).Str("Query", sql).Msg("could not clear store")
			return err
		}
	}

	return trx.Commit(ctx)
}
