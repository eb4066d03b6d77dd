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

// Package loader ingests companies.csv and financial.csv into the store.
// Ingestion is insert-only: rows for tickers that already exist are skipped,
// never overwritten, so manually entered data survives a reload. One bad row
// never aborts the remaining rows.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"github.com/penny-vault/investor/common"
	"github.com/penny-vault/investor/observability/opentelemetry"
	"github.com/penny-vault/investor/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

const (
	CompaniesFn = "companies.csv"
	FinancialFn = "financial.csv"
)

var (
	ErrMissingFile   = errors.New("csv file not found in data directory")
	ErrMissingHeader = errors.New("csv file is missing a required header column")
)

// RowKind classifies an input row before it touches persistence
type RowKind int

const (
	// ValidRow may be inserted
	ValidRow RowKind = iota
	// OrphanRow is a financial row whose ticker has no company
	OrphanRow
	// MalformedRow cannot be interpreted at all (e.g. no ticker)
	MalformedRow
)

// Summary reports what a single ingestion batch did
type Summary struct {
	CompaniesAdded    int
	CompaniesSkipped  int
	FinancialsAdded   int
	FinancialsSkipped int
	Orphans           int
	Malformed         int
}

// ImportAll loads companies.csv followed by financial.csv from dataDir. Both
// files require a header row; column order does not matter. Empty or
// non-numeric financial cells are stored as missing, never zero.
func ImportAll(ctx context.Context, st *store.Store, dataDir string) (*Summary, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "ImportAll")
	defer span.End()

	batchID := uuid.New().String()
	subLog := log.With().Str("BatchID", batchID).Str("DataDir", dataDir).Logger()

	summary := &Summary{}

	if err := importCompanies(ctx, st, filepath.Join(dataDir, CompaniesFn), summary, subLog); err != nil {
		return summary, err
	}
	if err := importFinancial(ctx, st, filepath.Join(dataDir, FinancialFn), summary, subLog); err != nil {
		return summary, err
	}

	subLog.Info().
		Int("CompaniesAdded", summary.CompaniesAdded).
		Int("CompaniesSkipped", summary.CompaniesSkipped).
		Int("FinancialsAdded", summary.FinancialsAdded).
		Int("Orphans", summary.Orphans).
		Int("Malformed", summary.Malformed).
		Msg("csv ingestion finished")
	return summary, nil
}

// header returns a column name to index map, or an error when a required
// column is absent
func header(record []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(record))
	for idx, name := range record {
		cols[name] = idx
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, name)
		}
	}
	return cols, nil
}

func cell(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

// parseFigure converts a csv cell to a nullable figure. Empty and
// non-numeric cells both map to missing.
func parseFigure(raw string) (*float64, bool) {
	if raw == "" {
		return nil, true
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &val, true
}

func importCompanies(ctx context.Context, st *store.Store, fn string, summary *Summary, subLog zerolog.Logger) error {
	fh, err := os.Open(fn)
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("could not open companies csv")
		return fmt.Errorf("%w: %s", ErrMissingFile, fn)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1

	headerRec, err := reader.Read()
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("could not read companies csv header")
		return err
	}
	cols, err := header(headerRec, "ticker", "name", "sector")
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("companies csv header invalid")
		return err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// a mangled line is a per-row failure, not a batch failure
			subLog.Warn().Err(err).Msg("skipping unparsable companies row")
			summary.Malformed++
			continue
		}

		company := &store.Company{
			Ticker: common.NormalizeTicker(cell(record, cols, "ticker")),
			Name:   cell(record, cols, "name"),
			Sector: cell(record, cols, "sector"),
		}
		if classifyCompany(company) == MalformedRow {
			subLog.Warn().Str("Ticker", company.Ticker).Msg("skipping malformed companies row")
			summary.Malformed++
			continue
		}

		switch err := st.CreateCompany(ctx, company); {
		case err == nil:
			summary.CompaniesAdded++
		case errors.Is(err, store.ErrDuplicateTicker):
			// insert-only: never clobber an existing record
			subLog.Debug().Str("Ticker", company.Ticker).Msg("company already exists; skipping")
			summary.CompaniesSkipped++
		default:
			return err
		}
	}

	return nil
}

func importFinancial(ctx context.Context, st *store.Store, fn string, summary *Summary, subLog zerolog.Logger) error {
	fh, err := os.Open(fn)
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("could not open financial csv")
		return fmt.Errorf("%w: %s", ErrMissingFile, fn)
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	reader.FieldsPerRecord = -1

	headerRec, err := reader.Read()
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("could not read financial csv header")
		return err
	}
	cols, err := header(headerRec, "ticker")
	if err != nil {
		subLog.Error().Stack().Err(err).Str("FileName", fn).Msg("financial csv header invalid")
		return err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			subLog.Warn().Err(err).Msg("skipping unparsable financial row")
			summary.Malformed++
			continue
		}

		financial, kind := buildFinancial(record, cols, subLog)
		if kind == MalformedRow {
			summary.Malformed++
			continue
		}

		switch err := st.CreateFinancial(ctx, financial); {
		case err == nil:
			summary.FinancialsAdded++
		case errors.Is(err, store.ErrNoCompany):
			// orphan financial row; skip it and keep going
			subLog.Warn().Str("Ticker", financial.Ticker).Msg("financial row references unknown company; skipping")
			summary.Orphans++
		case errors.Is(err, store.ErrDuplicateTicker):
			subLog.Debug().Str("Ticker", financial.Ticker).Msg("financial record already exists; skipping")
			summary.FinancialsSkipped++
		default:
			return err
		}
	}

	return nil
}

func classifyCompany(company *store.Company) RowKind {
	if company.Ticker == "" || company.Name == "" {
		return MalformedRow
	}
	return ValidRow
}

// buildFinancial resolves a raw csv record into a financial row. Malformed
// numeric cells degrade to missing figures; a missing ticker makes the whole
// row malformed.
func buildFinancial(record []string, cols map[string]int, subLog zerolog.Logger) (*store.Financial, RowKind) {
	ticker := common.NormalizeTicker(cell(record, cols, "ticker"))
	if ticker == "" {
		subLog.Warn().Msg("skipping financial row with no ticker")
		return nil, MalformedRow
	}

	financial := &store.Financial{Ticker: ticker}
	fields := map[string]**float64{
		"ebitda":           &financial.EBITDA,
		"sales":            &financial.Sales,
		"net_profit":       &financial.NetProfit,
		"market_price":     &financial.MarketPrice,
		"net_debt":         &financial.NetDebt,
		"assets":           &financial.Assets,
		"equity":           &financial.Equity,
		"cash_equivalents": &financial.CashEquivalents,
		"liabilities":      &financial.Liabilities,
	}

	for name, dest := range fields {
		raw := cell(record, cols, name)
		val, ok := parseFigure(raw)
		if !ok {
			subLog.Warn().Str("Ticker", ticker).Str("Column", name).Str("Value", raw).
				Msg("non-numeric financial figure; storing as missing")
		}
		*dest = val
	}

	return financial, ValidRow
}
