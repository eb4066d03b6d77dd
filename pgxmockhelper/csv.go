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

// Package pgxmockhelper builds pgxmock row sets from csv fixtures so DB-backed
// tests can share testdata with the loader tests.
package pgxmockhelper

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

type CSVRows struct {
	header []string
	rows   [][]any
}

// NewCSVRows parses a csv fixture. typeMap assigns a conversion per column
// name: "float64" produces a nullable *float64 (empty cell = nil); anything
// else stays a string.
func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	fh, err := os.Open(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not open fixture")
	}
	defer fh.Close()

	reader := csv.NewReader(fh)
	records, err := reader.ReadAll()
	if err != nil {
		subLog.Panic().Err(err).Msg("could not parse fixture")
	}
	if len(records) < 1 {
		subLog.Panic().Msg("fixture needs a header row")
	}

	csvRows := &CSVRows{
		header: records[0],
		rows:   make([][]any, 0, len(records)-1),
	}

	for _, record := range records[1:] {
		cols := make([]any, len(csvRows.header))
		for idx, val := range record {
			colName := csvRows.header[idx]
			if typeMap[colName] == "float64" {
				if val == "" {
					cols[idx] = (*float64)(nil)
					continue
				}
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Str("Column", colName).Msg("could not convert val to float64")
				}
				cols[idx] = &parsed
			} else {
				cols[idx] = val
			}
		}
		csvRows.rows = append(csvRows.rows, cols)
	}

	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// financialTypeMap marks every figure column of the financial table nullable
var financialTypeMap = map[string]string{
	"ebitda":           "float64",
	"sales":            "float64",
	"net_profit":       "float64",
	"market_price":     "float64",
	"net_debt":         "float64",
	"assets":           "float64",
	"equity":           "float64",
	"cash_equivalents": "float64",
	"liabilities":      "float64",
}

// MockCompaniesQuery registers the transaction flow of a read-only companies
// query: begin, select, rollback
func MockCompaniesQuery(db pgxmock.PgxConnIface, fn string) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT ticker, name, sector FROM companies").WillReturnRows(
		NewCSVRows(fn, nil).Rows())
	db.ExpectRollback()
}

// MockFinancialsQuery registers the transaction flow of a read-only financial
// table scan: begin, select, rollback
func MockFinancialsQuery(db pgxmock.PgxConnIface, fn string) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT ticker, ebitda, sales, net_profit, market_price, net_debt, assets, equity, cash_equivalents, liabilities FROM financial").
		WillReturnRows(NewCSVRows(fn, financialTypeMap).Rows())
	db.ExpectRollback()
}
