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

package rank_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/investor/pgxmockhelper"
	"github.com/penny-vault/investor/rank"
	"github.com/penny-vault/investor/ratios"
	"github.com/penny-vault/investor/store"
)

func fptr(v float64) *float64 {
	return &v
}

var financialCols = []string{
	"ticker", "ebitda", "sales", "net_profit", "market_price",
	"net_debt", "assets", "equity", "cash_equivalents", "liabilities",
}

var _ = Describe("TopTen", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
		st     *store.Store
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		st = store.New(dbPool)
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		dbPool.Close(context.Background())
	})

	Context("with a company whose metric is undefined", func() {
		BeforeEach(func() {
			// BB has no equity figure so its ROE is undefined
			pgxmockhelper.MockFinancialsQuery(dbPool, "../testdata/financial_roe.csv")
		})

		It("excludes it and sorts the rest descending", func() {
			entries, err := rank.TopTen(ctx, st, ratios.MetricROE)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Ticker).To(Equal("CC"))
			Expect(entries[0].Value).To(BeNumerically("~", 0.9, 1e-9))
			Expect(entries[1].Ticker).To(Equal("AA"))
			Expect(entries[1].Value).To(BeNumerically("~", 0.3, 1e-9))
		})
	})

	Context("with tied metric values", func() {
		BeforeEach(func() {
			rows := pgxmock.NewRows(financialCols).
				AddRow("ZZ", fptr(10), fptr(1), fptr(50), fptr(1), fptr(1), fptr(1), fptr(100), fptr(1), fptr(1)).
				AddRow("AA", fptr(10), fptr(1), fptr(50), fptr(1), fptr(1), fptr(1), fptr(100), fptr(1), fptr(1))
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT ticker, ebitda").WillReturnRows(rows)
			dbPool.ExpectRollback()
		})

		It("breaks the tie by ticker ascending", func() {
			entries, err := rank.TopTen(ctx, st, ratios.MetricROE)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(2))
			Expect(entries[0].Ticker).To(Equal("AA"))
			Expect(entries[1].Ticker).To(Equal("ZZ"))
		})
	})

	Context("with more than ten defined values", func() {
		BeforeEach(func() {
			rows := pgxmock.NewRows(financialCols)
			for ii := 0; ii < 12; ii++ {
				ticker := fmt.Sprintf("T%02d", ii)
				rows.AddRow(ticker, fptr(10), fptr(1), fptr(float64(ii+1)), fptr(1),
					fptr(1), fptr(1), fptr(100), fptr(1), fptr(1))
			}
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT ticker, ebitda").WillReturnRows(rows)
			dbPool.ExpectRollback()
		})

		It("returns exactly ten entries, largest first", func() {
			entries, err := rank.TopTen(ctx, st, ratios.MetricROE)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(10))
			Expect(entries[0].Ticker).To(Equal("T11"))
			Expect(entries[9].Ticker).To(Equal("T02"))
		})
	})

	Context("with the ND/EBITDA metric", func() {
		BeforeEach(func() {
			rows := pgxmock.NewRows(financialCols).
				// zero ebitda means the ratio is undefined, not infinite
				AddRow("AA", fptr(0), fptr(1), fptr(1), fptr(1), fptr(50), fptr(1), fptr(1), fptr(1), fptr(1)).
				AddRow("BB", fptr(100), fptr(1), fptr(1), fptr(1), fptr(50), fptr(1), fptr(1), fptr(1), fptr(1))
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT ticker, ebitda").WillReturnRows(rows)
			dbPool.ExpectRollback()
		})

		It("drops the zero-ebitda company", func() {
			entries, err := rank.TopTen(ctx, st, ratios.MetricNetDebtEBITDA)
			Expect(err).To(BeNil())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Ticker).To(Equal("BB"))
			Expect(entries[0].Value).To(BeNumerically("~", 0.5, 1e-9))
		})
	})

	Context("with an unknown metric", func() {
		BeforeEach(func() {
			rows := pgxmock.NewRows(financialCols).
				AddRow("AA", fptr(1), fptr(1), fptr(1), fptr(1), fptr(1), fptr(1), fptr(1), fptr(1), fptr(1))
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT ticker, ebitda").WillReturnRows(rows)
			dbPool.ExpectRollback()
		})

		It("returns ErrUnsupportedMetric", func() {
			_, err := rank.TopTen(ctx, st, ratios.Metric("P/E"))
			Expect(err).To(MatchError(rank.ErrUnsupportedMetric))
		})
	})
})
