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

package loader_test

import (
	"context"

	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/investor/loader"
	"github.com/penny-vault/investor/store"
)

func fptr(v float64) *float64 {
	return &v
}

func expectInsertOK(dbPool pgxmock.PgxConnIface, table string, args ...interface{}) {
	dbPool.ExpectBegin()
	expect := dbPool.ExpectExec("INSERT INTO " + table)
	if len(args) > 0 {
		expect.WithArgs(args...)
	}
	expect.WillReturnResult(pgxmock.NewResult("INSERT", 1))
	dbPool.ExpectCommit()
}

func expectInsertError(dbPool pgxmock.PgxConnIface, table, code string) {
	dbPool.ExpectBegin()
	dbPool.ExpectExec("INSERT INTO " + table).
		WillReturnError(&pgconn.PgError{Code: code})
	dbPool.ExpectRollback()
}

var _ = Describe("ImportAll", func() {
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

	Context("with an empty store", func() {
		BeforeEach(func() {
			// companies.csv: three valid rows; the ticker-less row never
			// reaches the database
			expectInsertOK(dbPool, "companies", "AAPL", "Apple Inc.", "Electronic Technology")
			expectInsertOK(dbPool, "companies", "MSFT", "Microsoft Corporation", "Technology Services")
			expectInsertOK(dbPool, "companies", "IBM", "International Business Machines", "Technology Services")

			// financial.csv: AAPL ok; ZZZ violates the foreign key (orphan);
			// MSFT has a non-numeric ebitda and an empty net_debt, both
			// stored as missing; IBM ok
			expectInsertOK(dbPool, "financial",
				"AAPL", fptr(77890), fptr(260174), fptr(55256), fptr(1304760),
				fptr(59203), fptr(338516), fptr(90488), fptr(48844), fptr(248028))
			expectInsertError(dbPool, "financial", "23503")
			expectInsertOK(dbPool, "financial",
				"MSFT", (*float64)(nil), fptr(125843), fptr(39240), fptr(1199850),
				(*float64)(nil), fptr(286556), fptr(102330), fptr(133819), fptr(184226))
			expectInsertOK(dbPool, "financial",
				"IBM", fptr(16387), fptr(77147), fptr(9431), fptr(124220),
				fptr(52080), fptr(152186), fptr(20841), fptr(8313), fptr(131345))
		})

		It("loads valid rows, skips the orphan, and keeps going", func() {
			summary, err := loader.ImportAll(ctx, st, "../testdata/ingest")
			Expect(err).To(BeNil())
			Expect(summary.CompaniesAdded).To(Equal(3))
			Expect(summary.CompaniesSkipped).To(Equal(0))
			Expect(summary.FinancialsAdded).To(Equal(3))
			Expect(summary.Orphans).To(Equal(1))
			Expect(summary.Malformed).To(Equal(1))
		})
	})

	Context("when ingesting the same files a second time", func() {
		BeforeEach(func() {
			// insert-only: every existing row is skipped, nothing is
			// overwritten
			expectInsertError(dbPool, "companies", "23505")
			expectInsertError(dbPool, "companies", "23505")
			expectInsertError(dbPool, "companies", "23505")

			expectInsertError(dbPool, "financial", "23505")
			expectInsertError(dbPool, "financial", "23503")
			expectInsertError(dbPool, "financial", "23505")
			expectInsertError(dbPool, "financial", "23505")
		})

		It("skips every duplicate without error", func() {
			summary, err := loader.ImportAll(ctx, st, "../testdata/ingest")
			Expect(err).To(BeNil())
			Expect(summary.CompaniesAdded).To(Equal(0))
			Expect(summary.CompaniesSkipped).To(Equal(3))
			Expect(summary.FinancialsAdded).To(Equal(0))
			Expect(summary.FinancialsSkipped).To(Equal(3))
			Expect(summary.Orphans).To(Equal(1))
		})
	})

	Context("when the data directory does not exist", func() {
		It("reports the missing file", func() {
			_, err := loader.ImportAll(ctx, st, "../testdata/missing")
			Expect(err).To(MatchError(loader.ErrMissingFile))
		})
	})
})
