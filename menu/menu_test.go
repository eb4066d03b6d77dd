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

package menu_test

import (
	"bytes"
	"context"
	"strings"

	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/investor/menu"
	"github.com/penny-vault/investor/pgxmockhelper"
	"github.com/penny-vault/investor/store"
)

func fptr(v float64) *float64 {
	return &v
}

// mockAppleSearch registers the company search flow resolving "Apple" to AAPL
func mockAppleSearch(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT ticker, name, sector FROM companies WHERE name ILIKE").
		WithArgs("%Apple%").
		WillReturnRows(pgxmock.NewRows([]string{"ticker", "name", "sector"}).
			AddRow("AAPL", "Apple Inc.", "Electronic Technology"))
	db.ExpectRollback()
}

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		dbPool pgxmock.PgxConnIface
		st     *store.Store
		out    *bytes.Buffer
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		st = store.New(dbPool)
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(Succeed())
		dbPool.Close(context.Background())
	})

	run := func(script string) {
		controller := menu.NewWithIO(st, strings.NewReader(script), out)
		Expect(controller.Run(ctx)).To(Succeed())
	}

	It("exits cleanly from the main menu", func() {
		run("0\n")
		Expect(out.String()).To(ContainSubstring("MAIN MENU"))
		Expect(out.String()).To(ContainSubstring("Have a nice day!"))
	})

	It("rejects an invalid main menu option", func() {
		run("9\n0\n")
		Expect(out.String()).To(ContainSubstring("Invalid option!"))
	})

	It("lists companies as a table", func() {
		pgxmockhelper.MockCompaniesQuery(dbPool, "../testdata/companies_table.csv")

		run("1\n5\n0\n")
		Expect(out.String()).To(ContainSubstring("CRUD MENU"))
		Expect(out.String()).To(ContainSubstring("COMPANY LIST"))
		Expect(out.String()).To(ContainSubstring("AAPL"))
		Expect(out.String()).To(ContainSubstring("Microsoft Corporation"))
	})

	It("reports an empty company list", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT ticker, name, sector FROM companies").
			WillReturnRows(pgxmock.NewRows([]string{"ticker", "name", "sector"}))
		dbPool.ExpectRollback()

		run("1\n5\n0\n")
		Expect(out.String()).To(ContainSubstring("No companies found!"))
	})

	It("shows the top ten companies by ROE", func() {
		pgxmockhelper.MockFinancialsQuery(dbPool, "../testdata/financial_roe.csv")

		run("2\n2\n0\n")
		output := out.String()
		Expect(output).To(ContainSubstring("TOP TEN MENU"))
		Expect(output).To(ContainSubstring("CC"))
		Expect(output).To(ContainSubstring("0.9"))
		// BB has no equity figure; it must not be ranked
		Expect(output).NotTo(ContainSubstring("BB"))
		Expect(strings.Index(output, "CC")).To(BeNumerically("<", strings.Index(output, "AA")))
	})

	It("tells the user when a searched company does not exist", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectQuery("SELECT ticker, name, sector FROM companies WHERE name ILIKE").
			WithArgs("%Moon%").
			WillReturnRows(pgxmock.NewRows([]string{"ticker", "name", "sector"}))
		dbPool.ExpectRollback()

		run("1\n2\nMoon\n0\n")
		Expect(out.String()).To(ContainSubstring("Company not found!"))
	})

	It("creates a company with partially missing figures", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO companies").
			WithArgs("MOON", "Moon Corp", "Technology").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectCommit()

		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO financial").
			WithArgs("MOON", fptr(100), fptr(200), (*float64)(nil), (*float64)(nil),
				(*float64)(nil), (*float64)(nil), (*float64)(nil), (*float64)(nil), (*float64)(nil)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		dbPool.ExpectCommit()

		run("1\n1\nmoon\nMoon Corp\nTechnology\n100\n200\n\n\n\n\n\n\n\n0\n")
		Expect(out.String()).To(ContainSubstring("Company created successfully!"))
	})

	It("reports a duplicate ticker on create", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO companies").
			WithArgs("MOON", "Moon Corp", "Technology").
			WillReturnError(&pgconn.PgError{Code: "23505"})
		dbPool.ExpectRollback()

		run("1\n1\nmoon\nMoon Corp\nTechnology\n\n\n\n\n\n\n\n\n\n0\n")
		Expect(out.String()).To(ContainSubstring("Company already exists!"))
	})

	It("re-prompts the same figure on non-numeric input during update", func() {
		mockAppleSearch(dbPool)

		dbPool.ExpectBegin()
		dbPool.ExpectExec("UPDATE financial SET ebitda=").
			WithArgs(fptr(42), "AAPL").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		dbPool.ExpectCommit()

		// ebitda answered with garbage then 42; every other figure left blank
		run("1\n3\nApple\n0\ngarbage\n42\n\n\n\n\n\n\n\n\n0\n")
		output := out.String()
		Expect(strings.Count(output, "Enter ebitda")).To(Equal(2))
		Expect(output).To(ContainSubstring("Invalid input, please enter a valid number."))
		Expect(strings.Count(output, "Enter sales")).To(Equal(1))
		Expect(output).To(ContainSubstring("Company updated successfully!"))
	})

	It("keeps every field when all update answers are blank", func() {
		mockAppleSearch(dbPool)

		run("1\n3\nApple\n0\n\n\n\n\n\n\n\n\n\n0\n")
		Expect(out.String()).To(ContainSubstring("Nothing to update!"))
	})

	It("deletes a selected company", func() {
		mockAppleSearch(dbPool)

		dbPool.ExpectBegin()
		dbPool.ExpectExec("DELETE FROM companies").
			WithArgs("AAPL").
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
		dbPool.ExpectCommit()

		run("1\n4\nApple\n0\n0\n")
		Expect(out.String()).To(ContainSubstring("Company deleted successfully!"))
	})
})
