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

// Package menu drives the interactive session. It holds no business logic:
// every operation dispatches into the store, loader, ratio, or rank packages
// and every error is rendered as a message rather than propagated.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/investor/rank"
	"github.com/penny-vault/investor/ratios"
	"github.com/penny-vault/investor/store"
	"github.com/rs/zerolog/log"
)

type option struct {
	key   string
	label string
}

type screen struct {
	title   string
	options []option
}

var mainScreen = screen{
	title: "MAIN MENU",
	options: []option{
		{"0", "Exit"},
		{"1", "CRUD operations"},
		{"2", "Show top ten companies by criteria"},
	},
}

var crudScreen = screen{
	title: "CRUD MENU",
	options: []option{
		{"0", "Back"},
		{"1", "Create a company"},
		{"2", "Read a company"},
		{"3", "Update a company"},
		{"4", "Delete a company"},
		{"5", "List all companies"},
	},
}

var topTenScreen = screen{
	title: "TOP TEN MENU",
	options: []option{
		{"0", "Back"},
		{"1", "List by ND/EBITDA"},
		{"2", "List by ROE"},
		{"3", "List by ROA"},
	},
}

// Controller runs the hierarchical numbered menus over an input/output pair
type Controller struct {
	store *store.Store
	in    *bufio.Reader
	out   io.Writer
}

// New creates a controller bound to stdin/stdout
func New(st *store.Store) *Controller {
	return NewWithIO(st, os.Stdin, os.Stdout)
}

// NewWithIO creates a controller over the given streams; used by tests
func NewWithIO(st *store.Store, in io.Reader, out io.Writer) *Controller {
	return &Controller{
		store: st,
		in:    bufio.NewReader(in),
		out:   out,
	}
}

// Run executes the main menu loop until the user exits or input is exhausted
func (c *Controller) Run(ctx context.Context) error {
	for {
		choice, err := c.choose(mainScreen)
		if err != nil {
			return err
		}

		switch choice {
		case "0":
			fmt.Fprintln(c.out, "Have a nice day!")
			return nil
		case "1":
			if err := c.crudMenu(ctx); err != nil {
				return err
			}
		case "2":
			if err := c.topTenMenu(ctx); err != nil {
				return err
			}
		default:
			fmt.Fprintln(c.out, "Invalid option!")
		}
	}
}

func (c *Controller) crudMenu(ctx context.Context) error {
	choice, err := c.choose(crudScreen)
	if err != nil {
		return err
	}

	switch choice {
	case "0":
		// back to the main menu
	case "1":
		return c.createCompany(ctx)
	case "2":
		return c.readCompany(ctx)
	case "3":
		return c.updateCompany(ctx)
	case "4":
		return c.deleteCompany(ctx)
	case "5":
		return c.listCompanies(ctx)
	default:
		fmt.Fprintln(c.out, "Invalid option!")
	}
	return nil
}

func (c *Controller) topTenMenu(ctx context.Context) error {
	choice, err := c.choose(topTenScreen)
	if err != nil {
		return err
	}

	switch choice {
	case "0":
		// back to the main menu
	case "1":
		return c.topTen(ctx, ratios.MetricNetDebtEBITDA)
	case "2":
		return c.topTen(ctx, ratios.MetricROE)
	case "3":
		return c.topTen(ctx, ratios.MetricROA)
	default:
		fmt.Fprintln(c.out, "Invalid option!")
	}
	return nil
}

func (c *Controller) display(s screen) {
	fmt.Fprintf(c.out, "\n%s\n", s.title)
	for _, opt := range s.options {
		fmt.Fprintf(c.out, "%s %s\n", opt.key, opt.label)
	}
}

func (c *Controller) choose(s screen) (string, error) {
	c.display(s)
	return c.prompt("Enter an option:")
}

func (c *Controller) prompt(msg string) (string, error) {
	fmt.Fprintf(c.out, "%s\n", msg)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptFigure reads a financial figure. Blank input stands for a missing
// figure; anything non-blank must parse as a number.
func (c *Controller) promptFigure(label string) (*float64, error) {
	for {
		raw, err := c.prompt(fmt.Sprintf("Enter %s (in the format '987654321'):", label))
		if err != nil {
			return nil, err
		}
		if raw == "" {
			return nil, nil
		}
		if val, err := strconv.ParseFloat(raw, 64); err == nil {
			return &val, nil
		}
		fmt.Fprintln(c.out, "Invalid input, please enter a valid number.")
	}
}

var figureLabels = map[string]string{
	"ebitda":           "ebitda",
	"sales":            "sales",
	"net_profit":       "net profit",
	"market_price":     "market price",
	"net_debt":         "net debt",
	"assets":           "assets",
	"equity":           "equity",
	"cash_equivalents": "cash equivalents",
	"liabilities":      "liabilities",
}

func (c *Controller) createCompany(ctx context.Context) error {
	ticker, err := c.prompt("Enter ticker (in the format 'MOON'):")
	if err != nil {
		return err
	}
	name, err := c.prompt("Enter company (in the format 'Moon Corp'):")
	if err != nil {
		return err
	}
	sector, err := c.prompt("Enter industries (in the format 'Technology'):")
	if err != nil {
		return err
	}

	financial := &store.Financial{Ticker: ticker}
	targets := []struct {
		column string
		dest   **float64
	}{
		{"ebitda", &financial.EBITDA},
		{"sales", &financial.Sales},
		{"net_profit", &financial.NetProfit},
		{"market_price", &financial.MarketPrice},
		{"net_debt", &financial.NetDebt},
		{"assets", &financial.Assets},
		{"equity", &financial.Equity},
		{"cash_equivalents", &financial.CashEquivalents},
		{"liabilities", &financial.Liabilities},
	}
	for _, target := range targets {
		val, err := c.promptFigure(figureLabels[target.column])
		if err != nil {
			return err
		}
		*target.dest = val
	}

	company := &store.Company{Ticker: ticker, Name: name, Sector: sector}
	switch err := c.store.CreateCompany(ctx, company); {
	case err == nil:
	case errors.Is(err, store.ErrDuplicateTicker):
		fmt.Fprintln(c.out, "Company already exists!")
		return nil
	case errors.Is(err, store.ErrEmptyTicker):
		fmt.Fprintln(c.out, "Ticker cannot be empty!")
		return nil
	default:
		c.renderError(err)
		return nil
	}

	if err := c.store.CreateFinancial(ctx, financial); err != nil {
		c.renderError(err)
		return nil
	}

	fmt.Fprintln(c.out, "Company created successfully!")
	return nil
}

// selectCompany resolves a company interactively: search by name fragment,
// then pick from a numbered list. Returns nil (no error) when nothing was
// selected.
func (c *Controller) selectCompany(ctx context.Context) (*store.Company, error) {
	name, err := c.prompt("Enter company name:")
	if err != nil {
		return nil, err
	}

	companies, err := c.store.SearchCompanies(ctx, name)
	if err != nil {
		c.renderError(err)
		return nil, nil
	}
	if len(companies) == 0 {
		fmt.Fprintln(c.out, "Company not found!")
		return nil, nil
	}

	for idx, company := range companies {
		fmt.Fprintf(c.out, "%d %s\n", idx, company.Name)
	}

	raw, err := c.prompt("Enter company number:")
	if err != nil {
		return nil, err
	}
	idx, convErr := strconv.Atoi(raw)
	if convErr != nil {
		fmt.Fprintln(c.out, "Invalid input!")
		return nil, nil
	}
	if idx < 0 || idx >= len(companies) {
		fmt.Fprintln(c.out, "Invalid selection")
		return nil, nil
	}

	return companies[idx], nil
}

func (c *Controller) readCompany(ctx context.Context) error {
	company, err := c.selectCompany(ctx)
	if err != nil || company == nil {
		return err
	}

	financial, err := c.store.Financial(ctx, company.Ticker)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintln(c.out, "No financial data found for the selected company!")
			return nil
		}
		c.renderError(err)
		return nil
	}

	// market_price holds the company's aggregate market valuation, so
	// per-share ratios use a share count of 1
	shares := ratios.Some(1)
	price := ratios.FromPtr(financial.MarketPrice)
	assets := ratios.FromPtr(financial.Assets)
	liabilities := ratios.FromPtr(financial.Liabilities)
	netProfit := ratios.FromPtr(financial.NetProfit)

	fmt.Fprintf(c.out, "\n%s %s\n", company.Ticker, company.Name)
	fmt.Fprintf(c.out, "P/E = %s\n", ratios.PriceEarnings(price, netProfit, shares))
	fmt.Fprintf(c.out, "P/S = %s\n", ratios.PriceSales(price, ratios.FromPtr(financial.Sales), shares))
	fmt.Fprintf(c.out, "P/B = %s\n", ratios.PriceBook(price, assets, liabilities, shares))
	fmt.Fprintf(c.out, "ND/EBITDA = %s\n", ratios.NetDebtEBITDA(ratios.FromPtr(financial.NetDebt), ratios.FromPtr(financial.EBITDA)))
	fmt.Fprintf(c.out, "ROE = %s\n", ratios.ReturnOnEquity(netProfit, ratios.FromPtr(financial.Equity)))
	fmt.Fprintf(c.out, "ROA = %s\n", ratios.ReturnOnAssets(netProfit, assets))
	fmt.Fprintf(c.out, "L/A = %s\n", ratios.LiabilitiesAssets(liabilities, assets))
	return nil
}

func (c *Controller) updateCompany(ctx context.Context) error {
	company, err := c.selectCompany(ctx)
	if err != nil || company == nil {
		return err
	}

	fmt.Fprintln(c.out, "Leave a field blank to keep its current value.")
	fields := make(map[string]*float64)
	for _, column := range store.FinancialColumns {
		// blank keeps the current value; a non-numeric answer re-prompts the
		// same figure so the corrected input never lands on the next column
		val, err := c.promptFigure(figureLabels[column])
		if err != nil {
			return err
		}
		if val == nil {
			continue
		}
		fields[column] = val
	}

	if len(fields) == 0 {
		fmt.Fprintln(c.out, "Nothing to update!")
		return nil
	}

	switch err := c.store.UpdateFinancial(ctx, company.Ticker, fields); {
	case err == nil:
		fmt.Fprintln(c.out, "Company updated successfully!")
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(c.out, "No financial data found for the selected company!")
	default:
		c.renderError(err)
	}
	return nil
}

func (c *Controller) deleteCompany(ctx context.Context) error {
	company, err := c.selectCompany(ctx)
	if err != nil || company == nil {
		return err
	}

	switch err := c.store.DeleteCompany(ctx, company.Ticker); {
	case err == nil:
		fmt.Fprintln(c.out, "Company deleted successfully!")
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(c.out, "Company not found!")
	default:
		c.renderError(err)
	}
	return nil
}

func (c *Controller) listCompanies(ctx context.Context) error {
	companies, err := c.store.Companies(ctx)
	if err != nil {
		c.renderError(err)
		return nil
	}
	if len(companies) == 0 {
		fmt.Fprintln(c.out, "No companies found!")
		return nil
	}

	fmt.Fprintln(c.out, "\nCOMPANY LIST")
	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Ticker", "Name", "Sector"})
	table.SetBorder(false)
	for _, company := range companies {
		table.Append([]string{company.Ticker, company.Name, company.Sector})
	}
	table.Render()
	return nil
}

func (c *Controller) topTen(ctx context.Context, metric ratios.Metric) error {
	entries, err := rank.TopTen(ctx, c.store, metric)
	if err != nil {
		c.renderError(err)
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.SetHeader([]string{"Ticker", string(metric)})
	table.SetBorder(false)
	for _, entry := range entries {
		table.Append([]string{entry.Ticker, formatMetric(entry.Value)})
	}
	fmt.Fprintln(c.out)
	table.Render()
	return nil
}

// formatMetric renders a ranking value with up to two decimal places,
// trailing zeros trimmed
func formatMetric(val float64) string {
	s := strconv.FormatFloat(val, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

func (c *Controller) renderError(err error) {
	log.Error().Stack().Err(err).Msg("menu operation failed")
	fmt.Fprintf(c.out, "An error occurred: %s\n", err)
}
