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

// Package rank builds the "top ten companies by metric" view
package rank

import (
	"context"
	"errors"
	"sort"

	"github.com/penny-vault/investor/observability/opentelemetry"
	"github.com/penny-vault/investor/ratios"
	"github.com/penny-vault/investor/store"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

const topN = 10

var (
	ErrUnsupportedMetric = errors.New("unsupported metric")
)

// Entry is a single row of the ranking: a ticker and its computed metric
type Entry struct {
	Ticker string
	Value  float64
}

// compute evaluates metric against a single financial record
func compute(metric ratios.Metric, financial *store.Financial) (ratios.Value, error) {
	switch metric {
	case ratios.MetricNetDebtEBITDA:
		return ratios.NetDebtEBITDA(ratios.FromPtr(financial.NetDebt), ratios.FromPtr(financial.EBITDA)), nil
	case ratios.MetricROE:
		return ratios.ReturnOnEquity(ratios.FromPtr(financial.NetProfit), ratios.FromPtr(financial.Equity)), nil
	case ratios.MetricROA:
		return ratios.ReturnOnAssets(ratios.FromPtr(financial.NetProfit), ratios.FromPtr(financial.Assets)), nil
	}
	return ratios.Undefined(), ErrUnsupportedMetric
}

// TopTen computes metric for every company with a financial record, discards
// undefined results, and returns at most the ten largest values. Ties order
// by ticker ascending, so the ranking is deterministic. Fewer than ten
// defined values is not an error.
func TopTen(ctx context.Context, st *store.Store, metric ratios.Metric) ([]Entry, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "TopTen")
	defer span.End()

	financials, err := st.Financials(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(financials))
	for _, financial := range financials {
		val, err := compute(metric, financial)
		if err != nil {
			return nil, err
		}
		if !val.Defined() {
			continue
		}
		entries = append(entries, Entry{Ticker: financial.Ticker, Value: val.Float()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value == entries[j].Value {
			return entries[i].Ticker < entries[j].Ticker
		}
		return entries[i].Value > entries[j].Value
	})

	if len(entries) > topN {
		entries = entries[:topN]
	}

	log.Debug().Str("Metric", string(metric)).Int("NumRanked", len(entries)).Msg("computed top ten")
	return entries, nil
}
