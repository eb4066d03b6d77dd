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

package cmd

import (
	"context"

	"github.com/penny-vault/investor/loader"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Ingest companies.csv and financial.csv from the data directory",
	Long: `Read the companies and financial csv files from the configured data
directory and insert their rows into the store. Ingestion is insert-only:
existing tickers are skipped and never overwritten.`,
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		st, teardown := setup(ctx)
		defer teardown()

		summary, err := loader.ImportAll(ctx, st, viper.GetString("data.dir"))
		if err != nil {
			log.Fatal().Err(err).Msg("csv ingestion failed")
		}
		log.Info().
			Int("CompaniesAdded", summary.CompaniesAdded).
			Int("FinancialsAdded", summary.FinancialsAdded).
			Int("Orphans", summary.Orphans).
			Msg("load complete")
	},
}
