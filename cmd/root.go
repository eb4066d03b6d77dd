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
	"fmt"
	"os"

	"github.com/penny-vault/investor/common"
	"github.com/penny-vault/investor/database"
	"github.com/penny-vault/investor/loader"
	"github.com/penny-vault/investor/menu"
	"github.com/penny-vault/investor/observability/opentelemetry"
	"github.com/penny-vault/investor/store"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Database
	if err := viper.BindEnv("database.url", "DATABASE_URL"); err != nil {
		log.Panic().Err(err).Msg("could not bind database.url")
	}
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	if err := viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url")); err != nil {
		log.Panic().Err(err).Msg("could not bind database.url")
	}

	// Data directory holding companies.csv and financial.csv
	if err := viper.BindEnv("data.dir", "DATA_DIR"); err != nil {
		log.Panic().Err(err).Msg("could not bind data.dir")
	}
	rootCmd.PersistentFlags().String("data-dir", "data", "Directory containing companies.csv and financial.csv")
	if err := viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir")); err != nil {
		log.Panic().Err(err).Msg("could not bind data.dir")
	}

	// Logging configuration
	if err := viper.BindEnv("log.level", "INVESTOR_LOG_LEVEL"); err != nil {
		log.Panic().Err(err).Msg("could not bind log.level")
	}
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Panic().Err(err).Msg("could not bind log.level")
	}

	if err := viper.BindEnv("log.report_caller", "INVESTOR_LOG_REPORT_CALLER"); err != nil {
		log.Panic().Err(err).Msg("could not bind log.report_caller")
	}
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	if err := viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller")); err != nil {
		log.Panic().Err(err).Msg("could not bind log.report_caller")
	}

	if err := viper.BindEnv("log.output", "INVESTOR_LOG_OUTPUT"); err != nil {
		log.Panic().Err(err).Msg("could not bind log.output")
	}
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	if err := viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output")); err != nil {
		log.Panic().Err(err).Msg("could not bind log.output")
	}

	// OpenTelemetry
	if err := viper.BindEnv("otlp.endpoint", "OTLP_ENDPOINT"); err != nil {
		log.Panic().Err(err).Msg("could not bind otlp.endpoint")
	}
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP trace collector endpoint; tracing disabled when blank")
	if err := viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint")); err != nil {
		log.Panic().Err(err).Msg("could not bind otlp.endpoint")
	}
}

// setup performs the initialization shared by every command: logging, tracing
// and the database connection. It returns a tear-down function and a ready
// store.
func setup(ctx context.Context) (*store.Store, func()) {
	common.SetupLogging()

	teardown := func() {}
	if viper.GetString("otlp.endpoint") != "" {
		shutdown, err := opentelemetry.Setup()
		if err != nil {
			log.Warn().Err(err).Msg("could not initialize opentelemetry")
		} else {
			teardown = func() {
				if err := shutdown(ctx); err != nil {
					log.Warn().Err(err).Msg("opentelemetry shutdown failed")
				}
			}
		}
	}

	if err := database.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not connect to database")
	}
	if err := database.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not migrate database schema")
	}

	return store.New(database.Pool()), teardown
}

var rootCmd = &cobra.Command{
	Use:     "investor",
	Version: common.CurrentVersion.String(),
	Short:   "Calculator for investors",
	Long: `Manage a relational store of company financial records and compute
standard valuation and leverage ratios through an interactive text menu.`,
	Run: func(_ *cobra.Command, _ []string) {
		ctx := context.Background()
		st, teardown := setup(ctx)
		defer teardown()

		// first run: populate the store from the csv files in the data
		// directory
		cnt, err := st.CompanyCount(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not count companies")
		}
		if cnt == 0 {
			if _, err := loader.ImportAll(ctx, st, viper.GetString("data.dir")); err != nil {
				log.Warn().Err(err).Msg("csv ingestion failed; starting with an empty store")
			}
		}

		fmt.Println("Welcome to the Investor Program!")
		if err := menu.New(st).Run(ctx); err != nil {
			log.Warn().Err(err).Msg("interactive session ended abnormally")
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
