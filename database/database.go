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

package database

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// PgxIface is the subset of pgxpool.Pool the application depends on; tests
// substitute a pgxmock connection
type PgxIface interface {
	Begin(context.Context) (pgx.Tx, error)
}

var pool PgxIface

// schema is created on connect when the tables do not yet exist. The financial
// table cannot hold a row without its company; deleting a company removes its
// financial row in the same statement.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS companies (
		ticker TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		sector TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS financial (
		ticker TEXT PRIMARY KEY REFERENCES companies (ticker) ON DELETE CASCADE,
		ebitda DOUBLE PRECISION,
		sales DOUBLE PRECISION,
		net_profit DOUBLE PRECISION,
		market_price DOUBLE PRECISION,
		net_debt DOUBLE PRECISION,
		assets DOUBLE PRECISION,
		equity DOUBLE PRECISION,
		cash_equivalents DOUBLE PRECISION,
		liabilities DOUBLE PRECISION
	)`,
}

// SetPool replaces the active connection pool; used by tests to inject a
// pgxmock connection
func SetPool(myPool PgxIface) {
	pool = myPool
}

// Pool returns the active connection pool
func Pool() PgxIface {
	return pool
}

// Connect establishes a connection to the database specified by the
// database.url configuration setting
func Connect(ctx context.Context) error {
	myPool, err := pgxpool.Connect(ctx, viper.GetString("database.url"))
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}
	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		return err
	}
	SetPool(myPool)
	return nil
}

// Migrate creates the companies and financial tables when they are absent
func Migrate(ctx context.Context) error {
	trx, err := pool.Begin(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not create migration transaction")
		return err
	}

	for _, stmt := range schema {
		if _, err := trx.Exec(ctx, stmt); err != nil {
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			log.Error().Stack().Err(err).Str("Query", stmt).Msg("could not create table")
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not commit migration transaction")
		return err
	}

	return nil
}
