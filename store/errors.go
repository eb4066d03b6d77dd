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

package store

import (
	"errors"

	"github.com/jackc/pgconn"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicateTicker = errors.New("ticker already exists")
	ErrNoCompany       = errors.New("no company exists for ticker")
	ErrNoFields        = errors.New("no fields to update")
	ErrUnknownField    = errors.New("unknown financial field")
	ErrEmptyTicker     = errors.New("ticker cannot be an empty string")
)

// postgres error codes
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classifyError maps constraint violations onto the store's sentinel errors;
// anything else passes through unchanged
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrDuplicateTicker
		case pgForeignKeyViolation:
			return ErrNoCompany
		}
	}
	return err
}
