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

// Package ratios computes standard valuation and leverage ratios from raw
// financial figures. A ratio whose denominator is missing or non-positive has
// no economically meaningful value; such results are Undefined, which is
// distinct from zero and must be excluded from any ranking.
package ratios

import "fmt"

// Metric identifies a ratio the ranking view can order companies by
type Metric string

const (
	MetricNetDebtEBITDA Metric = "ND/EBITDA"
	MetricROE           Metric = "ROE"
	MetricROA           Metric = "ROA"
)

// Value is the result of a ratio computation: either a defined float or
// Undefined. The zero value is Undefined.
type Value struct {
	val     float64
	defined bool
}

// Some returns a defined Value
func Some(v float64) Value {
	return Value{val: v, defined: true}
}

// Undefined returns a Value with no meaningful number
func Undefined() Value {
	return Value{}
}

// FromPtr adapts a nullable figure; nil becomes Undefined
func FromPtr(p *float64) Value {
	if p == nil {
		return Undefined()
	}
	return Some(*p)
}

// Defined reports whether the value holds a meaningful number
func (v Value) Defined() bool {
	return v.defined
}

// Float returns the computed number; only meaningful when Defined is true
func (v Value) Float() float64 {
	return v.val
}

func (v Value) String() string {
	if !v.defined {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", v.val)
}

// divide returns numerator / denominator, Undefined when either operand is
// undefined or the denominator is not strictly positive
func divide(numerator, denominator Value) Value {
	if !numerator.defined || !denominator.defined || denominator.val <= 0 {
		return Undefined()
	}
	return Some(numerator.val / denominator.val)
}

// PriceEarnings computes P/E = price / (netProfit / shares)
func PriceEarnings(price, netProfit, shares Value) Value {
	return divide(product(price, shares), netProfit)
}

// PriceSales computes P/S = price / (sales / shares)
func PriceSales(price, sales, shares Value) Value {
	return divide(product(price, shares), sales)
}

// PriceBook computes P/B = price / ((assets - liabilities) / shares)
func PriceBook(price, assets, liabilities, shares Value) Value {
	if !assets.defined || !liabilities.defined {
		return Undefined()
	}
	book := Some(assets.val - liabilities.val)
	return divide(product(price, shares), book)
}

// NetDebtEBITDA computes ND/EBITDA = netDebt / ebitda
func NetDebtEBITDA(netDebt, ebitda Value) Value {
	return divide(netDebt, ebitda)
}

// ReturnOnEquity computes ROE = netProfit / equity
func ReturnOnEquity(netProfit, equity Value) Value {
	return divide(netProfit, equity)
}

// ReturnOnAssets computes ROA = netProfit / assets
func ReturnOnAssets(netProfit, assets Value) Value {
	return divide(netProfit, assets)
}

// LiabilitiesAssets computes L/A = liabilities / assets
func LiabilitiesAssets(liabilities, assets Value) Value {
	return divide(liabilities, assets)
}

func product(a, b Value) Value {
	if !a.defined || !b.defined {
		return Undefined()
	}
	return Some(a.val * b.val)
}
