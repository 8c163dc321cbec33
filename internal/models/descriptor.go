/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

// DescriptorObjectDescription is the transaction descriptor name that carries
// the in-world object's description.
const DescriptorObjectDescription = "object-description"

// TransactionDescriptor holds the platform, location and transaction
// name/value pairs sent with a user-to-user transfer for the ledger's
// transaction history. Names and values are parallel slices.
type TransactionDescriptor struct {
	PlatformNames     []string `json:"platform-names"`
	PlatformValues    []string `json:"platform-values"`
	LocationNames     []string `json:"location-names"`
	LocationValues    []string `json:"location-values"`
	TransactionNames  []string `json:"transaction-names"`
	TransactionValues []string `json:"transaction-values"`
}

func (d *TransactionDescriptor) AddPlatform(name, value string) {
	d.PlatformNames = append(d.PlatformNames, name)
	d.PlatformValues = append(d.PlatformValues, value)
}

func (d *TransactionDescriptor) AddLocation(name, value string) {
	d.LocationNames = append(d.LocationNames, name)
	d.LocationValues = append(d.LocationValues, value)
}

func (d *TransactionDescriptor) AddTransaction(name, value string) {
	d.TransactionNames = append(d.TransactionNames, name)
	d.TransactionValues = append(d.TransactionValues, value)
}

// TransactionValue returns the value recorded for a transaction descriptor name
func (d *TransactionDescriptor) TransactionValue(name string) (string, bool) {
	if d == nil {
		return "", false
	}
	for i, n := range d.TransactionNames {
		if n == name && i < len(d.TransactionValues) {
			return d.TransactionValues[i], true
		}
	}
	return "", false
}
