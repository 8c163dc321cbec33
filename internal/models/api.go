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

// HoldStateResult is the reply to a ledger hold callback.
// A false Success with Reason "pending" asks the ledger to retry later.
type HoldStateResult struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Id      string `json:"id,omitempty"`
	State   string `json:"state,omitempty"`
}

// HealthStatus is returned by the health endpoint
type HealthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
