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

package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"metaverse-ledger-go/internal/hold"
	"metaverse-ledger-go/internal/ledger"
	"metaverse-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	_ ledger.Messenger = (*ConsoleMessenger)(nil)
	_ hold.Delivery    = LogDelivery{}
)

// ConsoleMessenger prints user-facing messages instead of delivering them
// in-world. It backs the command-line utilities and local runs.
type ConsoleMessenger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleMessenger writes to out, or to stdout when out is nil.
func NewConsoleMessenger(out io.Writer) *ConsoleMessenger {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleMessenger{out: out}
}

func (c *ConsoleMessenger) SendURL(_ context.Context, principalId, title, body, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.out, "[%s] %s\n%s\n%s\n", principalId, title, body, url)
	return err
}

func (c *ConsoleMessenger) SendBalance(_ context.Context, principalId string, balance decimal.Decimal) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.out, "[%s] balance: %s\n", principalId, balance.String())
	return err
}

// LogDelivery accepts every hold transition and only logs it. Platforms that
// deliver goods supply their own hold.Delivery.
type LogDelivery struct{}

func (LogDelivery) EnactHold(_ context.Context, asset models.Asset) (bool, string) {
	logDelivery("Enact", asset)
	return true, ""
}

func (LogDelivery) ConsumeHold(_ context.Context, asset models.Asset) (bool, string) {
	logDelivery("Consume", asset)
	return true, ""
}

func (LogDelivery) CancelHold(_ context.Context, asset models.Asset) (bool, string) {
	logDelivery("Cancel", asset)
	return true, ""
}

func logDelivery(step string, asset models.Asset) {
	zap.L().Info("Hold delivery step",
		zap.String("step", step),
		zap.String("transaction_id", asset.TransactionId.String()),
		zap.String("buyer_id", asset.BuyerId),
		zap.String("seller_id", asset.SellerId),
		zap.String("part_name", asset.PartName))
}
