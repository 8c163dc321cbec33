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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"time"

	"metaverse-ledger-go/internal/common"
	"metaverse-ledger-go/internal/config"
	"metaverse-ledger-go/internal/ledger"
	"metaverse-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// outcomeNotifier hands the transfer outcome back to main.
type outcomeNotifier struct {
	ledger.NopNotifier
	done chan ledger.TransferOutcome
}

func (n *outcomeNotifier) OnTransferCompleted(_ context.Context, outcome ledger.TransferOutcome) {
	n.done <- outcome
}

func printOutcome(outcome ledger.TransferOutcome) {
	common.PrintHeader("TRANSFER RESULT", common.DefaultWidth)
	fmt.Printf("Success:  %t\n", outcome.Success())
	fmt.Printf("Reason:   %s\n", outcome.Response.Reason())
	if outcome.Failure != ledger.FailureNone {
		fmt.Printf("Failure:  %s\n", outcome.Failure)
	}
	if outcome.Err != nil {
		fmt.Printf("Error:    %v\n", outcome.Err)
	}
	fmt.Printf("Balance:  %s\n", outcome.Response.Decimal("balance").String())
	if outcome.Asset != nil {
		for _, line := range common.HoldLines(*outcome.Asset, true) {
			fmt.Println(line)
		}
	}
	common.PrintSeparator("=", common.DefaultWidth)
}

func main() {
	fromFlag := flag.String("from", "", "Sender principal id (required, must be authorized)")
	fromNameFlag := flag.String("from-name", "", "Sender display name")
	toFlag := flag.String("to", "", "Recipient principal id (required)")
	toNameFlag := flag.String("to-name", "", "Recipient display name")
	toEmailFlag := flag.String("to-email", "", "Recipient email, for recipients without a ledger account")
	amountFlag := flag.String("amount", "", "Amount to transfer (required)")
	descriptionFlag := flag.String("description", "console transfer", "Transfer description")
	holdFlag := flag.Bool("hold", false, "Attach a ghost hold that the ledger enacts and consumes")
	waitFlag := flag.Duration("wait", time.Minute, "How long to wait for the ledger's response")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	logger, loggerCleanup := common.InitializeLogger(cfg.LogLevel)
	defer loggerCleanup()

	if *fromFlag == "" || *toFlag == "" || *amountFlag == "" {
		logger.Fatal("-from, -to and -amount are required")
	}
	amount, err := decimal.NewFromString(*amountFlag)
	if err != nil || !amount.IsPositive() {
		logger.Fatal("-amount must be a positive number", zap.String("amount", *amountFlag))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *waitFlag)
	defer cancel()

	notifier := &outcomeNotifier{done: make(chan ledger.TransferOutcome, 1)}
	services, err := common.InitializeServices(ctx, cfg, common.Collaborators{Notifier: notifier})
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close(context.Background())

	sender, err := services.Identities.Get(ctx, *fromFlag)
	if err != nil {
		logger.Fatal("Failed to look up sender", zap.Error(err))
	}
	if !sender.Authorized() {
		logger.Fatal("Sender has not authorized this application", zap.String("principal_id", *fromFlag))
	}
	recipient, err := services.Identities.Get(ctx, *toFlag)
	if err != nil {
		logger.Fatal("Failed to look up recipient", zap.Error(err))
	}

	descriptor := &models.TransactionDescriptor{}
	descriptor.AddPlatform("platform", "console")
	descriptor.AddTransaction("description", *descriptionFlag)

	req := ledger.U2URequest{
		Sender:         sender,
		SenderName:     *fromNameFlag,
		Recipient:      recipient,
		RecipientName:  *toNameFlag,
		RecipientEmail: *toEmailFlag,
		Amount:         amount,
		Description:    *descriptionFlag,
		Descriptor:     descriptor,
	}
	if *holdFlag {
		asset := models.NewAsset(uuid.New(), sender.PrincipalId, recipient.PrincipalId)
		asset.Ghost = true
		asset.PartName = *descriptionFlag
		asset.SalePrice = amount.IntPart()
		req.Asset = &asset
	}

	submission, err := services.Engine.TransactU2U(ctx, req)
	if errors.Is(err, ledger.ErrSubscriptionNotReady) {
		logger.Fatal("Subscription is being created, retry shortly")
	}
	if err != nil {
		logger.Fatal("Failed to submit transfer", zap.Error(err))
	}
	logger.Info("Transfer submitted", zap.String("transaction_id", submission.TransactionId.String()))

	select {
	case outcome := <-notifier.done:
		printOutcome(outcome)
	case <-ctx.Done():
		logger.Error("Timed out waiting for the ledger", zap.String("transaction_id", submission.TransactionId.String()))
	}
}
