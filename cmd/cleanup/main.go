// Copyright 2026 The OpenTrusty Authors
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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opentrusty/tenantmgmt/internal/audit"
	"github.com/opentrusty/tenantmgmt/internal/auth"
	"github.com/opentrusty/tenantmgmt/internal/config"
	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
	"github.com/opentrusty/tenantmgmt/internal/store/postgres"
)

// cleanup clears expired verification and password-reset codes once and
// exits. Intended for cron-style scheduling.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: "tenantmgmt-cleanup",
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := postgres.New(ctx, postgres.Config{
		URL:          cfg.Database.URL,
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	})
	if err != nil {
		slog.Error("failed to connect to database", logger.Error(err))
		os.Exit(1)
	}
	defer db.Close()

	n, err := auth.ClearExpiredCredentials(ctx, postgres.NewUserRepository(db), audit.NewSlogLogger())
	if err != nil {
		slog.Error("cleanup failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("cleared expired credentials", logger.Component("cleanup"), logger.RowsAffected(n))
}
