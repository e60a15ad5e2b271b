// Copyright 2026 The Coachgrid Authors
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
	"errors"
	"flag"
	"log/slog"
	"os"

	"github.com/coachgrid/coachgrid/internal/config"
	"github.com/coachgrid/coachgrid/internal/observability/logger"
	"github.com/coachgrid/coachgrid/internal/store/postgres"
)

// migrate applies the embedded schema. The connection comes from -dsn or,
// when absent, from the DB_* environment used by the server.
func main() {
	dsn := flag.String("dsn", "", "postgres connection string (overrides DB_* variables)")
	flag.Parse()

	logger.InitLogger(logger.Config{Level: "info", Format: "text", ServiceName: "coachgrid-migrate"})

	if err := run(context.Background(), *dsn); err != nil {
		slog.Error("migration failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("migration successful")
}

func run(ctx context.Context, dsn string) error {
	if dsn == "" {
		db := config.LoadDatabase()
		if db.Password == "" {
			return errors.New("DB_PASSWORD or -dsn is required")
		}
		dsn = db.DSN()
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("applying initial schema")
	return db.Migrate(ctx, postgres.InitialSchema)
}
