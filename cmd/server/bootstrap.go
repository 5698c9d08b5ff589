// Copyright 2026 The Workery Authors
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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/over55/workery/internal/audit"
	"github.com/over55/workery/internal/identity"
	"github.com/over55/workery/internal/store/postgres"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create the first root account from BOOTSTRAP_* variables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Bootstrap.Email == "" {
			return fmt.Errorf("BOOTSTRAP_EMAIL is required")
		}
		ctx := cmd.Context()

		db, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		hasher := identity.NewPasswordHasher(
			cfg.Security.Argon2Memory,
			cfg.Security.Argon2Iterations,
			cfg.Security.Argon2Parallelism,
			cfg.Security.Argon2SaltLength,
			cfg.Security.Argon2KeyLength,
		)
		svc := identity.NewService(postgres.NewAccountRepository(db), hasher, audit.NewSlogLogger(), cfg.Security.LockoutMaxAttempts, cfg.Security.LockoutDuration)

		account, err := identity.BootstrapRoot(ctx, svc, cfg.Bootstrap)
		if err != nil {
			return err
		}
		if account == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "a root account already exists")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created root account %s (%s)\n", account.Username, account.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}
