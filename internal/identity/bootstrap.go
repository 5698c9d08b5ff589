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

package identity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/over55/workery/internal/authz"
	"github.com/over55/workery/internal/config"
)

// BootstrapRoot creates the first root account when none exists. It is a
// no-op when BOOTSTRAP_EMAIL is unset or a root account is already present.
func BootstrapRoot(ctx context.Context, s *Service, cfg config.BootstrapConfig) (*Account, error) {
	if cfg.Email == "" {
		return nil, nil
	}

	roots, err := s.repo.CountRoots(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count root accounts: %w", err)
	}
	if roots > 0 {
		slog.InfoContext(ctx, "bootstrap skipped: root account exists")
		return nil, nil
	}

	if cfg.Password == "" {
		return nil, fmt.Errorf("BOOTSTRAP_PASSWORD is required to create the first root account")
	}

	account, err := s.CreateAccount(ctx, NewAccount{
		Email:        cfg.Email,
		Username:     cfg.Username,
		Password:     cfg.Password,
		Role:         authz.RoleRoot,
		WasActivated: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create root account: %w", err)
	}

	slog.InfoContext(ctx, "root account bootstrapped", slog.String("account_id", account.ID))
	return account, nil
}
