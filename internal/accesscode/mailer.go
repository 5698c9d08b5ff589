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

package accesscode

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/over55/workery/internal/observability/logger"
)

// Message is a code delivery request.
type Message struct {
	To      string
	Purpose Purpose
	Code    string
}

// Mailer delivers access codes to account holders.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes the delivery link to the log instead of sending mail.
type LogMailer struct {
	BaseURL string
}

// Send implements Mailer.
func (m LogMailer) Send(ctx context.Context, msg Message) error {
	link := fmt.Sprintf("%s/access-codes/%s?purpose=%s", m.BaseURL, url.PathEscape(msg.Code), msg.Purpose)
	slog.DebugContext(ctx, "access code delivery",
		slog.String("to", msg.To),
		slog.String("purpose", string(msg.Purpose)),
		slog.String("link", link),
		logger.Component("mailer"),
	)
	return nil
}
