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

// Package notify is the boundary to outbound email.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opentrusty/tenantmgmt/internal/observability/logger"
)

// Template identifies a notification kind
type Template int

const (
	None Template = iota
	Invitation
	Verification
	ChangeEmailNotification
	ChangeEmailPasswordReset
	PasswordReset
	AccountAccess
	AccountDeactivated
)

var templateNames = [...]string{
	None:                     "None",
	Invitation:               "Invitation",
	Verification:             "Verification",
	ChangeEmailNotification:  "ChangeEmailNotification",
	ChangeEmailPasswordReset: "ChangeEmailPasswordReset",
	PasswordReset:            "PasswordReset",
	AccountAccess:            "AccountAccess",
	AccountDeactivated:       "AccountDeactivated",
}

func (t Template) String() string {
	if t < 0 || int(t) >= len(templateNames) {
		return fmt.Sprintf("Template(%d)", int(t))
	}
	return templateNames[t]
}

// ParseTemplate parses a template name case-insensitively
func ParseTemplate(name string) (Template, error) {
	for i, n := range templateNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return Template(i), nil
		}
	}
	return None, fmt.Errorf("unknown notification template %q", name)
}

// IsReset reports whether t carries a short-lived password reset code
func (t Template) IsReset() bool {
	return t == PasswordReset || t == ChangeEmailPasswordReset
}

// Message is one outbound notification
type Message struct {
	Template Template
	To       string
	// From names the sender, usually the acting user.
	From        string
	AccountName string
	// Code is the one-time code embedded in links, if any.
	Code      string
	ExpiresAt *time.Time
}

// Notifier delivers messages
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// LogNotifier writes messages to the structured log instead of sending email.
// The one-time code is never logged.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier creates a notifier that logs through l, or the default logger when nil
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{log: l.With(logger.Component("notify"))}
}

// Send logs msg
func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if msg.Template == None {
		return nil
	}
	attrs := []slog.Attr{
		logger.Template(msg.Template.String()),
		logger.Username(msg.To),
		slog.Bool("has_code", msg.Code != ""),
	}
	if msg.From != "" {
		attrs = append(attrs, slog.String("from", msg.From))
	}
	if msg.AccountName != "" {
		attrs = append(attrs, slog.String("account_name", msg.AccountName))
	}
	if msg.ExpiresAt != nil {
		attrs = append(attrs, slog.Time("expires_at", *msg.ExpiresAt))
	}
	n.log.LogAttrs(ctx, slog.LevelInfo, "notification queued", attrs...)
	return nil
}
