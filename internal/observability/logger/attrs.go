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

package logger

import (
	"log/slog"

	"github.com/google/uuid"
)

// Shared attribute keys. Services and transport use these instead of ad hoc
// keys so records from different layers can be joined.

func RequestID(id string) slog.Attr { return slog.String("request_id", id) }
func Method(method string) slog.Attr { return slog.String("method", method) }
func Path(path string) slog.Attr { return slog.String("path", path) }
func RemoteAddr(addr string) slog.Attr { return slog.String("remote_addr", addr) }
func UserAgent(ua string) slog.Attr { return slog.String("user_agent", ua) }
func StatusCode(code int) slog.Attr { return slog.Int("status_code", code) }

// Duration is in milliseconds
func Duration(ms int64) slog.Attr { return slog.Int64("duration_ms", ms) }

// Subjects
func UserID(id int) slog.Attr { return slog.Int("user_id", id) }
func Username(name string) slog.Attr { return slog.String("username", name) }
func AccountID(id int) slog.Attr { return slog.Int("account_id", id) }
func Template(name string) slog.Attr { return slog.String("template", name) }
func Roles(roles []string) slog.Attr { return slog.Any("roles", roles) }
func RowsAffected(n int64) slog.Attr { return slog.Int64("rows_affected", n) }
func Component(name string) slog.Attr { return slog.String("component", name) }
func Operation(op string) slog.Attr { return slog.String("operation", op) }

// TenantID renders the zero UUID as "app"
func TenantID(id uuid.UUID) slog.Attr {
	if id == uuid.Nil {
		return slog.String("tenant_id", "app")
	}
	return slog.String("tenant_id", id.String())
}

// Error keeps the key present for nil errors so queries on it stay simple
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// String creates a generic string attribute
func String(key, value string) slog.Attr {
	return slog.String(key, value)
}
