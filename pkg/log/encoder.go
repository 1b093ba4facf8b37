// Copyright 2019 PingCAP, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"strings"

	"go.uber.org/zap/zapcore"
)

const (
	formatJSON    = "json"
	formatText    = "text"
	formatConsole = "console"
)

// newZapEncoderConfig 返回与 Config 对应的 zapcore.EncoderConfig。
func newZapEncoderConfig(cfg *Config) zapcore.EncoderConfig {
	ec := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "name",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if cfg.DisableTimestamp {
		ec.TimeKey = ""
	}
	return ec
}

// newZapEncoder 根据 Format 选择编码器：json 使用 JSONEncoder，其余使用 ConsoleEncoder。
func newZapEncoder(cfg *Config) zapcore.Encoder {
	ec := newZapEncoderConfig(cfg)
	switch strings.ToLower(cfg.Format) {
	case formatJSON:
		return zapcore.NewJSONEncoder(ec)
	case formatText, formatConsole, "":
		return zapcore.NewConsoleEncoder(ec)
	default:
		return zapcore.NewConsoleEncoder(ec)
	}
}
