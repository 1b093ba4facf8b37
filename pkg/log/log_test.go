// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) Sync() error { return nil }

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestInitLoggerWithWriteSyncer(t *testing.T) {
	out := &lockedBuffer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Level: "warn", Format: "json", DisableTimestamp: true}, out)
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, props.Level.Level())

	lg.Info("hidden")
	lg.Warn("visible", zap.String("user", "alice"))
	s := out.String()
	assert.NotContains(t, s, "hidden")
	assert.Contains(t, s, `"message":"visible"`)
	assert.Contains(t, s, `"user":"alice"`)
	assert.NotContains(t, s, `"time"`)
}

func TestInitLoggerBadLevel(t *testing.T) {
	_, _, err := InitLoggerWithWriteSyncer(&Config{Level: "loud"}, &lockedBuffer{})
	assert.Error(t, err)
}

func TestInitFileLog(t *testing.T) {
	dir := t.TempDir()
	lj, err := initFileLog(&FileLogConfig{RootPath: dir, Filename: "relay.log"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "relay.log"), lj.Filename)
	assert.Equal(t, defaultLogMaxSize, lj.MaxSize)

	_, err = initFileLog(&FileLogConfig{RootPath: filepath.Dir(dir), Filename: filepath.Base(dir)})
	assert.Error(t, err)
}

func TestCtxFields(t *testing.T) {
	out := &lockedBuffer{}
	lg, props, err := InitLoggerWithWriteSyncer(&Config{Level: "debug", Format: "json"}, out)
	require.NoError(t, err)
	oldL, oldP := L(), _globalP.Load().(*ZapProperties)
	ReplaceGlobals(lg, props)
	replaceLeveledLoggers(lg)
	defer func() {
		ReplaceGlobals(oldL, oldP)
		replaceLeveledLoggers(oldL)
	}()

	ctx := WithModule(context.Background(), "relay")
	ctx = WithFields(ctx, FieldSession(7))
	Ctx(ctx).Info("hello")

	s := out.String()
	assert.Contains(t, s, `"module":"relay"`)
	assert.Contains(t, s, `"sessionID":7`)
	assert.NotNil(t, Ctx(nil))
}

func TestBinder(t *testing.T) {
	var b Binder
	assert.NotNil(t, b.Logger())

	ml := With(zap.String("k", "v"))
	b.SetLogger(ml)
	assert.Same(t, ml, b.Logger())

	b.BindComponent("mailbox")
	assert.NotSame(t, ml, b.Logger())
}

func TestRatedLogger(t *testing.T) {
	ml := With().WithRateGroup("test.rated", 1, 1)
	assert.True(t, ml.RatedWarn(1, "first"))
	assert.False(t, ml.RatedWarn(1, "second"))
}

func TestConsoleFormat(t *testing.T) {
	out := &lockedBuffer{}
	lg, _, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: "text", DisableTimestamp: true}, out)
	require.NoError(t, err)
	lg.Info("plain", zap.Int("n", 3))
	assert.True(t, strings.HasPrefix(out.String(), "INFO"))
	assert.Contains(t, out.String(), `{"n": 3}`)
}

func TestInitTestLogger(t *testing.T) {
	logger, props, err := InitTestLogger(t, &Config{Level: "debug"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, props.Level.Level())
	logger.Debug("routed to t.Logf", zap.String("k", "v"))
}

func TestLazyWithBindsOnce(t *testing.T) {
	buf := &lockedBuffer{}
	logger, _, err := InitLoggerWithWriteSyncer(&Config{Level: "info", Format: "json"}, zapcore.AddSync(buf))
	require.NoError(t, err)

	lazy := zap.New(NewLazyWith(logger.Core(), []zap.Field{zap.String("conn", "c1")}))
	lazy.Debug("filtered")
	assert.Empty(t, buf.String())

	lazy.Info("first")
	lazy.With(zap.Int("n", 2)).Info("second")
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, `"conn":"c1"`))
	assert.Contains(t, out, `"n":2`)
}
