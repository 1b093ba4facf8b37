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

package merr

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrAccountNotFound("alice")
	wrapped := errors.Wrap(err, "failed to login")
	s.ErrorIs(wrapped, ErrAccountNotFound)
	s.Equal(Code(ErrAccountNotFound), Code(wrapped))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errors.New("boom")))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newRelayError("new error", ErrAccountNotFound.errCode, false)
	s.True(sameCodeErr.Is(ErrAccountNotFound))
	s.False(ErrAccountNotFound.Is(ErrAccountAlreadyExists))
}

func (s *ErrSuite) TestWrap() {
	s.ErrorIs(WrapErrServiceUnknownMethod(42), ErrServiceUnknownMethod)
	s.ErrorIs(WrapErrAccountNotFound("bob"), ErrAccountNotFound)
	s.ErrorIs(WrapErrAccountAlreadyExists("bob"), ErrAccountAlreadyExists)
	s.ErrorIs(WrapErrAccountInvalidPattern("(", errors.New("missing closing )")), ErrAccountInvalidPattern)
	s.ErrorIs(WrapErrSessionAlreadyLoggedIn("bob"), ErrSessionAlreadyLoggedIn)
	s.ErrorIs(WrapErrSessionNotLoggedIn("bob"), ErrSessionNotLoggedIn)
	s.ErrorIs(WrapErrIoKeyNotFound("accounts"), ErrIoKeyNotFound)
	s.ErrorIs(WrapErrIoFailed("accounts", errors.New("disk full")), ErrIoFailed)
	s.ErrorIs(WrapErrParameterMissing("username"), ErrParameterMissing)

	s.Nil(WrapErrIoFailed("accounts", nil))
	s.Nil(WrapErrAccountInvalidPattern("x", nil))
}

func (s *ErrSuite) TestMessage() {
	s.Equal("", Message(nil))
	s.Equal("account not found[username=bob]", Message(WrapErrAccountNotFound("bob")))
	s.Equal("unknown method[method=99]", Message(WrapErrServiceUnknownMethod(99)))
	s.Contains(Message(WrapErrAccountInvalidPattern("(", errors.New("missing )"))), "pattern=(")
}

func (s *ErrSuite) TestErrorType() {
	s.True(IsInputError(WrapErrAccountNotFound("bob")))
	s.True(IsInputError(errors.Wrap(WrapErrSessionNotLoggedIn("bob"), "logout")))
	s.False(IsInputError(WrapErrIoFailed("k", errors.New("x"))))
	s.True(IsInputError(WrapErrParameterMissing("username")))
	s.False(IsInputError(errors.New("plain")))
	s.Equal("input_error", GetErrorType(ErrAccountNotFound).String())
	s.Equal("system_error", GetErrorType(ErrIoFailed).String())
}

func (s *ErrSuite) TestRetryable() {
	s.True(IsRetryableErr(WrapErrIoFailed("k", errors.New("x"))))
	s.False(IsRetryableErr(ErrAccountNotFound))
	s.False(IsRetryableErr(errors.New("plain")))
	s.True(IsCanceledOrTimeout(errors.Wrap(context.Canceled, "stop")))
	s.True(IsCanceledOrTimeout(context.DeadlineExceeded))
	s.False(IsCanceledOrTimeout(ErrIoFailed))
}

func (s *ErrSuite) TestCombine() {
	s.Nil(Combine(nil, nil))

	err := Combine(ErrAccountNotFound, nil, ErrIoFailed)
	s.ErrorIs(err, ErrAccountNotFound)
	s.ErrorIs(err, ErrIoFailed)
	s.NotErrorIs(err, ErrSessionNotLoggedIn)
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
