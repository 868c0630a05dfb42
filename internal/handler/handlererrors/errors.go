// Copyright 2026 The Memagg Authors
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

// Package handlererrors defines the error taxonomy surfaced by the
// query/aggregation surface: malformed-spec errors raised eagerly at
// construction, and the smaller set of runtime errors that must raise
// (script-disabled, divide-by-zero).
package handlererrors

import "fmt"

// ErrorCode identifies the kind of malformed-spec error.
type ErrorCode string

// Error codes for malformed aggregation/query specs. Most carry the name
// of the stage that first raised them, but a code is reused wherever the
// same condition arises (e.g. $bucket's output reuses
// ErrStageGroupUnaryOperator).
const (
	ErrStageGroupUnaryOperator  ErrorCode = "StageGroupUnaryOperator"
	ErrStageGroupID             ErrorCode = "StageGroupID"
	ErrStageGroupInvalidAccumulator ErrorCode = "StageGroupInvalidAccumulator"
	ErrStageCountNonString      ErrorCode = "StageCountNonString"
	ErrStageCountNonEmptyString ErrorCode = "StageCountNonEmptyString"
	ErrStageCountBadValue       ErrorCode = "StageCountBadValue"
	ErrStageCountBadPrefix      ErrorCode = "StageCountBadPrefix"
	ErrStageInvalid             ErrorCode = "StageInvalid"
	ErrOperatorInvalid          ErrorCode = "OperatorInvalid"
	ErrOperatorWrongLenOfArgs   ErrorCode = "OperatorWrongLenOfArgs"
	ErrProjectionMixing         ErrorCode = "ProjectionMixing"
	ErrBadValue                 ErrorCode = "BadValue"
	ErrScriptDisabled           ErrorCode = "ScriptDisabled"
	ErrDivideByZero             ErrorCode = "DivideByZero"
	ErrStageLimitInvalidArg     ErrorCode = "StageLimitInvalidArg"
	ErrStageSkipBadValue        ErrorCode = "StageSkipBadValue"
	ErrStageSortBadValue        ErrorCode = "StageSortBadValue"
	ErrStageSortMissingKey      ErrorCode = "StageSortMissingKey"
	ErrStageBucketInvalid       ErrorCode = "StageBucketInvalid"
	ErrStageUnwindInvalid       ErrorCode = "StageUnwindInvalid"
	ErrStageLookupInvalid       ErrorCode = "StageLookupInvalid"
	ErrStageFacetInvalid        ErrorCode = "StageFacetInvalid"
	ErrStageGraphLookupInvalid  ErrorCode = "StageGraphLookupInvalid"
	ErrStageSetWindowInvalid    ErrorCode = "StageSetWindowInvalid"
)

// CommandError is a malformed-spec or runtime error raised while
// constructing or running a query/aggregation, carrying the code and
// the offending argument for diagnostics.
type CommandError struct {
	code     ErrorCode
	msg      string
	argument string
}

// Error implements error.
func (e *CommandError) Error() string {
	if e.argument == "" {
		return fmt.Sprintf("%s: %s", e.code, e.msg)
	}

	return fmt.Sprintf("%s: %s (%s)", e.code, e.msg, e.argument)
}

// Code returns the error's code, for callers that want to branch on
// the kind of failure rather than match message text.
func (e *CommandError) Code() ErrorCode {
	return e.code
}

// NewCommandErrorMsgWithArgument returns a new CommandError.
func NewCommandErrorMsgWithArgument(code ErrorCode, msg, argument string) error {
	return &CommandError{code: code, msg: msg, argument: argument}
}

// NewCommandErrorMsg is like NewCommandErrorMsgWithArgument without an
// argument annotation.
func NewCommandErrorMsg(code ErrorCode, msg string) error {
	return &CommandError{code: code, msg: msg}
}

// ValidationError wraps a lower-level error as a spec-validation
// failure, preserving its message but marking it as eagerly-raised.
type ValidationError struct {
	err error
}

// Error implements error.
func (v *ValidationError) Error() string {
	return v.err.Error()
}

// Unwrap implements errors.Unwrap.
func (v *ValidationError) Unwrap() error {
	return v.err
}

// NewValidationError returns a new ValidationError.
func NewValidationError(err error) error {
	return &ValidationError{err: err}
}

// check interfaces
var (
	_ error = (*CommandError)(nil)
	_ error = (*ValidationError)(nil)
)
