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

// Package lazyerrors provides error wrapping that records the call site
// (file, line, and function) of every New/Errorf call, so an internal
// bug surfaces with a breadcrumb trail instead of a bare message.
package lazyerrors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// lazyError wraps another error with a call-site prefix.
type lazyError struct {
	err error
	pc  uintptr
	file string
	line int
}

// Error implements error.
func (e *lazyError) Error() string {
	fn := runtime.FuncForPC(e.pc)
	name := "unknown"
	if fn != nil {
		name = filepath.Base(fn.Name())
	}

	return fmt.Sprintf("[%s:%d %s] %s", filepath.Base(e.file), e.line, name, e.err.Error())
}

// Unwrap implements errors.Unwrap.
func (e *lazyError) Unwrap() error {
	return e.err
}

// GoString implements fmt.GoStringer.
func (e *lazyError) GoString() string {
	return fmt.Sprintf("lazyerror(%s)", e.Error())
}

func newSkip(skip int, err error) error {
	pc, file, line, _ := runtime.Caller(skip)

	return &lazyError{err: err, pc: pc, file: file, line: line}
}

// New is like errors.New, but it records the call site.
func New(text string) error {
	return newSkip(2, fmt.Errorf("%s", text))
}

// Errorf is like fmt.Errorf, but it records the call site.
func Errorf(format string, args ...any) error {
	return newSkip(2, fmt.Errorf(format, args...))
}

// Error wraps err with the call site of the caller of Error, or returns
// nil if err is nil. It's the usual way to add a breadcrumb to an error
// returned by a function that doesn't use lazyerrors itself.
func Error(err error) error {
	if err == nil {
		return nil
	}

	return newSkip(2, err)
}
