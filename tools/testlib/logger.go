// Copyright (c) 2016 - 2020 Sqreen. All Rights Reserved.
// Please refer to our terms for more information:
// https://www.sqreen.io/terms.html

package testlib

import "github.com/stretchr/testify/mock"

// LoggerMockup implements the plog leveled logger interfaces so that tests
// can set expectations on what gets logged. Variadic arguments are passed to
// the mock as a single slice argument.
type LoggerMockup struct {
	mock.Mock
}

func (l *LoggerMockup) Debug(v ...interface{}) {
	l.Called(v)
}

func (l *LoggerMockup) Debugf(format string, v ...interface{}) {
	l.Called(format, v)
}

func (l *LoggerMockup) Info(v ...interface{}) {
	l.Called(v)
}

func (l *LoggerMockup) Infof(format string, v ...interface{}) {
	l.Called(format, v)
}

func (l *LoggerMockup) Error(err error) {
	l.Called(err)
}

// NewLoggerMockup returns a logger mockup accepting any debug and info log
// call. Errors must be expected by the test.
func NewLoggerMockup() *LoggerMockup {
	l := new(LoggerMockup)
	l.On("Debug", mock.Anything).Maybe()
	l.On("Debugf", mock.Anything, mock.Anything).Maybe()
	l.On("Info", mock.Anything).Maybe()
	l.On("Infof", mock.Anything, mock.Anything).Maybe()
	return l
}

// ExpectError expects an error to be logged and returns the mock call.
func (l *LoggerMockup) ExpectError(err interface{}) *mock.Call {
	return l.On("Error", err)
}
