package util

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// LoggingNewError creates a new error from the message, logs it, and returns it
func LoggingNewError(msg string) error {
	err := errors.New(msg)
	logrus.WithError(err).Error()
	return err
}

// LoggingNewErrorf creates a new error from the formatted message, logs it, and returns it
func LoggingNewErrorf(msg string, args ...any) error {
	return LoggingNewError(errors.Errorf(msg, args...).Error())
}

// LoggingErrorMsg wraps the error with the message, logs it, and returns it
func LoggingErrorMsg(err error, msg string) error {
	logrus.WithError(err).Error(SanitizeLog(msg))
	if err == nil {
		return errors.New(msg)
	}
	return errors.Wrap(err, msg)
}

// LoggingErrorMsgf wraps the error with the formatted message, logs it, and returns it
func LoggingErrorMsgf(err error, msg string, args ...any) error {
	return LoggingErrorMsg(err, errors.Errorf(msg, args...).Error())
}
