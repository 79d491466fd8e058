package common

import (
	"errors"
	"fmt"

	"lottery-panel/logger"
)

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Combine merges multiple errors into one, skipping nil entries.
func Combine(errs ...error) error {
	var errMsg string
	for _, err := range errs {
		if err != nil {
			if errMsg != "" {
				errMsg += ", "
			}
			errMsg += err.Error()
		}
	}
	if errMsg != "" {
		return errors.New(errMsg)
	}
	return nil
}

func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
