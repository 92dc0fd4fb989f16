package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrorSaveInFlight is the "please wait" rejection: another save for the same
// report is still running. Not a failure; the caller retries after it ends.
var ErrorSaveInFlight = errors.New("a save for this report is already in progress, please wait")

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
