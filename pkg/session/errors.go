package session

import "errors"

var ErrSaveInFlight = errors.New("a save is already in progress")
