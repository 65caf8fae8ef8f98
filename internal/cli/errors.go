package cli

import "errors"

var (
	// ErrConfigFileNotFound indicates an explicit --config path does not exist.
	ErrConfigFileNotFound = errors.New("config file not found")

	// ErrConfigInvalid indicates a config file could not be parsed or holds
	// an invalid value.
	ErrConfigInvalid = errors.New("invalid config")

	// ErrPathEmpty indicates the table path resolved to an empty string.
	ErrPathEmpty = errors.New("path cannot be empty")

	// ErrLockTimeoutInvalid indicates lock_timeout is not a positive duration.
	ErrLockTimeoutInvalid = errors.New("lock_timeout must be a positive duration")

	// ErrNoTable indicates the table file does not exist yet.
	//
	// Recovery: run "shmht new" first.
	ErrNoTable = errors.New("no table file (run 'shmht new' first)")

	// ErrArgs indicates a command received the wrong number of arguments.
	ErrArgs = errors.New("wrong number of arguments")

	// ErrHexInvalid indicates a --hex argument is not valid hex.
	ErrHexInvalid = errors.New("invalid hex")
)
