package cli

import (
	"errors"

	"github.com/BartekS5/ida/pkg/models"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitSafetyNet  = 6
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code and otherwise derives one from the
// migration error kind.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch models.KindOf(err) {
	case models.ErrInvalidRequest, models.ErrInvalidMapping,
		models.ErrSessionNotFound, models.ErrSessionInvalidState,
		models.ErrSourceCompanyNotFound:
		return exitValidation
	case models.ErrSourceConnectionFailed, models.ErrSourceQueryFailed:
		return exitDB
	case models.ErrImportFailed, models.ErrRollbackFailed, models.ErrTransformFailed:
		return exitDBWrite
	}
	return 1
}
