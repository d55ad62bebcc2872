package repositories

import (
	"github.com/pkg/errors"
	"github.com/qqdog1/ws/internal/domain/apperr"
	"gorm.io/gorm"
)

// storageError maps gorm failures onto the wallet error kinds.
// The connection must be opened with TranslateError so duplicate keys surface as gorm.ErrDuplicatedKey.
func storageError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Wrap(err, apperr.StorageConflict, op)
	}
	return apperr.Wrap(err, apperr.StorageError, op)
}
