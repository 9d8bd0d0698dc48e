package db

import (
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the postgres connection. TranslateError makes unique
// constraint violations surface as gorm.ErrDuplicatedKey, which the
// registration and settlement paths rely on.
func Connect(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
}
