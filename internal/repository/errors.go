package repository

import (
	"database/sql"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
)

// IsNotFound reports whether err signals a missing row or document.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, mongo.ErrNoDocuments)
}
