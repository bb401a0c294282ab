package mongo

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

var (
	ErrConnect  = errors.New("mongo: could not connect")
	ErrNotReady = errors.New("mongo: ping failed")
)

// IsDuplicateKeyError reports a unique index violation (E11000).
func IsDuplicateKeyError(err error) bool {
	return mongo.IsDuplicateKeyError(err)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
