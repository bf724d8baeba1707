package firebaseapp

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// IsNotFound reports whether a Firestore call failed because the document
// does not exist.
func IsNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// IsAlreadyExists reports whether a Firestore create hit an existing document.
func IsAlreadyExists(err error) bool {
	return status.Code(err) == codes.AlreadyExists
}
