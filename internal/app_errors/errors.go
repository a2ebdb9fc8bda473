package app_errors

import (
	"errors"

	"ChainAcademy/pkg/tracker"
)

var ErrUserExists = errors.New("user already exists")
var ErrUserNotFound = errors.New("user not found")
var ErrIncorrectPassword = errors.New("incorrect password")
var ErrTokenExpired = errors.New("token expired")
var ErrInvalidToken = errors.New("invalid token")
var ErrCourseNotFound = errors.New("course not found")
var ErrAlreadyEnrolled = errors.New("already enrolled in this course")
var ErrCourseRequired = errors.New("please select a course")
var ErrNotImage = errors.New("not image")
var ErrFileSize = errors.New("file size error")
var ErrSearchDisabled = errors.New("course search is not configured")
var ErrStorageDisabled = errors.New("object storage is not configured")

// ErrValidation is shared with the client library so both sides classify
// rejected progress the same way.
var ErrValidation = tracker.ErrValidation
