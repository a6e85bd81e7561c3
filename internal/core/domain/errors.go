package domain

import "errors"

var (
	ErrInvalidIdentity      = errors.New("invalid identity")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidMessageID     = errors.New("invalid message id")
	ErrMessageNotFound      = errors.New("message not found")
	ErrInvalidGroupID       = errors.New("invalid group id")
	ErrGroupNotFound        = errors.New("group not found")
	ErrGroupMessageNotFound = errors.New("group message not found")
)
