package services

import (
	"errors"

	"github.com/saeid-a/TutorLinkBack/internal/models"
)

var (
	ErrForbidden            = errors.New("forbidden")
	ErrInvalidInput         = errors.New("invalid input")
	ErrPeerNotFound         = errors.New("peer not found")
	ErrNotificationNotFound = errors.New("notification not found")
)

func isParticipantRole(role string) bool {
	return role == models.RoleParent || role == models.RoleTutor
}
