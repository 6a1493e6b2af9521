package authorization

import (
	"context"
	"errors"
)

const (
	ObjectSite = "site"

	ActionManageOptions = "manage_options"
	ActionEditPosts     = "edit_posts"
)

const (
	RoleAdministrator = "administrator"
	RoleEditor        = "editor"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

// Service answers capability checks. actor is "api_key:<id>"; role is the
// role recorded on that key.
type Service interface {
	Authorize(ctx context.Context, actor, role, object, action string) error
}
