package audio

import "github.com/mesmerglass/engine/internal/session"

// Role mirrors session.AudioRole; kept as its own name in this package
// so audio's public API doesn't force every caller to import session
// just to name a role.
type Role = session.AudioRole

const (
	RoleHypno      = session.AudioRoleHypno
	RoleBackground = session.AudioRoleBackground
	RoleOther      = session.AudioRoleOther
)
