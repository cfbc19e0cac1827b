// Package access decides who may perform privileged operations on the
// dashboard and resolves login attempts to principals.
package access

import (
	"errors"
	"strings"

	"github.com/civicwater/waterboard/pkg/engine"
	"github.com/civicwater/waterboard/pkg/schema"
)

var (
	// ErrForbidden is returned when a principal may not perform an operation.
	// It carries no reason on purpose; callers respond uniformly.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidCredentials is returned when no user matches a login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Operation names a privileged action.
type Operation string

const (
	PublishNotice        Operation = "publish-notice"
	DeleteNotice         Operation = "delete-notice"
	EditSchedule         Operation = "edit-schedule"
	ViewComplaints       Operation = "view-complaints"
	UpdateComplaint      Operation = "update-complaint"
	DeleteComplaint      Operation = "delete-complaint"
	ViewMaintenance      Operation = "view-maintenance"
	UpdateMaintenance    Operation = "update-maintenance"
	ViewContactMessages  Operation = "view-contact-messages"
	UpdateContactMessage Operation = "update-contact-message"
	ViewAttachments      Operation = "view-attachments"
	ManageUsers          Operation = "manage-users"
)

// Login methods.
const (
	MethodEmail = "email"
	MethodCode  = "code"
)

// Predicate reports whether a principal holds some capability.
type Predicate func(p *schema.Principal) bool

// IsAuthority reports whether p is a water authority officer.
func IsAuthority(p *schema.Principal) bool {
	return p != nil && p.Role == schema.RoleAuthority
}

// IsAdmin reports whether p is an administrator.
func IsAdmin(p *schema.Principal) bool {
	return p != nil && p.Role == schema.RoleAdmin
}

// IsAuthorityOrAdmin reports whether p is staff of either kind.
func IsAuthorityOrAdmin(p *schema.Principal) bool {
	return IsAuthority(p) || IsAdmin(p)
}

var table = map[Operation]Predicate{
	PublishNotice:        IsAuthorityOrAdmin,
	DeleteNotice:         IsAuthorityOrAdmin,
	EditSchedule:         IsAuthorityOrAdmin,
	ViewComplaints:       IsAuthorityOrAdmin,
	UpdateComplaint:      IsAuthorityOrAdmin,
	DeleteComplaint:      IsAuthorityOrAdmin,
	ViewMaintenance:      IsAuthorityOrAdmin,
	UpdateMaintenance:    IsAuthorityOrAdmin,
	ViewContactMessages:  IsAuthorityOrAdmin,
	UpdateContactMessage: IsAuthorityOrAdmin,
	ViewAttachments:      IsAuthorityOrAdmin,
	ManageUsers:          IsAdmin,
}

// Operations returns every registered operation.
func Operations() []Operation {
	ops := make([]Operation, 0, len(table))
	for op := range table {
		ops = append(ops, op)
	}
	return ops
}

// Allowed reports whether p may perform op. Unknown operations are denied.
func Allowed(p *schema.Principal, op Operation) bool {
	pred, ok := table[op]
	return ok && pred(p)
}

// Authorize returns ErrForbidden unless p may perform op.
func Authorize(p *schema.Principal, op Operation) error {
	if !Allowed(p, op) {
		return ErrForbidden
	}
	return nil
}

// Authenticate finds the first user whose role matches and whose email (method
// "email") or area code (method "code") equals identifier.
func Authenticate(users []engine.Record, role schema.Role, method, identifier string) (schema.Principal, error) {
	if !role.Valid() {
		return schema.Principal{}, ErrInvalidCredentials
	}
	id := strings.TrimSpace(identifier)
	if id == "" {
		return schema.Principal{}, ErrInvalidCredentials
	}

	var match func(engine.Record) bool
	switch method {
	case MethodEmail:
		match = func(u engine.Record) bool {
			return strings.EqualFold(strings.TrimSpace(u.String("email")), id)
		}
	case MethodCode:
		match = func(u engine.Record) bool {
			return strings.TrimSpace(u.String("areaCode")) == id
		}
	default:
		return schema.Principal{}, ErrInvalidCredentials
	}

	for _, u := range users {
		if schema.Role(u.String("role")) != role || !match(u) {
			continue
		}
		return PrincipalOf(u), nil
	}
	return schema.Principal{}, ErrInvalidCredentials
}

// Duplicate reports whether a user with role already holds email or areaCode.
// Empty identifiers never collide.
func Duplicate(users []engine.Record, role schema.Role, email, areaCode string) bool {
	for _, u := range users {
		if schema.Role(u.String("role")) != role {
			continue
		}
		if email != "" && strings.EqualFold(strings.TrimSpace(u.String("email")), email) {
			return true
		}
		if areaCode != "" && strings.TrimSpace(u.String("areaCode")) == areaCode {
			return true
		}
	}
	return false
}

// PrincipalOf converts a users record into the session identity.
func PrincipalOf(u engine.Record) schema.Principal {
	p := schema.Principal{
		Name: u.String("name"),
		Role: schema.Role(u.String("role")),
	}
	if v := u.String("email"); v != "" {
		p.Email = &v
	}
	if v := u.String("areaCode"); v != "" {
		p.AreaCode = &v
	}
	return p
}
