package sdk

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/civicwater/waterboard/pkg/schema"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the session may not perform the operation.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized is returned for rejected logins and missing sessions.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalid is returned when the server rejected the input.
	ErrInvalid = errors.New("invalid request")
	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")
)

// APIError carries the status and message of a failed call.
// errors.Is matches it against the sentinel for its status class.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("waterboard: %d %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == 404
	case ErrForbidden:
		return e.Status == 403
	case ErrUnauthorized:
		return e.Status == 401
	case ErrInvalid:
		return e.Status == 400 || e.Status == 409 || e.Status == 413
	case ErrServer:
		return e.Status >= 500
	}
	return false
}

// Receipt is what the intake endpoints return.
type Receipt struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Upload is one file sent with a complaint or maintenance request.
type Upload struct {
	Name    string
	Content io.Reader
}

// ContactInput is the body of a contact form submission.
type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Phone   string `json:"phone,omitempty"`
}

// MaintenanceInput is the body of a maintenance request.
type MaintenanceInput struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone"`
	Sector      string `json:"sector"`
	Address     string `json:"address"`
	AreaCode    string `json:"areaCode,omitempty"`
	IssueType   string `json:"issueType"`
	Description string `json:"description"`
}

// ComplaintInput is the body of a complaint.
type ComplaintInput struct {
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone"`
	AreaCode    string `json:"areaCode,omitempty"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// --- Functional Interfaces (Interface Segregation) ---

// PublicReader reads the informational collections.
type PublicReader interface {
	Notices(ctx context.Context) ([]schema.Notice, error)
	Schedule(ctx context.Context) ([]schema.ScheduleEntry, error)
}

// IntakeSubmitter files citizen submissions.
type IntakeSubmitter interface {
	SubmitContact(ctx context.Context, in ContactInput) (Receipt, error)
	SubmitMaintenance(ctx context.Context, in MaintenanceInput, files ...Upload) (Receipt, error)
	SubmitComplaint(ctx context.Context, in ComplaintInput, files ...Upload) (Receipt, error)
}

// Authenticator manages the client's session.
type Authenticator interface {
	Login(ctx context.Context, role schema.Role, method, identifier string) (schema.Principal, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (schema.Principal, error)
}

// NoticeBoard publishes and withdraws notices.
type NoticeBoard interface {
	PublishNotice(ctx context.Context, n schema.Notice) (schema.Notice, error)
	DeleteNotice(ctx context.Context, id int64) error
}

// ComplaintDesk triages complaints.
type ComplaintDesk interface {
	Complaints(ctx context.Context, status string) ([]schema.Complaint, error)
	UpdateComplaint(ctx context.Context, reference, status string, notes *string) (schema.Complaint, error)
	DeleteComplaint(ctx context.Context, reference string) error
}

// UserAdmin manages accounts.
type UserAdmin interface {
	Users(ctx context.Context) ([]schema.UserRecord, error)
	CreateUser(ctx context.Context, u schema.UserRecord) (schema.UserRecord, error)
	DeleteUser(ctx context.Context, id int64) error
}

// --- Composite Interface ---

// Waterboard is the full client surface.
type Waterboard interface {
	PublicReader
	IntakeSubmitter
	Authenticator
	NoticeBoard
	ComplaintDesk
	UserAdmin
}
