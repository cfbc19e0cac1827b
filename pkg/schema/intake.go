package schema

// Attachment is the metadata kept on a record for each uploaded file.
// The blob itself lives in blob storage under StoredName.
type Attachment struct {
	OriginalName string `json:"originalName"`
	StoredName   string `json:"storedName"`
	Size         int64  `json:"size"`
	MimeType     string `json:"mimeType,omitempty"`
	UploadedAt   string `json:"uploadedAt"`
}

// Notice is a published entry on the notice board.
type Notice struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Category  string `json:"category,omitempty"`
	Date      string `json:"date,omitempty"`
	CreatedAt string `json:"createdAt"`
}

// ContactMessage is a message submitted through the contact form.
type ContactMessage struct {
	Reference  string `json:"reference"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Message    string `json:"message"`
	Status     string `json:"status"`
	ReceivedAt string `json:"receivedAt"`
}

// MaintenanceRequest is a citizen or industrial maintenance request.
type MaintenanceRequest struct {
	Reference   string       `json:"reference"`
	Sector      string       `json:"sector"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone"`
	Address     string       `json:"address"`
	AreaCode    string       `json:"areaCode,omitempty"`
	IssueType   string       `json:"issueType"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Status      string       `json:"status"`
	ReceivedAt  string       `json:"receivedAt"`
}

// Complaint is a citizen complaint or query.
type Complaint struct {
	Reference   string       `json:"reference"`
	Name        string       `json:"name"`
	Email       string       `json:"email,omitempty"`
	Phone       string       `json:"phone"`
	AreaCode    string       `json:"areaCode,omitempty"`
	Category    string       `json:"category"`
	Description string       `json:"description"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Notes       string       `json:"notes,omitempty"`
	Status      string       `json:"status"`
	ReceivedAt  string       `json:"receivedAt"`
}

// ScheduleEntry is one row of the water supply schedule.
type ScheduleEntry struct {
	ID        int64  `json:"id"`
	Area      string `json:"area"`
	Days      string `json:"days,omitempty"`
	Timing    string `json:"timing"`
	Remarks   string `json:"remarks,omitempty"`
	CreatedAt string `json:"createdAt"`
}
