package models

import "time"

// Certificate statuses. Rows start out NotQualified.
const (
	CertificateStatusQualified    = "Qualified"
	CertificateStatusNotQualified = "Not Qualified"
)

// Certification records whether a student currently qualifies for a certificate
// and where the issued document lives.
type Certification struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	StudentID uint       `gorm:"not null;uniqueIndex" json:"student_id"`
	Status    string     `gorm:"size:32;not null;default:'Not Qualified'" json:"certificate_status"`
	IssueDate *time.Time `json:"issue_date"`
	FileURL   string     `gorm:"size:512" json:"file_url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Student   Student    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"student"`
}

// IsQualified reports whether the certification is in the Qualified state.
func (c Certification) IsQualified() bool {
	return c.Status == CertificateStatusQualified
}
