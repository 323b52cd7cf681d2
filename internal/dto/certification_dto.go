package dto

import (
	"time"

	"github.com/noah-isme/gema-lms-api/internal/models"
)

// CertificationQuery filters the certification list.
type CertificationQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=Qualified 'Not Qualified'"`
}

// CertificationResponse serializes a certification row.
type CertificationResponse struct {
	StudentID         uint         `json:"student_id"`
	Student           *StudentLite `json:"student,omitempty"`
	CertificateStatus string       `json:"certificate_status"`
	IssueDate         *time.Time   `json:"issue_date"`
	FileURL           string       `json:"file_url"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// NewCertificationResponse converts a model into a DTO.
func NewCertificationResponse(model models.Certification) CertificationResponse {
	return CertificationResponse{
		StudentID:         model.StudentID,
		Student:           NewStudentLite(model.Student),
		CertificateStatus: model.Status,
		IssueDate:         model.IssueDate,
		FileURL:           model.FileURL,
		UpdatedAt:         model.UpdatedAt,
	}
}

// NewCertificationResponseSlice converts models into DTOs.
func NewCertificationResponseSlice(items []models.Certification) []CertificationResponse {
	responses := make([]CertificationResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewCertificationResponse(item))
	}
	return responses
}
