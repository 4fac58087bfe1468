package profiles

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"patient-portal/internal/platform/httpclient"
	"patient-portal/internal/ports/directory"
)

var (
	ErrDirectoryNotConfigured = errors.New("profiles directory client not configured")
	ErrProfileNotFound        = errors.New("profile not found")
	ErrDirectoryUpstream      = errors.New("profiles directory upstream error")
)

type Config struct {
	BaseURL string
	APIKey  string

	APIKeyHeader string
	Timeout      time.Duration
}

type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}

	hc, err := httpclient.NewWithBaseURL(strings.TrimSpace(cfg.BaseURL), cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.http != nil && c.http.BaseURL != "" && c.apiKey != ""
}

type patientProfileResponse struct {
	PatientID           string `json:"patient_id"`
	FullName            string `json:"full_name"`
	MedicalRecordNumber string `json:"medical_record_number"`
}

type doctorProfileResponse struct {
	DoctorID string `json:"doctor_id"`
	FullName string `json:"full_name"`
}

func (c *Client) GetPatientProfile(ctx context.Context, patientID string) (directory.PatientProfile, error) {
	if !c.IsConfigured() {
		return directory.PatientProfile{}, ErrDirectoryNotConfigured
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return directory.PatientProfile{}, ErrProfileNotFound
	}

	var out patientProfileResponse
	path := "/v1/patients/" + url.PathEscape(patientID) + "/profile"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &out); err != nil {
		return directory.PatientProfile{}, mapDirectoryError(err)
	}

	return directory.PatientProfile{
		PatientID:           out.PatientID,
		FullName:            strings.TrimSpace(out.FullName),
		MedicalRecordNumber: strings.TrimSpace(out.MedicalRecordNumber),
	}, nil
}

func (c *Client) GetDoctorProfile(ctx context.Context, doctorID string) (directory.DoctorProfile, error) {
	if !c.IsConfigured() {
		return directory.DoctorProfile{}, ErrDirectoryNotConfigured
	}
	doctorID = strings.TrimSpace(doctorID)
	if doctorID == "" {
		return directory.DoctorProfile{}, ErrProfileNotFound
	}

	var out doctorProfileResponse
	path := "/v1/doctors/" + url.PathEscape(doctorID) + "/profile"
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &out); err != nil {
		return directory.DoctorProfile{}, mapDirectoryError(err)
	}

	return directory.DoctorProfile{
		DoctorID: out.DoctorID,
		FullName: strings.TrimSpace(out.FullName),
	}, nil
}

func (c *Client) headers() map[string]string {
	return map[string]string{c.apiKeyHeader: c.apiKey}
}

func mapDirectoryError(err error) error {
	var he *httpclient.HTTPError
	if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
		return ErrProfileNotFound
	}
	return fmt.Errorf("%w: %v", ErrDirectoryUpstream, err)
}
