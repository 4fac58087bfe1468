package records

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"patient-portal/internal/observability/metrics"
	"patient-portal/internal/platform/logger"
	"patient-portal/internal/ports/directory"
)

var (
	ErrInvalidInput = errors.New("records: invalid input")
	ErrForbidden    = errors.New("records: forbidden")
	ErrNotFound     = errors.New("records: not found")
	// ErrUpstream: el directorio u otro backend no respondió; el documento
	// no se puede renderizar con seguridad en este momento.
	ErrUpstream = errors.New("records: upstream unavailable")
)

// Authorizer responde si un médico tiene un grant activo sobre el paciente
// para el tipo de dato pedido. Lo implementa el módulo de access grants; la
// interfaz vive acá para no acoplar los dominios.
type Authorizer interface {
	IsAuthorized(ctx context.Context, patientID, doctorID, dataType string, at time.Time) (bool, error)
}

// Tipos de dato que un grant puede cubrir, alineados con access grants.
const (
	dataTypeRecords       = "view_records"
	dataTypePrescriptions = "view_prescriptions"
	dataTypeNotes         = "view_consultation_notes"
)

type Service struct {
	repo    Repository
	authz   Authorizer
	dir     directory.Resolver
	log     logger.Logger
	metrics *metrics.PortalMetrics

	now func() time.Time
}

func NewService(repo Repository, authz Authorizer, dir directory.Resolver, log logger.Logger, m *metrics.PortalMetrics) *Service {
	return &Service{
		repo:    repo,
		authz:   authz,
		dir:     dir,
		log:     log,
		metrics: m,
		now:     time.Now,
	}
}

type CreateInput struct {
	PatientID string
	DoctorID  string
	Title     string
	Body      string
	Meta      RecordMeta
	Tags      []string
}

// Create registra un documento nuevo. La metadata de identidad faltante se
// completa desde el directorio para que las vistas posteriores no dependan
// de que el directorio siga disponible.
func (s *Service) Create(ctx context.Context, in CreateInput) (*HealthRecord, error) {
	if strings.TrimSpace(in.PatientID) == "" || strings.TrimSpace(in.DoctorID) == "" {
		return nil, fmt.Errorf("%w: patientId y doctorId son obligatorios", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Body) == "" {
		return nil, fmt.Errorf("%w: title y body son obligatorios", ErrInvalidInput)
	}

	meta := in.Meta
	meta.PatientID = in.PatientID
	meta.DoctorID = in.DoctorID
	meta.SchemaVersion = 1
	if meta.PatientName == "" || meta.PatientRef == "" {
		if p, err := s.dir.PatientByID(ctx, in.PatientID); err == nil {
			if meta.PatientName == "" {
				meta.PatientName = p.FullName
			}
			if meta.PatientRef == "" {
				meta.PatientRef = p.MedicalRecordNumber
			}
		}
	}
	if meta.DoctorName == "" {
		if d, err := s.dir.DoctorByID(ctx, in.DoctorID); err == nil {
			meta.DoctorName = d.FullName
		}
	}

	now := s.now()
	rec := &HealthRecord{
		ID:        uuid.NewString(),
		PatientID: in.PatientID,
		DoctorID:  in.DoctorID,
		Title:     strings.TrimSpace(in.Title),
		Body:      in.Body,
		Meta:      meta,
		Tags:      in.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	s.log.Info("record created", map[string]any{"recordId": rec.ID, "patient_id": rec.PatientID})
	return rec, nil
}

// View renderiza un documento para el viewer autenticado.
//
// El titular ve la rendición completa. Un médico necesita un grant activo
// para el tipo de dato del documento y recibe la rendición de-identificada;
// si la redacción no se puede verificar, el documento se retiene.
func (s *Service) View(ctx context.Context, recordID, viewerID string, viewerIsDoctor bool) (*View, *HealthRecord, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, nil, ErrNotFound
	}

	role := ViewerPatient
	if viewerIsDoctor {
		ok, err := s.authz.IsAuthorized(ctx, rec.PatientID, viewerID, dataTypeFor(rec), s.now())
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if !ok {
			return nil, nil, ErrForbidden
		}
		role = ViewerRequester
	} else if viewerID != rec.PatientID {
		return nil, nil, ErrForbidden
	}

	view, err := Sanitize(*rec, role, s.identityFor(ctx, rec))
	if err != nil {
		s.metrics.ObserveDisclosureWithheld()
		s.log.Warn("disclosure withheld", map[string]any{"recordId": rec.ID, "viewerId": viewerID})
		return nil, nil, err
	}
	s.metrics.ObserveDisclosure(string(role))
	return &view, rec, nil
}

type ListItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListByPatient devuelve la proyección sin body de los documentos del
// paciente. El contenido solo se entrega por View, donde aplica la
// sanitización por rol.
func (s *Service) ListByPatient(ctx context.Context, patientID, viewerID string, viewerIsDoctor bool) ([]ListItem, error) {
	if viewerIsDoctor {
		ok, err := s.authz.IsAuthorized(ctx, patientID, viewerID, dataTypeRecords, s.now())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if !ok {
			return nil, ErrForbidden
		}
	} else if viewerID != patientID {
		return nil, ErrForbidden
	}

	recs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	items := make([]ListItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, ListItem{ID: r.ID, Title: r.Title, Tags: r.Tags, CreatedAt: r.CreatedAt})
	}
	return items, nil
}

// ExportLegacy arma la descripción empacada de un documento para los
// consumidores que todavía leen el esquema viejo. Solo el titular exporta.
func (s *Service) ExportLegacy(ctx context.Context, recordID, viewerID string) (string, error) {
	rec, err := s.repo.GetByID(ctx, recordID)
	if err != nil {
		return "", ErrNotFound
	}
	if viewerID != rec.PatientID {
		return "", ErrForbidden
	}
	return EncodeLegacyDescription(rec.Body, rec.Meta)
}

// identityFor cruza la metadata almacenada con el directorio: el perfil vivo
// gana cuando está disponible, la metadata cubre cuando no.
func (s *Service) identityFor(ctx context.Context, rec *HealthRecord) Identity {
	id := Identity{
		PatientName: rec.Meta.PatientName,
		PatientRef:  rec.Meta.PatientRef,
		DoctorName:  rec.Meta.DoctorName,
	}
	if p, err := s.dir.PatientByID(ctx, rec.PatientID); err == nil {
		if p.FullName != "" {
			id.PatientName = p.FullName
		}
		if p.MedicalRecordNumber != "" {
			id.PatientRef = p.MedicalRecordNumber
		}
	}
	if d, err := s.dir.DoctorByID(ctx, rec.DoctorID); err == nil && d.FullName != "" {
		id.DoctorName = d.FullName
	}
	return id
}

func dataTypeFor(rec *HealthRecord) string {
	switch {
	case rec.HasTag(TagPrescription):
		return dataTypePrescriptions
	case rec.HasTag(TagConsultationNote):
		return dataTypeNotes
	default:
		return dataTypeRecords
	}
}
