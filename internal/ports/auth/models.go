package auth

// Role distingue los dos tipos de viewer del portal.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Role   Role
	Email  string
}
