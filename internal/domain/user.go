package domain

// Identity es el usuario verificado que devuelve el proveedor de identidad.
// El core usa UserID tal cual como parte del ThreadID.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
}
