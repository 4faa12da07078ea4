package domain

// Namespace partitions storage slots by ownership.
type Namespace string

const (
	NamespaceShared Namespace = "shared"
	NamespaceScoped Namespace = "scoped"
)

// Well-known shared slots.
const (
	SlotCredential  = "credential"
	SlotUserProfile = "userProfile"
)

// UserProfile is the JSON document kept in the userProfile slot by the login flow.
type UserProfile struct {
	ID       string `json:"id,omitempty"`
	UserID   string `json:"userId,omitempty"`
	LegacyID string `json:"_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
}

// SubjectID returns the first populated identifier.
func (p UserProfile) SubjectID() string {
	switch {
	case p.ID != "":
		return p.ID
	case p.UserID != "":
		return p.UserID
	default:
		return p.LegacyID
	}
}
