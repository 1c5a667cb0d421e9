package models

import "time"

type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleCompany    Role = "company"
	RoleContractor Role = "contractor"
	RoleAdmin      Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleCompany, RoleContractor, RoleAdmin:
		return true
	}
	return false
}

type ContractorProfile struct {
	Domain        string   `json:"domain"`
	TrustScore    float64  `json:"trustScore"`
	CompletedJobs int      `json:"completedJobs"`
	AverageRating float64  `json:"averageRating"`
	ServiceAreas  []string `json:"serviceAreas"`
}

type CompanyProfile struct {
	CompanyName         string  `json:"companyName"`
	RegistrationNumber  string  `json:"registrationNumber,omitempty"`
	GreenCreditsBalance float64 `json:"greenCreditsBalance"`
	GreenCreditSpent    float64 `json:"greenCreditSpent"`
	ImpactScore         float64 `json:"impactScore"`
}

type User struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	PasswordHash      string             `json:"passwordHash,omitempty"`
	Name              string             `json:"name"`
	Role              Role               `json:"role"`
	OneCreditsBalance float64            `json:"oneCreditsBalance"`
	Contractor        *ContractorProfile `json:"contractorProfile,omitempty"`
	Company           *CompanyProfile    `json:"companyProfile,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

func (u *User) Validate() error {
	if u.Email == "" {
		return invalid("user", "email is required")
	}
	if !u.Role.Valid() {
		return invalid("user", "unknown role %q", u.Role)
	}
	if u.OneCreditsBalance < 0 {
		return invalid("user", "credit balance is negative")
	}
	if c := u.Contractor; c != nil && (c.TrustScore < 0 || c.TrustScore > 100) {
		return invalid("user", "trust score %v out of range", c.TrustScore)
	}
	return nil
}

// Public returns a copy safe to send to clients.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
