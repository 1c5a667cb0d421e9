package models

// Request bodies accepted by the HTTP API. Struct tags drive
// go-playground/validator checks in the validation package.

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=200"`
	Role     Role   `json:"role" validate:"omitempty,oneof=citizen company contractor"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LocationInput struct {
	Lat     *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng     *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
	Address string   `json:"address" validate:"max=500"`
}

type CreateProblemRequest struct {
	Description string        `json:"description" validate:"required,max=5000"`
	PhotoURL    string        `json:"photoUrl" validate:"omitempty,url"`
	Location    LocationInput `json:"location"`
}

type UpdateProblemStatusRequest struct {
	Status ProblemStatus `json:"status" validate:"required"`
}

type SubmitBidRequest struct {
	ProblemID   string  `json:"problemId" validate:"required"`
	QuoteAmount float64 `json:"quoteAmount" validate:"gt=0"`
	Notes       string  `json:"notes" validate:"max=1000"`
}

type CreateSessionRequest struct {
	ProblemID string `json:"problemId" validate:"required"`
}

type RegisterContractorRequest struct {
	Domain       string   `json:"domain" validate:"required"`
	ServiceAreas []string `json:"serviceAreas" validate:"required,min=1,dive,required"`
}

type RegisterCompanyRequest struct {
	CompanyName        string `json:"companyName" validate:"required,max=200"`
	RegistrationNumber string `json:"registrationNumber" validate:"max=100"`
}

type PurchaseRequest struct {
	AmountPurchased float64 `json:"amountPurchased" validate:"gt=0"`
	UnitPrice       float64 `json:"unitPrice" validate:"gt=0"`
}

type AllocationRequest struct {
	ProblemID        string  `json:"problemId" validate:"required"`
	AmountToAllocate float64 `json:"amountToAllocate" validate:"gt=0"`
}

type RedeemRequest struct {
	RewardID string `json:"rewardId" validate:"required"`
}

type CreateRewardRequest struct {
	Type            RewardType     `json:"type" validate:"required,oneof=transport commodity partner"`
	PartnerID       string         `json:"partnerId"`
	Description     string         `json:"description" validate:"required,max=1000"`
	CreditsRequired float64        `json:"creditsRequired" validate:"gt=0"`
	PartnersData    map[string]any `json:"partnersData"`
}
