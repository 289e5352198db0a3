package core

import "strings"

// SignUpInput is the self-registration body.
type SignUpInput struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
	FirstName string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName  string `json:"last_name,omitempty" validate:"omitempty,max=100"`
}

// SignInInput is the login body. The wire form calls the email "username".
type SignInInput struct {
	Email    string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName             *string  `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName              *string  `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Phone                 *string  `json:"phone,omitempty" validate:"omitempty,max=32"`
	HomeAirports          []string `json:"home_airports,omitempty" validate:"omitempty,max=10,dive,airport"`
	FavoriteDestinations  []string `json:"favorite_destinations,omitempty" validate:"omitempty,max=50,dive,max=100"`
	TravelTypes           []string `json:"travel_types,omitempty" validate:"omitempty,max=20,dive,max=50"`
	EmailNotifications    *bool    `json:"email_notifications,omitempty"`
	SMSNotifications      *bool    `json:"sms_notifications,omitempty"`
	NotificationFrequency *string  `json:"notification_frequency,omitempty" validate:"omitempty,oneof=instant daily weekly"`
}

// Apply copies the set fields of p onto u.
func (p ProfileUpdate) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.HomeAirports != nil {
		u.HomeAirports = cloneStrings(p.HomeAirports)
	}
	if p.FavoriteDestinations != nil {
		u.FavoriteDestinations = cloneStrings(p.FavoriteDestinations)
	}
	if p.TravelTypes != nil {
		u.TravelTypes = cloneStrings(p.TravelTypes)
	}
	if p.EmailNotifications != nil {
		u.EmailNotifications = *p.EmailNotifications
	}
	if p.SMSNotifications != nil {
		u.SMSNotifications = *p.SMSNotifications
	}
	if p.NotificationFrequency != nil {
		u.NotificationFrequency = *p.NotificationFrequency
	}
}

// Onboarding steps after signup (step 1).
const (
	OnboardingStepProfile      = 2
	OnboardingStepTravelTypes  = 3
	OnboardingStepDestinations = 4
	OnboardingStepDone         = 5
)

// OnboardingUpdate records progress through the onboarding flow.
type OnboardingUpdate struct {
	Step int            `json:"step" validate:"min=1,max=5"`
	Data OnboardingData `json:"data"`
}

type OnboardingData struct {
	FirstName            string   `json:"first_name,omitempty" validate:"omitempty,max=100"`
	HomeAirports         []string `json:"home_airports,omitempty" validate:"omitempty,max=10,dive,airport"`
	TravelTypes          []string `json:"travel_types,omitempty" validate:"omitempty,max=20,dive,max=50"`
	FavoriteDestinations []string `json:"favorite_destinations,omitempty" validate:"omitempty,max=50,dive,max=100"`
}

// Apply writes the step's data onto u and records the step.
// Each step owns its fields; data for other steps is ignored.
func (o OnboardingUpdate) Apply(u *User) {
	switch o.Step {
	case OnboardingStepProfile:
		u.FirstName = o.Data.FirstName
		u.HomeAirports = nonNil(o.Data.HomeAirports)
	case OnboardingStepTravelTypes:
		u.TravelTypes = nonNil(o.Data.TravelTypes)
	case OnboardingStepDestinations:
		u.FavoriteDestinations = nonNil(o.Data.FavoriteDestinations)
	case OnboardingStepDone:
		u.OnboardingCompleted = true
	}
	u.OnboardingStep = o.Step
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return cloneStrings(s)
}

// AlertPreferencesUpdate is a partial change of the deal alert thresholds.
// Nil fields are left untouched.
type AlertPreferencesUpdate struct {
	MinDiscountPercentage *float64 `json:"min_discount_percentage,omitempty" validate:"omitempty,min=10,max=90"`
	MaxPriceEurope        *float64 `json:"max_price_europe,omitempty" validate:"omitempty,min=50"`
	MaxPriceInternational *float64 `json:"max_price_international,omitempty" validate:"omitempty,min=100"`
	PreferredRoutes       []string `json:"preferred_routes,omitempty" validate:"omitempty,max=50,dive,max=20"`
	ExcludedAirlines      []string `json:"excluded_airlines,omitempty" validate:"omitempty,max=50,dive,max=100"`
	AdvanceDaysMin        *int     `json:"advance_days_min,omitempty" validate:"omitempty,min=1"`
	AdvanceDaysMax        *int     `json:"advance_days_max,omitempty" validate:"omitempty,max=365"`
}

// Apply copies the set fields of u onto p.
func (u AlertPreferencesUpdate) Apply(p *AlertPreferences) {
	if u.MinDiscountPercentage != nil {
		p.MinDiscountPercentage = *u.MinDiscountPercentage
	}
	if u.MaxPriceEurope != nil {
		p.MaxPriceEurope = *u.MaxPriceEurope
	}
	if u.MaxPriceInternational != nil {
		p.MaxPriceInternational = *u.MaxPriceInternational
	}
	if u.PreferredRoutes != nil {
		p.PreferredRoutes = cloneStrings(u.PreferredRoutes)
	}
	if u.ExcludedAirlines != nil {
		p.ExcludedAirlines = cloneStrings(u.ExcludedAirlines)
	}
	if u.AdvanceDaysMin != nil {
		p.AdvanceDaysMin = *u.AdvanceDaysMin
	}
	if u.AdvanceDaysMax != nil {
		p.AdvanceDaysMax = *u.AdvanceDaysMax
	}
}
