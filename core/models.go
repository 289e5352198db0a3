package core

import "time"

// Tier is the subscription level of a user. Views can be gated on a minimum tier.
type Tier string

const (
	TierFree        Tier = "free"
	TierEssential   Tier = "essential"
	TierPremium     Tier = "premium"
	TierPremiumPlus Tier = "premium_plus"
)

// Rank orders tiers from free (0) upward. Unknown tiers rank below free.
func (t Tier) Rank() int {
	switch t {
	case TierFree, "":
		return 0
	case TierEssential:
		return 1
	case TierPremium:
		return 2
	case TierPremiumPlus:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether t is the same as or above min.
func (t Tier) AtLeast(min Tier) bool {
	return t.Rank() >= min.Rank()
}

// User represents a user account in the system
//
// This is the "identity" - who someone is. The JSON form is the profile
// representation served by the identity endpoint.
type User struct {
	ID                    string     `json:"id"`
	Email                 string     `json:"email"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Phone                 string     `json:"phone"`
	Tier                  Tier       `json:"tier"`
	IsActive              bool       `json:"is_active"`
	IsVerified            bool       `json:"is_verified"`
	IsAdmin               bool       `json:"is_admin"`
	OnboardingStep        int        `json:"onboarding_step"`
	OnboardingCompleted   bool       `json:"onboarding_completed"`
	HomeAirports          []string   `json:"home_airports"`
	FavoriteDestinations  []string   `json:"favorite_destinations"`
	TravelTypes           []string   `json:"travel_types"`
	EmailNotifications    bool       `json:"email_notifications"`
	SMSNotifications      bool       `json:"sms_notifications"`
	NotificationFrequency string     `json:"notification_frequency"`
	LastLoginAt           *time.Time `json:"last_login_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// DisplayName returns "First Last" when known, falling back to the email.
func (u *User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// Clone returns a deep copy so callers never share slices with a cache or store.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.HomeAirports = cloneStrings(u.HomeAirports)
	c.FavoriteDestinations = cloneStrings(u.FavoriteDestinations)
	c.TravelTypes = cloneStrings(u.TravelTypes)
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		c.LastLoginAt = &t
	}
	return &c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// Account represents an authentication method
//
// This is the "credential" - how someone proves who they are
type Account struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	ProviderID string    `json:"provider_id"` // "credential", "google"
	AccountID  string    `json:"account_id"`
	Password   *string   `json:"-"` // Never expose in JSON
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProviderCredential is the provider id of email/password accounts.
const ProviderCredential = "credential"

// Session represents an active login session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"` // Never expose in JSON (security!)
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionData combines user and session info
// The model returned to clients
type SessionData struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// CreateSessionResult carries a freshly issued session and its raw token.
type CreateSessionResult struct {
	Session *Session
	Token   string // The raw token (not the hash)
}

// SignInResult contains the authenticated user and their session
type SignInResult struct {
	User    *User
	Session *Session
	Token   string
}

// TokenResponse is the body of a successful login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Users []*User `json:"users"`
	Total int     `json:"total"`
}

// AlertPreferences are the deal alert thresholds of one user.
// MaxAlertsPerWeek is set by the server and cannot be changed by the user.
type AlertPreferences struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	MinDiscountPercentage float64   `json:"min_discount_percentage"`
	MaxPriceEurope        float64   `json:"max_price_europe"`
	MaxPriceInternational float64   `json:"max_price_international"`
	PreferredRoutes       []string  `json:"preferred_routes"`
	ExcludedAirlines      []string  `json:"excluded_airlines"`
	AdvanceDaysMin        int       `json:"advance_days_min"`
	AdvanceDaysMax        int       `json:"advance_days_max"`
	MaxAlertsPerWeek      int       `json:"max_alerts_per_week"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// DefaultAlertPreferences are stored for every new user.
func DefaultAlertPreferences(userID string) *AlertPreferences {
	return &AlertPreferences{
		UserID:                userID,
		MinDiscountPercentage: 30,
		MaxPriceEurope:        200,
		MaxPriceInternational: 800,
		PreferredRoutes:       []string{},
		ExcludedAirlines:      []string{},
		AdvanceDaysMin:        7,
		AdvanceDaysMax:        180,
		MaxAlertsPerWeek:      3,
	}
}

func (p *AlertPreferences) Clone() *AlertPreferences {
	if p == nil {
		return nil
	}
	c := *p
	c.PreferredRoutes = cloneStrings(p.PreferredRoutes)
	c.ExcludedAirlines = cloneStrings(p.ExcludedAirlines)
	return &c
}

// SessionList is the caller's active sessions. Current marks the one the
// request was made with.
type SessionList struct {
	Sessions []*Session `json:"sessions"`
	Current  string     `json:"current"`
}

// RevokeResult reports how many sessions a sign-out ended.
type RevokeResult struct {
	Detail  string `json:"detail"`
	Revoked int    `json:"revoked"`
}
