package client

import "github.com/lborres/farewatch/core"

// Route is a protected view.
type Route struct {
	Name         string
	RequireAdmin bool
	// MinTier restricts the view to subscribers at or above this tier.
	MinTier core.Tier
}

type Decision int

const (
	DecisionLoading Decision = iota
	DecisionRedirectLogin
	DecisionRender
	DecisionAccessDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionRedirectLogin:
		return "redirect_login"
	case DecisionRender:
		return "render"
	case DecisionAccessDenied:
		return "access_denied"
	default:
		return "invalid"
	}
}

// Decide maps a session snapshot and a route to what the view should show.
// Until the session is known only a loading placeholder is shown, so neither
// the login page nor protected content flashes.
func Decide(s Snapshot, r Route) Decision {
	switch s.State {
	case StateAnonymous:
		return DecisionRedirectLogin
	case StateAuthenticated:
		if s.Identity == nil {
			return DecisionLoading
		}
		if r.RequireAdmin && !s.Identity.IsAdmin {
			return DecisionAccessDenied
		}
		if r.MinTier != "" && !s.Identity.Tier.AtLeast(r.MinTier) {
			return DecisionAccessDenied
		}
		return DecisionRender
	default:
		return DecisionLoading
	}
}

// Guard evaluates routes against the live controller state.
type Guard struct {
	controller *Controller
	navigator  Navigator
}

func NewGuard(controller *Controller, navigator Navigator) *Guard {
	if navigator == nil {
		navigator = noopNavigator{}
	}
	return &Guard{controller: controller, navigator: navigator}
}

// Enter decides for r and navigates to login when the session is anonymous.
func (g *Guard) Enter(r Route) Decision {
	d := Decide(g.controller.Snapshot(), r)
	if d == DecisionRedirectLogin {
		g.navigator.ToLogin()
	}
	return d
}
