package portal

import (
	"net/url"
	"strings"

	"planswitch/internal/types"
)

// Endpoints holds the portal paths used by the flows. Paths are resolved
// against the run's base address.
type Endpoints struct {
	LoginPath          string
	ConfirmPath        string
	ServiceDetailsPath string
}

// DefaultEndpoints returns the paths the portal serves today.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		LoginPath:          "/login",
		ConfirmPath:        "/confirm_service",
		ServiceDetailsPath: "/service_details",
	}
}

func (e Endpoints) withDefaults() Endpoints {
	d := DefaultEndpoints()
	if e.LoginPath == "" {
		e.LoginPath = d.LoginPath
	}
	if e.ConfirmPath == "" {
		e.ConfirmPath = d.ConfirmPath
	}
	if e.ServiceDetailsPath == "" {
		e.ServiceDetailsPath = d.ServiceDetailsPath
	}
	return e
}

// ServiceDetailsURL is the page the portal returns to after login. It also
// serves as the Referer for the confirm GET.
func (e Endpoints) ServiceDetailsURL(base *url.URL, ids types.PortalIDs) string {
	u := resolvePath(base, e.withDefaults().ServiceDetailsPath)
	q := url.Values{}
	q.Set("avcid", ids.AccessCircuitID)
	q.Set("userid", ids.UserID)
	u.RawQuery = q.Encode()
	return u.String()
}

// LoginURL embeds the service-details address as return_url so the portal
// knows where to send the session after authenticating.
func (e Endpoints) LoginURL(base *url.URL, ids types.PortalIDs) string {
	u := resolvePath(base, e.withDefaults().LoginPath)
	q := url.Values{}
	q.Set("return_url", e.ServiceDetailsURL(base, ids))
	u.RawQuery = q.Encode()
	return u.String()
}

// ConfirmURL builds the change-of-plan GET address. All nine parameters are
// always present; unset identifiers and flags are sent as "0" and an unset
// discount code as "".
func (e Endpoints) ConfirmURL(base *url.URL, cfg types.RunConfig) string {
	u := resolvePath(base, e.withDefaults().ConfirmPath)
	q := url.Values{}
	q.Set("userid", orFlag(cfg.IDs.UserID))
	q.Set("psid", cfg.TargetPlanCode)
	q.Set("unpause", orFlag(cfg.Unpause))
	q.Set("serviceid", orFlag(cfg.IDs.ServiceID))
	q.Set("discount_code", cfg.DiscountCode)
	q.Set("avcid", orFlag(cfg.IDs.AccessCircuitID))
	q.Set("locid", orFlag(cfg.IDs.LocationID))
	q.Set("coat", orFlag(cfg.Coat))
	q.Set("churn", orFlag(cfg.Churn))
	u.RawQuery = q.Encode()
	return u.String()
}

// origin returns scheme://host of base, the value browsers send as Origin.
func origin(base *url.URL) string {
	return base.Scheme + "://" + base.Host
}

// resolveAction resolves a form action against base. An empty action yields
// fallback, which is itself resolved against base.
func resolveAction(base *url.URL, action, fallback string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		action = fallback
	}
	ref, err := url.Parse(action)
	if err != nil {
		return resolvePath(base, fallback).String()
	}
	return base.ResolveReference(ref).String()
}

func resolvePath(base *url.URL, path string) *url.URL {
	ref, err := url.Parse(path)
	if err != nil {
		ref = &url.URL{Path: path}
	}
	return base.ResolveReference(ref)
}

func orFlag(v string) string {
	if v == "" {
		return types.FlagOff
	}
	return v
}
