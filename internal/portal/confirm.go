package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"planswitch/internal/types"
)

// Confirm requests the change-of-plan page for cfg.TargetPlanCode, submits
// its form with the run's values and classifies the response.
func (c *Client) Confirm(ctx context.Context, cfg types.RunConfig) error {
	confirmURL := c.endpoints.ConfirmURL(c.base, cfg)

	headers := http.Header{}
	headers.Set("Referer", c.endpoints.ServiceDetailsURL(c.base, cfg.IDs))
	page, err := c.session.Get(ctx, confirmURL, headers)
	if err != nil {
		return err
	}
	if err := checkStatus(page, "confirm page"); err != nil {
		return err
	}

	doc, err := page.Document()
	if err != nil {
		return err
	}
	if signal := loginSignal(doc); signal != "" {
		return types.NewAppErrorWithDetails(types.ErrCodeAuthPortalUnauthenticated,
			"not authenticated: portal returned a login page", nil,
			map[string]any{"signal": signal})
	}

	form := c.findConfirmForm(doc)
	if form == nil {
		return types.NewAppError(types.ErrCodeUpstreamStructure, "confirm form not found", nil)
	}

	fields := Scrape(form)
	fields.Apply(confirmOverrides(cfg)...)

	action := resolveAction(c.base, form.AttrOr("action", ""), confirmURL)
	c.logger.DebugContext(ctx, "submitting confirm form",
		"run_id", types.GetRunID(ctx),
		"fields", fields.Names(),
		"psid", cfg.TargetPlanCode,
	)

	headers = http.Header{}
	headers.Set("Referer", confirmURL)
	resp, err := c.session.PostForm(ctx, action, fields, headers)
	if err != nil {
		return err
	}
	if err := checkStatus(resp, "confirm submit"); err != nil {
		return err
	}

	if !c.classifier.Confirmed(resp.Body) {
		return types.NewAppError(types.ErrCodeUpstreamUnclear,
			"confirmation unclear: no success indicator in portal response", nil)
	}
	return nil
}

func confirmOverrides(cfg types.RunConfig) []Override {
	return []Override{
		{Key: "ntdreplace", Value: types.FlagOff, Mode: KeepScraped},
		{Key: "ntdupgrade", Value: types.FlagOff, Mode: KeepScraped},
		{Key: "userid", Value: orFlag(cfg.IDs.UserID)},
		{Key: "psid", Value: cfg.TargetPlanCode},
		{Key: "locid", Value: orFlag(cfg.IDs.LocationID)},
		{Key: "avcid", Value: orFlag(cfg.IDs.AccessCircuitID)},
		{Key: "unpause", Value: orFlag(cfg.Unpause)},
		{Key: "scheduleddt", Value: cfg.ScheduledDate},
		{Key: "coat", Value: orFlag(cfg.Coat)},
		{Key: "new_service_payment_option", Value: cfg.PaymentOption},
		{Key: "discount_code", Value: cfg.DiscountCode, Mode: ReplaceIfPresentOrSet},
	}
}

// loginSignal returns a short description of the first login-page marker
// found in doc, or "" if the page looks authenticated.
func loginSignal(doc *goquery.Document) string {
	if doc.Find("input").FilterFunction(func(_ int, in *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(in.AttrOr("type", "")), "password")
	}).Length() > 0 {
		return "password input"
	}
	if doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.Contains(strings.ToLower(f.AttrOr("action", "")), "login")
	}).Length() > 0 {
		return "login form action"
	}
	if strings.Contains(strings.ToLower(doc.Find("title").First().Text()), "login") {
		return "login title"
	}
	return ""
}

// findConfirmForm tries, in order: a form named confirm_service, a form
// whose action contains the confirm path, any form holding a psid input.
func (c *Client) findConfirmForm(doc *goquery.Document) *goquery.Selection {
	forms := doc.Find("form")

	if f := forms.Filter(`[name="confirm_service"]`).First(); f.Length() > 0 {
		return f
	}
	if f := forms.FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.Contains(f.AttrOr("action", ""), c.endpoints.ConfirmPath)
	}).First(); f.Length() > 0 {
		return f
	}
	if f := forms.Has(`input[name="psid"]`).First(); f.Length() > 0 {
		return f
	}
	return nil
}
