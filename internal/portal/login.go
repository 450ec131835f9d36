package portal

import (
	"context"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"planswitch/internal/types"
)

var (
	usernameKeys = []string{"username", "email", "user", "login"}
	passwordKeys = []string{"password", "passwd", "pass"}
)

// Login fetches the login page, fills its credential fields and posts it
// back. It does not check that authentication worked; Confirm detects a
// bounced session on its own.
func (c *Client) Login(ctx context.Context, username string, password types.SecretString, ids types.PortalIDs) error {
	loginURL := c.endpoints.LoginURL(c.base, ids)

	page, err := c.session.Get(ctx, loginURL, nil)
	if err != nil {
		return err
	}
	if err := checkStatus(page, "login page"); err != nil {
		return err
	}

	doc, err := page.Document()
	if err != nil {
		return err
	}
	form := findPostForm(doc)
	if form == nil {
		return types.NewAppError(types.ErrCodeUpstreamStructure, "login form not found", nil)
	}

	fields := Scrape(form)
	userKey := fields.FirstPresent(usernameKeys, "username")
	passKey := fields.FirstPresent(passwordKeys, "password")
	fields.Apply(
		Override{Key: userKey, Value: username},
		Override{Key: passKey, Value: password.Unmask()},
	)

	action := resolveAction(c.base, form.AttrOr("action", ""), c.endpoints.LoginPath)
	c.logger.DebugContext(ctx, "submitting login form",
		"run_id", types.GetRunID(ctx),
		"fields", fields.Names(),
		"username_field", userKey,
		"password_field", passKey,
	)

	headers := http.Header{}
	headers.Set("Origin", origin(c.base))
	headers.Set("Referer", loginURL)
	resp, err := c.session.PostForm(ctx, action, fields, headers)
	if err != nil {
		return err
	}
	return checkStatus(resp, "login submit")
}

// findPostForm returns the first form whose method is POST.
func findPostForm(doc *goquery.Document) *goquery.Selection {
	form := doc.Find("form").FilterFunction(func(_ int, f *goquery.Selection) bool {
		return strings.EqualFold(strings.TrimSpace(f.AttrOr("method", "")), http.MethodPost)
	}).First()
	if form.Length() == 0 {
		return nil
	}
	return form
}
